package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/hubproto"
)

// Tokens tracks connection tokens handed out by negotiate until the
// matching WebSocket arrives or the token expires.
type Tokens struct {
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	issued map[string]issuedToken
}

type issuedToken struct {
	connectionID string
	expires      time.Time
}

func NewTokens(ttl time.Duration) *Tokens {
	return &Tokens{ttl: ttl, now: time.Now, issued: make(map[string]issuedToken)}
}

// Issue creates a negotiate response for a new connection.
func (t *Tokens) Issue(negotiateVersion int) hubproto.NegotiateResponse {
	resp := hubproto.NegotiateResponse{
		ConnectionID:     uuid.NewString(),
		NegotiateVersion: 0,
		AvailableTransports: []hubproto.AvailableTransport{
			{Transport: hubproto.TransportWebSockets, TransferFormats: []string{"Text"}},
		},
	}
	key := resp.ConnectionID
	if negotiateVersion >= 1 {
		resp.NegotiateVersion = hubproto.NegotiateVersion
		resp.ConnectionToken = uuid.NewString()
		key = resp.ConnectionToken
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked()
	t.issued[key] = issuedToken{connectionID: resp.ConnectionID, expires: t.now().Add(t.ttl)}
	return resp
}

// Claim consumes token and returns its connection id.
func (t *Tokens) Claim(token string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked()

	it, ok := t.issued[token]
	if !ok {
		return "", false
	}
	delete(t.issued, token)
	return it.connectionID, true
}

func (t *Tokens) expireLocked() {
	now := t.now()
	for k, it := range t.issued {
		if now.After(it.expires) {
			delete(t.issued, k)
		}
	}
}
