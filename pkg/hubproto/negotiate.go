package hubproto

// NegotiateVersion is the negotiate protocol revision clients request.
const NegotiateVersion = 1

const TransportWebSockets = "WebSockets"

type AvailableTransport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

// NegotiateResponse is the body of POST {hub}/negotiate. A response carrying
// URL redirects the client to another hub (with AccessToken); Error aborts.
type NegotiateResponse struct {
	ConnectionID        string               `json:"connectionId,omitempty"`
	ConnectionToken     string               `json:"connectionToken,omitempty"`
	NegotiateVersion    int                  `json:"negotiateVersion"`
	AvailableTransports []AvailableTransport `json:"availableTransports,omitempty"`
	URL                 string               `json:"url,omitempty"`
	AccessToken         string               `json:"accessToken,omitempty"`
	Error               string               `json:"error,omitempty"`
}

// SupportsWebSockets reports whether the hub offers a text WebSocket transport.
func (r NegotiateResponse) SupportsWebSockets() bool {
	for _, t := range r.AvailableTransports {
		if t.Transport != TransportWebSockets {
			continue
		}
		for _, f := range t.TransferFormats {
			if f == "Text" {
				return true
			}
		}
	}
	return false
}

// Token is the value sent as the id query parameter when connecting.
func (r NegotiateResponse) Token() string {
	if r.NegotiateVersion >= 1 && r.ConnectionToken != "" {
		return r.ConnectionToken
	}
	return r.ConnectionID
}
