package signalr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/hubproto"
)

const maxNegotiateRedirects = 100

// negotiate asks the hub for a connection token, following redirects. It
// returns the hub URL and access token the WebSocket dial must use.
func (c *Client) negotiate(ctx context.Context, hubURL, token string) (hubproto.NegotiateResponse, string, string, error) {
	for i := 0; i < maxNegotiateRedirects; i++ {
		u, err := url.Parse(hubURL)
		if err != nil {
			return hubproto.NegotiateResponse{}, "", "", fmt.Errorf("signalr: parse hub url: %w", err)
		}
		u.Path = strings.TrimSuffix(u.Path, "/") + "/negotiate"
		q := u.Query()
		q.Set("negotiateVersion", strconv.Itoa(hubproto.NegotiateVersion))
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
		if err != nil {
			return hubproto.NegotiateResponse{}, "", "", fmt.Errorf("signalr: build negotiate request: %w", err)
		}
		for k, v := range c.headers(token) {
			req.Header[k] = v
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return hubproto.NegotiateResponse{}, "", "", fmt.Errorf("signalr: negotiate: %w", err)
		}
		var nr hubproto.NegotiateResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&nr)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return hubproto.NegotiateResponse{}, "", "", fmt.Errorf("signalr: negotiate returned %s", resp.Status)
		}
		if decodeErr != nil {
			return hubproto.NegotiateResponse{}, "", "", fmt.Errorf("signalr: decode negotiate response: %w", decodeErr)
		}
		if nr.Error != "" {
			return hubproto.NegotiateResponse{}, "", "", fmt.Errorf("signalr: negotiate rejected: %s", nr.Error)
		}

		if nr.URL != "" {
			c.logger.Debug("Negotiate redirected", zap.String("url", nr.URL))
			hubURL = nr.URL
			if nr.AccessToken != "" {
				token = nr.AccessToken
			}
			continue
		}

		if !nr.SupportsWebSockets() {
			return hubproto.NegotiateResponse{}, "", "", errors.New("signalr: hub does not offer the WebSockets transport")
		}
		return nr, hubURL, token, nil
	}
	return hubproto.NegotiateResponse{}, "", "", errors.New("signalr: negotiate redirect limit exceeded")
}

// webSocketURL maps an http(s) hub URL onto ws(s) and attaches the connection id.
func webSocketURL(hubURL, id string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("signalr: parse hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("signalr: unsupported hub url scheme %q", u.Scheme)
	}
	if id != "" {
		q := u.Query()
		q.Set("id", id)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
