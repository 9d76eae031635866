package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/hub"
)

const tokenTTL = 30 * time.Second

// NewHandler serves the hub at path: POST path/negotiate and the WebSocket
// endpoint itself. Clients that skip negotiation connect without an id.
func NewHandler(path string, allowedOrigins []string, h *hub.Hub, logger *zap.Logger) http.Handler {
	path = "/" + strings.Trim(path, "/")
	tokens := NewTokens(tokenTTL)

	mux := http.NewServeMux()
	mux.HandleFunc(path+"/negotiate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		version, _ := strconv.Atoi(r.URL.Query().Get("negotiateVersion"))

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(tokens.Issue(version)); err != nil {
			logger.Warn("Failed to write negotiate response", zap.Error(err))
		}
	})

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if token := r.URL.Query().Get("id"); token != "" {
			var ok bool
			if id, ok = tokens.Claim(token); !ok {
				http.Error(w, "No Connection with that ID", http.StatusNotFound)
				return
			}
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(conn, h, logger, id)
		client.Start()
	})

	return withCORS(mux, allowedOrigins)
}

func withCORS(next http.Handler, allowedOrigins []string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			// credentialed requests need the exact origin echoed back
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, X-SignalR-User-Agent")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
