// Package server exposes the gateway pipeline over HTTP. It owns status
// mapping and transport concerns only; every admit/reject decision is made
// inside the gateway.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/admingate/internal/config"
	"github.com/ppiankov/admingate/internal/gateway"
	"github.com/ppiankov/admingate/internal/logging"
	"github.com/ppiankov/admingate/internal/metrics"
	"github.com/ppiankov/admingate/internal/model"
	"github.com/ppiankov/admingate/internal/ratelimit"
	"github.com/ppiankov/admingate/internal/store"
)

// maxBodyBytes caps request bodies before JSON decoding.
const maxBodyBytes = 1 << 20

// Server is the HTTP front of the gateway.
type Server struct {
	gw         *gateway.Gateway
	httpSrv    *http.Server
	configPath string

	mu  sync.RWMutex
	cfg *config.Config
}

// New creates a Server for the given config and gateway. configPath is
// re-read on hot reload; empty disables reloading.
func New(cfg *config.Config, gw *gateway.Gateway, configPath string) *Server {
	s := &Server{gw: gw, cfg: cfg, configPath: configPath}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/verify-admin", s.operation(model.OpVerifyAdmin))
	mux.HandleFunc("GET /v1/list-users", s.operation(model.OpListUsers))
	mux.HandleFunc("POST /v1/ban-user", s.operation(model.OpBanUser))
	mux.HandleFunc("POST /v1/create-license", s.operation(model.OpCreateLicense))
	mux.HandleFunc("POST /v1/ban-ip", s.operation(model.OpBanIP))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler. For testing.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Serve starts the HTTP server. Blocks until shutdown.
func (s *Server) Serve() error {
	logging.Info("server", "listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// ReloadConfig re-reads the config file and swaps the gateway's rate
// classes. Called by the hot-reloader on file change. Listen address and
// backend selection require a restart and are left untouched.
func (s *Server) ReloadConfig() error {
	if s.configPath == "" {
		return nil
	}
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.gw.SetRateClasses(
		ratelimit.Class{Name: "general", Limit: cfg.RateLimits.General.Limit, Window: cfg.RateLimits.General.Window},
		ratelimit.Class{Name: "admin", Limit: cfg.RateLimits.Admin.Limit, Window: cfg.RateLimits.Admin.Window},
	)
	return nil
}

// operation builds the handler for one named operation.
func (s *Server) operation(op model.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := decodeBody(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "malformed request body",
			})
			return
		}

		resp := s.gw.Handle(r.Context(), gateway.Request{
			Operation:  op,
			Token:      bearerToken(r, payload),
			ClientAddr: clientAddr(r),
			Payload:    payload,
		})
		writeResponse(w, resp)
	}
}

// decodeBody reads a bounded JSON object body. GET requests and empty
// bodies yield a nil payload.
func decodeBody(r *http.Request) (map[string]any, error) {
	if r.Body == nil || r.Method == http.MethodGet {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// bearerToken extracts the credential: Authorization header first, then
// the in-body idToken the legacy clients send.
func bearerToken(r *http.Request, payload map[string]any) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if payload != nil {
		if token, ok := payload["idToken"].(string); ok {
			return token
		}
	}
	return ""
}

// clientAddr is the peer address the rate limiter keys on. Proxy headers
// are deliberately not trusted.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeResponse(w http.ResponseWriter, resp gateway.Response) {
	switch resp.Outcome {
	case model.OutcomeAdmitted:
		writeJSON(w, http.StatusOK, resp.Result)

	case model.OutcomeRejected:
		switch resp.RejectReason {
		case model.ReasonUnauthenticated:
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "authentication required",
			})
		case model.ReasonForbidden:
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false,
				"error":   "administrator privileges required",
			})
		case model.ReasonRateLimited:
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"success": false,
				"error":   "rate limit exceeded",
			})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "validation failed",
				"fields":  resp.FieldErrors,
			})
		}

	default:
		status := http.StatusInternalServerError
		msg := "internal error"
		if errors.Is(resp.Err, store.ErrUnavailable) {
			status = http.StatusBadGateway
			msg = "store unavailable"
		} else if errors.Is(resp.Err, store.ErrConflict) {
			status = http.StatusConflict
			msg = "conflicting record"
		}
		writeJSON(w, status, map[string]any{
			"success": false,
			"error":   msg,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("server", "encode response", "error", err)
	}
}
