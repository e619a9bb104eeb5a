package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Ordering-Agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, req contractx.TurnRequest) (string, error)
}

type BusinessAdmin interface {
	contractx.BusinessLookup
	List(ctx context.Context) ([]contractx.Business, error)
	Create(ctx context.Context, b contractx.Business) (contractx.Business, error)
}

type Reindexer interface {
	Reindex(ctx context.Context, tenantID string) (contractx.IndexResult, error)
}

type SignatureVerifier interface {
	Verify(signature string, body []byte, destination string) error
}

// Deps wires the server to the agent. Speech, indexing and metrics
// collaborators are optional; their routes answer 503 when missing.
type Deps struct {
	Turns      TurnHandler
	Businesses BusinessAdmin
	Orders     contractx.OrderStore

	Transcriber contractx.Transcriber
	Synthesizer contractx.Synthesizer

	Scheduler contractx.IndexScheduler
	Reindexer Reindexer
	Verifier  SignatureVerifier
	// CallbackURL is the public URL of the index callback, checked against
	// the signed destination.
	CallbackURL string

	Metrics http.Handler

	DefaultTenantID string
}

type Server struct {
	deps Deps
}

func New(deps Deps) (*Server, error) {
	if deps.Turns == nil {
		return nil, errors.New("turn handler is required")
	}
	if deps.Businesses == nil {
		return nil, errors.New("business registry is required")
	}
	if strings.TrimSpace(deps.DefaultTenantID) == "" {
		deps.DefaultTenantID = orchestrator.DefaultTenantID
	}
	return &Server{deps: deps}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /process-audio", s.handleProcessAudio)
	mux.HandleFunc("POST /tts", s.handleTTS)
	mux.HandleFunc("POST /whatsapp", s.handleWhatsApp)
	mux.HandleFunc("POST /voice", s.handleVoice)

	mux.HandleFunc("GET /admin/businesses", s.handleListBusinesses)
	mux.HandleFunc("POST /admin/businesses", s.handleCreateBusiness)
	mux.HandleFunc("POST /admin/businesses/{id}/reindex", s.handleReindex)
	mux.HandleFunc("GET /orders", s.handleOrders)

	mux.HandleFunc("POST /internal/index", s.handleIndexCallback)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}

	return withCORS(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) tenantOrDefault(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.deps.DefaultTenantID
}

// writeTurnError maps a failed turn to a status code.
func writeTurnError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidMessage), errors.Is(err, orchestrator.ErrInvalidSession):
		sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contractx.ErrModelInvoke):
		sendJSONError(w, http.StatusBadGateway, "language model unavailable")
	case r.Context().Err() != nil:
		sendJSONError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("turn failed")
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write json response")
	}
}

func sendJSONError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Upstash-Signature")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
