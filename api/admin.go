package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Ordering-Agent/agent/business"
	contractx "github.com/tanpawarit/Chative-Ordering-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Ordering-Agent/agent/inventory"
	qstashx "github.com/tanpawarit/Chative-Ordering-Agent/pkg/qstash"
)

type createBusinessRequest struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	SheetID string         `json:"sheet_id"`
	Config  map[string]any `json:"config,omitempty"`
}

type indexResponse struct {
	TenantID string `json:"tenant_id"`
	Items    int    `json:"items"`
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Businesses.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list businesses")
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []contractx.Business{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req createBusinessRequest
	if err := decodeJSON(r, &req); err != nil {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.deps.Businesses.Create(r.Context(), contractx.Business{
		ID:      strings.TrimSpace(req.ID),
		Name:    strings.TrimSpace(req.Name),
		Type:    contractx.BusinessType(strings.ToLower(strings.TrimSpace(req.Type))),
		SheetID: strings.TrimSpace(req.SheetID),
		Config:  req.Config,
	})
	if errors.Is(err, contractx.ErrValidation) {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("create business")
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

// lookup is the tenant lookup used by admin routes. Only the default tenant
// may be unregistered, matching what the sheet provider serves.
func (s *Server) lookup(ctx context.Context, w http.ResponseWriter, id string) (contractx.Business, bool) {
	b, err := s.deps.Businesses.Get(ctx, id)
	if errors.Is(err, contractx.ErrTenantNotFound) && id != "" && id == s.deps.DefaultTenantID {
		return business.Default(id), true
	}
	if errors.Is(err, contractx.ErrTenantNotFound) {
		sendJSONError(w, http.StatusNotFound, "Business not found")
		return contractx.Business{}, false
	}
	if err != nil {
		log.Error().Err(err).Str("tenant_id", id).Msg("business lookup")
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return contractx.Business{}, false
	}
	return b, true
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		sendJSONError(w, http.StatusServiceUnavailable, "indexing is not configured")
		return
	}
	b, ok := s.lookup(r.Context(), w, r.PathValue("id"))
	if !ok {
		return
	}
	s.deps.Scheduler.Schedule(r.Context(), b.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled", "tenant_id": b.ID})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Orders == nil {
		sendJSONError(w, http.StatusServiceUnavailable, "order system unavailable")
		return
	}
	b, ok := s.lookup(r.Context(), w, s.tenantOrDefault(r.URL.Query().Get("business_id")))
	if !ok {
		return
	}

	orders, err := s.deps.Orders.GetOrders(r.Context(), b.ID)
	if errors.Is(err, contractx.ErrOrderUnavailable) {
		sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("tenant_id", b.ID).Msg("get orders")
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if orders == nil {
		orders = []contractx.OrderRecord{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// handleIndexCallback runs a reindex delivered by the message queue.
func (s *Server) handleIndexCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reindexer == nil || s.deps.Verifier == nil {
		sendJSONError(w, http.StatusServiceUnavailable, "indexing is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "read body")
		return
	}
	if err := s.deps.Verifier.Verify(r.Header.Get(qstashx.SignatureHeader), body, s.deps.CallbackURL); err != nil {
		log.Warn().Err(err).Msg("rejected index callback")
		sendJSONError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var req inventory.IndexRequest
	if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.TenantID) == "" {
		sendJSONError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	res, err := s.deps.Reindexer.Reindex(r.Context(), req.TenantID)
	if err != nil {
		// A non-2xx answer makes the queue retry the delivery.
		log.Error().Err(err).Str("tenant_id", req.TenantID).Msg("reindex failed")
		sendJSONError(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{TenantID: res.TenantID, Items: res.Items})
}
