package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"campaigner/internal/campaign"
	"campaigner/internal/carrier"
	"campaigner/internal/domain"
	"campaigner/internal/store"
)

type APIStore interface {
	GetMessage(ctx context.Context, msgID string) (store.Message, bool, error)
	ApplyDeliveryUpdate(ctx context.Context, in store.DeliveryUpdate) (bool, error)
	ResurrectFailed(ctx context.Context) (int64, error)
}

// API is the operator surface for the pipeline: lifecycle transitions,
// queue resurrection, and message inspection. Everything here mutates or
// reads pipeline state only; contact/template CRUD lives elsewhere.
type API struct {
	Campaigns *campaign.Service
	Store     APIStore
	Gateway   carrier.Gateway
}

// Register mounts the API on r; callers typically pass a /v1 subrouter
// carrying the auth middleware.
func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/campaigns/{id}/launch", a.handleLaunch).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/pause", a.handlePause).Methods(http.MethodPost)
	r.HandleFunc("/campaigns/{id}/preview", a.handlePreview).Methods(http.MethodGet)
	r.HandleFunc("/queue/resurrect", a.handleResurrect).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", a.handleGetMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/refresh", a.handleRefreshMessage).Methods(http.MethodPost)
}

func (a *API) handleLaunch(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	queued, err := a.Campaigns.Launch(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "launch campaign failed", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaignId": id, "queued": queued})
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if err := a.Campaigns.Pause(r.Context(), id); err != nil {
		writeDomainError(w, err, "pause campaign failed", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := a.Campaigns.Preview(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err, "preview campaign failed", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"previewCount": len(items), "items": items})
}

func (a *API) handleResurrect(w http.ResponseWriter, r *http.Request) {
	n, err := a.Store.ResurrectFailed(r.Context())
	if err != nil {
		slog.Error("resurrect failed queue items failed", "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resurrected": n})
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	msg, found, err := a.Store.GetMessage(r.Context(), id)
	if err != nil {
		slog.Error("get message failed", "id", id, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageJSON(msg))
}

// handleRefreshMessage pulls the current delivery status from the carrier
// instead of waiting on a callback, then applies the same mapping the
// webhook would.
func (a *API) handleRefreshMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return
	}
	msg, found, err := a.Store.GetMessage(r.Context(), id)
	if err != nil {
		slog.Error("get message failed", "id", id, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	if msg.ExternalID == "" {
		http.Error(w, "message has no carrier correlation id", http.StatusConflict)
		return
	}

	ds, err := a.Gateway.FetchStatus(r.Context(), msg.ExternalID)
	if err != nil {
		slog.Error("fetch carrier status failed", "id", id, "external_id", msg.ExternalID, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	update := store.DeliveryUpdate{
		ExternalID: msg.ExternalID,
		Status:     carrier.MapDeliveryStatus(ds.Status),
		Cost:       ds.Cost,
	}
	if update.Status == "failed" && ds.ErrorMessage != "" {
		update.ErrorMessage = &ds.ErrorMessage
	}
	if _, err := a.Store.ApplyDeliveryUpdate(r.Context(), update); err != nil {
		slog.Error("apply delivery update failed", "id", id, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}

	msg, _, err = a.Store.GetMessage(r.Context(), id)
	if err != nil {
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, messageJSON(msg))
}

func campaignID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, ErrMissingID, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeDomainError(w http.ResponseWriter, err error, logMsg string, campaignID int64) {
	var ise *domain.InvalidStateError
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &ise):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrPreconditionUnmet), errors.Is(err, domain.ErrNothingQueued):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.Error(logMsg, "campaign_id", campaignID, "err", err)
		http.Error(w, ErrDependency, http.StatusBadGateway)
	}
}

func messageJSON(m store.Message) map[string]any {
	out := map[string]any{
		"id":         m.ID,
		"body":       m.Body,
		"sentAt":     m.SentAt,
		"status":     m.Status,
		"sender":     m.Sender,
		"campaignId": m.CampaignID,
		"contactId":  m.ContactID,
		"listId":     m.ListID,
	}
	if m.ExternalID != "" {
		out["externalId"] = m.ExternalID
	}
	if m.ErrorMessage != "" {
		out["errorMessage"] = m.ErrorMessage
	}
	if m.Cost != nil {
		out["cost"] = *m.Cost
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
