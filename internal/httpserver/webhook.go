package httpserver

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"campaigner/internal/carrier"
	"campaigner/internal/observability"
	"campaigner/internal/store"
)

type WebhookStore interface {
	ApplyDeliveryUpdate(ctx context.Context, in store.DeliveryUpdate) (bool, error)
}

// Webhook reconciles asynchronous delivery-status callbacks from the
// carrier onto the message log. Apart from signature rejection, the
// endpoint always acknowledges: an error response would only provoke
// carrier-side redelivery storms.
type Webhook struct {
	Store           WebhookStore
	VerifySignature func(authToken, fullURL, provided string, form url.Values) bool
	AuthToken       string
	PublicURL       string
}

func (wh *Webhook) Register(r *mux.Router) {
	r.HandleFunc("/v1/webhooks/twilio/status", wh.handleStatus).Methods(http.MethodPost)
}

func (wh *Webhook) handleStatus(w http.ResponseWriter, r *http.Request) {
	// A body we cannot parse is a body we cannot authenticate.
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidSignature, http.StatusForbidden)
		return
	}
	sig := r.Header.Get("X-Twilio-Signature")
	if wh.VerifySignature == nil || !wh.VerifySignature(wh.AuthToken, wh.PublicURL, sig, r.PostForm) {
		http.Error(w, ErrInvalidSignature, http.StatusForbidden)
		return
	}

	sid := r.PostForm.Get("MessageSid")
	carrierStatus := r.PostForm.Get("MessageStatus")
	if sid == "" || carrierStatus == "" {
		slog.Warn("delivery callback missing MessageSid or MessageStatus")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	observability.WebhookEvents.WithLabelValues(carrierStatus).Inc()

	update := store.DeliveryUpdate{
		ExternalID: sid,
		Status:     carrier.MapDeliveryStatus(carrierStatus),
	}
	if update.Status == "failed" {
		if msg := r.PostForm.Get("ErrorMessage"); msg != "" {
			update.ErrorMessage = &msg
		}
	}
	// Carriers may report the price as a negative number (a debit).
	if priceStr := r.PostForm.Get("Price"); priceStr != "" {
		if p, err := strconv.ParseFloat(priceStr, 64); err == nil {
			p = math.Abs(p)
			update.Cost = &p
		}
	}

	found, err := wh.Store.ApplyDeliveryUpdate(r.Context(), update)
	if err != nil {
		slog.Error("apply delivery update failed", "external_id", sid, "status", carrierStatus, "err", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !found {
		slog.Warn("delivery callback for unknown message, ignoring", "external_id", sid, "status", carrierStatus)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	slog.Info("delivery status applied", "external_id", sid, "carrier_status", carrierStatus, "status", update.Status)
	w.WriteHeader(http.StatusNoContent)
}
