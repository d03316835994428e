package httphandler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

const (
	// maxWebhookBody is the largest payload GitHub sends.
	maxWebhookBody = 25 << 20

	// webhookProcessTimeout bounds one delivery's reconciliation. It is
	// detached from the request so a client hang-up between the DNS call and
	// the state write cannot leave the store behind the zone.
	webhookProcessTimeout = 2 * time.Minute
)

// Webhook receives GitHub deliveries. Once the signature checks out the
// response is always 200 so GitHub does not retry deliveries the service
// chose to ignore or failed to apply.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Signature.Verify(body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		h.logger.Warn("webhook signature rejected", "error", err, "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	kind := r.Header.Get("X-GitHub-Event")
	if kind == "" {
		writeError(w, http.StatusBadRequest, "missing X-GitHub-Event header")
		return
	}

	delivery := r.Header.Get("X-GitHub-Delivery")
	if delivery != "" && h.deliveries.markSeen(delivery) {
		h.logger.Info("duplicate webhook delivery ignored", "event", kind, "delivery", delivery)
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "duplicate", Event: kind, Delivery: delivery})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookProcessTimeout)
	defer cancel()

	outcome, err := h.Webhooks.Handle(ctx, kind, body)
	if err != nil {
		if delivery != "" {
			h.deliveries.forget(delivery)
		}
		h.logger.Error("webhook processing failed", "event", kind, "delivery", delivery, "error", err)
		writeJSON(w, http.StatusOK, WebhookResponse{Status: outcome, Event: kind, Delivery: delivery})
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{Status: outcome, Event: kind, Delivery: delivery})
}
