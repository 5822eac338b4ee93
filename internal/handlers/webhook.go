package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/trigger"
)

// HandleWebhook verifies and dispatches an inbound provider notification
// @Summary Receive a Stripe webhook
// @Description Verifies the signature, classifies the event, resolves thin events and fans it out to handler channels
// @Tags webhooks
// @Accept json
// @Produce json
// @Param endpoint path string true "Subscription endpoint"
// @Success 200 {object} trigger.AckBody "Acknowledgement"
// @Failure 400 {object} middleware.ErrorBody "Verification, classification or resolution failed"
// @Failure 404 {object} middleware.ErrorBody "Unknown or expired subscription"
// @Failure 413 {object} middleware.ErrorBody "Body too large"
// @Router /webhooks/{endpoint} [post]
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	endpoint := mux.Vars(r)["endpoint"]
	logger := h.logger.WithContext(r.Context()).WithFields(logging.String("endpoint", endpoint))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, errors.ValidationError("failed to read request body"))
		return
	}

	sub, err := h.subscriptions.Lookup(r.Context(), endpoint)
	if err != nil {
		logger.Debug("Webhook for unknown subscription", logging.Err(err))
		writeError(w, err)
		return
	}

	req := trigger.NewRequest(body, r.Header.Clone())
	result, err := h.dispatcher.Dispatch(r.Context(), sub, req)
	if err != nil {
		logger.Warn("Webhook rejected",
			logging.String("subscription_id", sub.ID),
			logging.String("error_type", string(errors.GetType(err))),
			logging.Err(err),
		)
		writeError(w, err)
		return
	}

	if h.runner != nil {
		// handler outcomes never change the acknowledgement
		report := h.runner.Run(context.WithoutCancel(r.Context()), sub, req, result)
		if failed := report.Failed(); len(failed) > 0 {
			logger.Warn("Some handlers failed",
				logging.String("subscription_id", sub.ID),
				logging.Int("failed", len(failed)),
				logging.Int("accepted", report.Accepted()),
			)
		}
	}

	writeJSON(w, result.Ack.StatusCode, result.Ack.Body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
