package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/subscription"
)

// SubscriptionList is the response of GET /api/subscriptions
type SubscriptionList struct {
	Subscriptions []*subscription.Subscription `json:"subscriptions"`
	Total         int                          `json:"total"`
}

// CreateSubscription registers a new webhook subscription
// @Summary Create subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param subscription body subscription.CreateRequest true "Subscription"
// @Success 201 {object} subscription.Subscription
// @Failure 400 {object} middleware.ErrorBody
// @Router /api/subscriptions [post]
func (h *Handlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscription.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sub, err := h.subscriptions.Create(r.Context(), req)
	if err != nil {
		h.logger.WithContext(r.Context()).Debug("Subscription rejected", logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub.Redacted())
}

// ListSubscriptions returns every subscription with secrets redacted
// @Summary List subscriptions
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SubscriptionList
// @Router /api/subscriptions [get]
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionList{
		Subscriptions: lo.Map(subs, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
			return sub.Redacted()
		}),
		Total: len(subs),
	})
}

// GetSubscription
// @Summary Get subscription
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} subscription.Subscription
// @Failure 404 {object} middleware.ErrorBody
// @Router /api/subscriptions/{id} [get]
func (h *Handlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub.Redacted())
}

// RefreshSubscription extends a subscription's expiry
// @Summary Refresh subscription
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 200 {object} subscription.Subscription
// @Failure 404 {object} middleware.ErrorBody
// @Router /api/subscriptions/{id}/refresh [post]
func (h *Handlers) RefreshSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.Refresh(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub.Redacted())
}

// DeleteSubscription
// @Summary Delete subscription
// @Tags subscriptions
// @Security BearerAuth
// @Param id path string true "Subscription ID"
// @Success 204
// @Failure 404 {object} middleware.ErrorBody
// @Router /api/subscriptions/{id} [delete]
func (h *Handlers) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.subscriptions.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
