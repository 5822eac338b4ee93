package events

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/event"
	"stripe-webhook-router/internal/signature"
	"stripe-webhook-router/internal/subscription"
	"stripe-webhook-router/internal/trigger"
)

const (
	testSecret   = "whsec_handler_secret"
	checkoutBody = `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`
)

var fixedNow = time.Unix(1700000000, 0)

func newVerifier(t *testing.T) *signature.Verifier {
	t.Helper()
	v, err := signature.NewVerifier(signature.DefaultConfig(), signature.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return v
}

func signedRequest(body, secret string) *trigger.Request {
	h := http.Header{}
	h.Set("Stripe-Signature", signature.SignHeader(fixedNow, []byte(body), secret, "v1"))
	return trigger.NewRequest([]byte(body), h)
}

func snapshotPayload(eventType string) trigger.Payload {
	return trigger.Payload{
		Kind:  event.KindSnapshot,
		Event: &event.Event{ID: "evt_1", Type: eventType, Kind: event.KindSnapshot, Data: map[string]interface{}{"id": "cs_1"}},
	}
}

func thinPayload() trigger.Payload {
	return trigger.Payload{
		Kind: event.KindThin,
		Event: &event.Event{
			ID:        "evt_thin_1",
			Type:      "v1.billing.invoice.paid",
			Kind:      event.KindThin,
			CreatedAt: fixedNow,
			Data:      map[string]interface{}{"amount": float64(100)},
		},
	}
}

func TestSnapshotEvents_PassesRequestJSON(t *testing.T) {
	req := signedRequest(checkoutBody, testSecret)
	vars, err := SnapshotEvents{}.Handle(context.Background(), req, nil, snapshotPayload("checkout.session.completed"))
	require.NoError(t, err)
	assert.Equal(t, trigger.Variables(req.JSON()), vars)

	vars["extra"] = true
	_, present := req.JSON()["extra"]
	assert.False(t, present)
}

func TestSnapshotEvents_IgnoresThin(t *testing.T) {
	_, err := SnapshotEvents{}.Handle(context.Background(), signedRequest(checkoutBody, testSecret), nil, thinPayload())
	assert.True(t, errors.IsIgnore(err))

	_, err = SnapshotEvents{}.Handle(context.Background(), signedRequest(checkoutBody, testSecret), nil, trigger.Payload{Kind: event.KindSnapshot})
	assert.True(t, errors.IsIgnore(err))
}

func TestCheckoutSessionCompleted(t *testing.T) {
	req := signedRequest(checkoutBody, testSecret)

	vars, err := CheckoutSessionCompleted{}.Handle(context.Background(), req, nil, snapshotPayload("checkout.session.completed"))
	require.NoError(t, err)
	assert.Equal(t, "checkout.session.completed", vars["type"])

	_, err = CheckoutSessionCompleted{}.Handle(context.Background(), req, nil, snapshotPayload("customer.created"))
	assert.True(t, errors.IsIgnore(err))
}

func TestThinEvents_FlattensEvent(t *testing.T) {
	payload := thinPayload()
	vars, err := ThinEvents{}.Handle(context.Background(), trigger.NewRequest(nil, nil), nil, payload)
	require.NoError(t, err)
	assert.Equal(t, "evt_thin_1", vars["id"])
	assert.Equal(t, "v1.billing.invoice.paid", vars["type"])
	assert.Equal(t, "thin", vars["kind"])
	assert.Equal(t, fixedNow.UTC().Format(time.RFC3339), vars["created_at"])

	_, err = ThinEvents{}.Handle(context.Background(), trigger.NewRequest(nil, nil), nil, snapshotPayload("customer.created"))
	assert.True(t, errors.IsIgnore(err))
}

func TestVerified(t *testing.T) {
	h := Verified{Verifier: newVerifier(t), Next: SnapshotEvents{}}
	req := signedRequest(checkoutBody, testSecret)

	vars, err := h.Handle(context.Background(), req, map[string]interface{}{ParamEndpointSecret: testSecret}, snapshotPayload("checkout.session.completed"))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", vars["id"])

	_, err = h.Handle(context.Background(), req, map[string]interface{}{ParamEndpointSecret: "whsec_wrong"}, snapshotPayload("checkout.session.completed"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.NotContains(t, err.Error(), "whsec_wrong")

	_, err = h.Handle(context.Background(), req, nil, snapshotPayload("checkout.session.completed"))
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(newVerifier(t), "snap", "thin")
	assert.Equal(t, []string{"snap", ChannelCheckoutSessionCompleted, "thin"}, r.Channels())

	_, ok := r.Get("snap")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

type recordingSink struct {
	deliveries []Delivery
	err        error
}

func (s *recordingSink) Deliver(ctx context.Context, d Delivery) error {
	s.deliveries = append(s.deliveries, d)
	return s.err
}

func dispatchResult(channels []string, payload trigger.Payload) *trigger.DispatchResult {
	return &trigger.DispatchResult{
		EventNames: channels,
		Ack: trigger.Ack{
			StatusCode: http.StatusOK,
			Body:       trigger.AckBody{Status: "ok", EventType: payload.Event.Type, DispatchedEventNames: channels},
		},
		Payload: payload,
	}
}

func testSubscription() *subscription.Subscription {
	return &subscription.Subscription{
		ID: "sub_1",
		Properties: map[string]interface{}{
			subscription.PropertyEndpointSecret: testSecret,
			subscription.PropertyExternalID:     "acct_ext",
		},
	}
}

func TestRunner_DeliversAcceptedOutputs(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(DefaultRegistry(newVerifier(t), "snap", "thin"), sink)
	req := signedRequest(checkoutBody, testSecret)

	report := runner.Run(context.Background(), testSubscription(), req,
		dispatchResult([]string{"snap", ChannelCheckoutSessionCompleted}, snapshotPayload("checkout.session.completed")))

	assert.Equal(t, 2, report.Accepted())
	assert.Empty(t, report.Failed())
	require.Len(t, sink.deliveries, 2)
	assert.Equal(t, "snap", sink.deliveries[0].Channel)
	assert.Equal(t, "sub_1", sink.deliveries[0].SubscriptionID)
	assert.Equal(t, "acct_ext", sink.deliveries[0].ExternalID)
	assert.Equal(t, "evt_1", sink.deliveries[0].EventID)
	assert.Equal(t, "checkout.session.completed", sink.deliveries[0].EventType)
	assert.Equal(t, trigger.Variables(req.JSON()), sink.deliveries[0].Variables)
}

func TestRunner_IgnoreIsNotFailure(t *testing.T) {
	sink := &recordingSink{}
	runner := NewRunner(DefaultRegistry(newVerifier(t), "snap", "thin"), sink)

	report := runner.Run(context.Background(), testSubscription(), signedRequest(checkoutBody, testSecret),
		dispatchResult([]string{"thin", "nobody"}, snapshotPayload("checkout.session.completed")))

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, StatusIgnored, report.Outcomes[0].Status)
	assert.Equal(t, StatusUnhandled, report.Outcomes[1].Status)
	assert.Empty(t, report.Failed())
	assert.Empty(t, sink.deliveries)
}

func TestRunner_FailuresDoNotStopSiblings(t *testing.T) {
	registry := NewRegistry()
	registry.Register("panics", HandlerFunc(func(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error) {
		panic("boom")
	}))
	registry.Register("ok", SnapshotEvents{})
	sink := &recordingSink{}

	report := NewRunner(registry, sink).Run(context.Background(), testSubscription(), signedRequest(checkoutBody, testSecret),
		dispatchResult([]string{"panics", "ok"}, snapshotPayload("checkout.session.completed")))

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, StatusAccepted, report.Outcomes[1].Status)
	assert.Len(t, report.Failed(), 1)
	assert.Len(t, sink.deliveries, 1)
}

func TestRunner_SinkErrorsAreReported(t *testing.T) {
	sink := &recordingSink{err: errors.ConnectionError("broker down", nil)}
	runner := NewRunner(DefaultRegistry(newVerifier(t), "snap", "thin"), sink)

	report := runner.Run(context.Background(), testSubscription(), trigger.NewRequest(nil, nil),
		dispatchResult([]string{"thin"}, thinPayload()))

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusDeliveryFailed, report.Outcomes[0].Status)
	assert.Len(t, report.Failed(), 1)
}

func TestRunner_HandlersSeeSamePayload(t *testing.T) {
	payload := snapshotPayload("checkout.session.completed")
	var seen []*event.Event
	capture := HandlerFunc(func(ctx context.Context, req *trigger.Request, params map[string]interface{}, p trigger.Payload) (trigger.Variables, error) {
		seen = append(seen, p.Event)
		return trigger.Variables{}, nil
	})
	registry := NewRegistry()
	registry.Register("a", capture)
	registry.Register("b", capture)

	NewRunner(registry, nil).Run(context.Background(), testSubscription(), trigger.NewRequest(nil, nil),
		dispatchResult([]string{"a", "b"}, payload))

	require.Len(t, seen, 2)
	assert.Same(t, payload.Event, seen[0])
	assert.Same(t, seen[0], seen[1])
}
