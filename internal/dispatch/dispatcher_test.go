package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/event"
	"stripe-webhook-router/internal/resolver"
	"stripe-webhook-router/internal/signature"
	"stripe-webhook-router/internal/subscription"
	"stripe-webhook-router/internal/trigger"
)

const (
	testSecret   = "whsec_dispatch_secret"
	checkoutBody = `{"id":"evt_1","object":"event","type":"checkout.session.completed","created":1700000000,"livemode":false,"data":{"object":{"id":"cs_1","object":"checkout.session"}}}`
	thinBody     = `{"id":"evt_thin_1","object":"v2.core.event","type":"v1.billing.invoice.paid","created":"2024-09-10T12:00:00.000Z","livemode":false}`
	resolvedBody = `{"id":"evt_thin_1","object":"v2.core.event","type":"v1.billing.invoice.paid","created":"2024-09-10T12:00:00.000Z","livemode":false,"data":{"amount":100}}`
)

var fixedNow = time.Unix(1700000000, 0)

func newVerifier(t *testing.T) *signature.Verifier {
	t.Helper()
	v, err := signature.NewVerifier(signature.DefaultConfig(), signature.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return v
}

func newSubscription(props map[string]interface{}) *subscription.Subscription {
	return &subscription.Subscription{
		ID:         "sub_1",
		Endpoint:   "shop",
		ExpiresAt:  fixedNow.Add(time.Hour),
		Properties: props,
	}
}

func signedRequest(body, secret string) *trigger.Request {
	h := http.Header{}
	h.Set("Stripe-Signature", signature.SignHeader(fixedNow, []byte(body), secret, "v1"))
	return trigger.NewRequest([]byte(body), h)
}

type stubResolver struct {
	calls int32
	event *event.Event
	err   error
	last  resolver.ResolveRequest
}

func (s *stubResolver) Resolve(ctx context.Context, req resolver.ResolveRequest) (*event.Event, error) {
	atomic.AddInt32(&s.calls, 1)
	s.last = req
	return s.event, s.err
}

func TestDispatch_SnapshotEvent(t *testing.T) {
	d := New(newVerifier(t), nil)
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})

	result, err := d.Dispatch(context.Background(), sub, signedRequest(checkoutBody, testSecret))
	require.NoError(t, err)

	assert.Equal(t, []string{ChannelSnapshotEvents}, result.EventNames)
	assert.Equal(t, http.StatusOK, result.Ack.StatusCode)
	assert.Equal(t, "ok", result.Ack.Body.Status)
	assert.Equal(t, "checkout.session.completed", result.Ack.Body.EventType)
	assert.Equal(t, []string{ChannelSnapshotEvents}, result.Ack.Body.DispatchedEventNames)

	require.NotNil(t, result.Payload.Event)
	assert.Equal(t, event.KindSnapshot, result.Payload.Kind)
	assert.Equal(t, "evt_1", result.Payload.Event.ID)
	assert.Equal(t, "cs_1", result.Payload.Event.Data["id"])
}

func TestDispatch_RedeliveryIsIndependent(t *testing.T) {
	d := New(newVerifier(t), nil)
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})

	first, err := d.Dispatch(context.Background(), sub, signedRequest(checkoutBody, testSecret))
	require.NoError(t, err)
	second, err := d.Dispatch(context.Background(), sub, signedRequest(checkoutBody, testSecret))
	require.NoError(t, err)

	assert.Equal(t, first.EventNames, second.EventNames)
	assert.Equal(t, first.Ack, second.Ack)
}

func TestDispatch_ThinEventFailsWhenUpstreamFails(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer api.Close()

	v := newVerifier(t)
	r := resolver.NewThinEventResolver(v, resolver.NewStripeEventsClient(api.URL, "", time.Second), resolver.Config{})
	d := New(v, r)
	sub := newSubscription(map[string]interface{}{
		subscription.PropertyEndpointSecret: testSecret,
		subscription.PropertyAPIKey:         "sk_test_123",
	})

	result, err := d.Dispatch(context.Background(), sub, signedRequest(thinBody, testSecret))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.True(t, errors.HasType(err, errors.ErrTypeResolution))
	assert.NotContains(t, err.Error(), testSecret)
	assert.NotContains(t, err.Error(), "sk_test_123")
}

func TestDispatch_ThinEventResolved(t *testing.T) {
	var calls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer sk_sub_key", r.Header.Get("Authorization"))
		fmt.Fprint(w, resolvedBody)
	}))
	defer api.Close()

	v := newVerifier(t)
	r := resolver.NewThinEventResolver(v, resolver.NewStripeEventsClient(api.URL, "", time.Second), resolver.Config{})
	d := New(v, r, WithCredentials(DefaultCredentials("sk_provider_key")))
	sub := newSubscription(map[string]interface{}{
		subscription.PropertyEndpointSecret: testSecret,
		subscription.PropertyAPIKey:         "sk_sub_key",
	})

	result, err := d.Dispatch(context.Background(), sub, signedRequest(thinBody, testSecret))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{ChannelThinEvents}, result.EventNames)
	assert.Equal(t, "v1.billing.invoice.paid", result.Ack.Body.EventType)
	assert.Equal(t, event.KindThin, result.Payload.Kind)
	require.NotNil(t, result.Payload.Event)
	assert.Equal(t, float64(100), result.Payload.Event.Data["amount"])
}

func TestDispatch_ThinUsesProviderKeyFallback(t *testing.T) {
	stub := &stubResolver{event: &event.Event{ID: "evt_thin_1", Type: "v1.billing.invoice.paid", Kind: event.KindThin}}
	d := New(newVerifier(t), stub, WithCredentials(DefaultCredentials("sk_provider_key")))
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})

	_, err := d.Dispatch(context.Background(), sub, signedRequest(thinBody, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "sk_provider_key", stub.last.APIKey)
	assert.Equal(t, testSecret, stub.last.Secret)
	assert.Equal(t, []byte(thinBody), stub.last.Payload)
}

func TestDispatch_ThinWithoutResolver(t *testing.T) {
	d := New(newVerifier(t), nil)
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})

	_, err := d.Dispatch(context.Background(), sub, signedRequest(thinBody, testSecret))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeDispatch))
}

func TestDispatch_SecretMismatch(t *testing.T) {
	stub := &stubResolver{}
	d := New(newVerifier(t), stub)
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})
	req := signedRequest(checkoutBody, "whsec_other")

	_, err := d.Dispatch(context.Background(), sub, req)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, len(testSecret), appErr.Context["secret_length"])
	assert.Equal(t, len(req.Header.Get("Stripe-Signature")), appErr.Context["header_length"])
	assert.NotContains(t, err.Error(), testSecret)
	assert.NotContains(t, err.Error(), req.Header.Get("Stripe-Signature"))
	assert.Zero(t, stub.calls)
}

func TestDispatch_EmptyBody(t *testing.T) {
	d := New(newVerifier(t), nil)
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})

	_, err := d.Dispatch(context.Background(), sub, trigger.NewRequest(nil, nil))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "event type is empty")
}

func TestDispatch_MissingEndpointSecret(t *testing.T) {
	d := New(newVerifier(t), nil)

	_, err := d.Dispatch(context.Background(), newSubscription(nil), signedRequest(checkoutBody, testSecret))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestDispatch_TypeFanOut(t *testing.T) {
	table := DefaultChannelTable().AddType("checkout.session.completed", "checkout_completed", ChannelSnapshotEvents)
	d := New(newVerifier(t), nil, WithChannels(table))
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})

	result, err := d.Dispatch(context.Background(), sub, signedRequest(checkoutBody, testSecret))
	require.NoError(t, err)
	assert.Equal(t, []string{ChannelSnapshotEvents, "checkout_completed"}, result.EventNames)
}

func TestDispatch_CustomClassifier(t *testing.T) {
	stub := &stubResolver{event: &event.Event{ID: "evt_1", Kind: event.KindThin}}
	d := New(newVerifier(t), stub, WithClassifier(&event.PrefixClassifier{Prefix: "checkout."}),
		WithCredentials(StaticCredentials("sk_test")))
	sub := newSubscription(map[string]interface{}{subscription.PropertyEndpointSecret: testSecret})

	result, err := d.Dispatch(context.Background(), sub, signedRequest(checkoutBody, testSecret))
	require.NoError(t, err)
	assert.Equal(t, event.KindThin, result.Payload.Kind)
	assert.Equal(t, int32(1), stub.calls)
}
