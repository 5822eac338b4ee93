package signature

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"

	"stripe-webhook-router/internal/common/errors"
)

const (
	testSecret  = "whsec_test_secret_value"
	testPayload = `{"id":"evt_1","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`
)

var fixedNow = time.Unix(1700000000, 0)

func newTestVerifier(t *testing.T, cfg Config) *Verifier {
	t.Helper()
	v, err := NewVerifier(cfg, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return v
}

func TestVerify_AcceptsSDKSignedPayload(t *testing.T) {
	v := newTestVerifier(t, DefaultConfig())

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(testPayload),
		Secret:    testSecret,
		Timestamp: fixedNow,
		Scheme:    "v1",
	})

	assert.NoError(t, v.Verify([]byte(testPayload), signed.Header, testSecret))
}

func TestVerify_SignHeaderMatchesSDK(t *testing.T) {
	header := SignHeader(fixedNow, []byte(testPayload), testSecret, "v1")
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(testPayload),
		Secret:    testSecret,
		Timestamp: fixedNow,
		Scheme:    "v1",
	})

	assert.Equal(t, signed.Header, header)
}

func TestVerify_Failures(t *testing.T) {
	v := newTestVerifier(t, DefaultConfig())
	valid := SignHeader(fixedNow, []byte(testPayload), testSecret, "v1")

	tests := []struct {
		name    string
		payload string
		header  string
		secret  string
		reason  string
	}{
		{"empty secret", testPayload, valid, "", "endpoint secret is empty"},
		{"missing header", testPayload, "", testSecret, "missing signature header"},
		{"malformed header", testPayload, "garbage", testSecret, "malformed signature header"},
		{"wrong scheme only", testPayload, strings.Replace(valid, "v1=", "v0=", 1), testSecret, "no signatures found with expected scheme"},
		{"wrong secret", testPayload, valid, "whsec_other", "no signatures found matching the expected signature for payload"},
		{"body modified", testPayload + " ", valid, testSecret, "no signatures found matching the expected signature for payload"},
		{"stale timestamp", testPayload, SignHeader(fixedNow.Add(-301*time.Second), []byte(testPayload), testSecret, "v1"), testSecret, "timestamp outside the tolerance zone"},
		{"future timestamp", testPayload, SignHeader(fixedNow.Add(301*time.Second), []byte(testPayload), testSecret, "v1"), testSecret, "timestamp outside the tolerance zone"},
		{"far future timestamp", testPayload, SignHeader(time.Unix(1<<40, 0), []byte(testPayload), testSecret, "v1"), testSecret, "timestamp outside the tolerance zone"},
		{"far past timestamp", testPayload, SignHeader(time.Unix(-(1 << 40), 0), []byte(testPayload), testSecret, "v1"), testSecret, "timestamp outside the tolerance zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify([]byte(tt.payload), tt.header, tt.secret)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, CodeSignatureInvalid, appErr.Code)
			assert.Equal(t, tt.reason, appErr.Context["reason"])
			assert.Equal(t, len(tt.secret), appErr.Context["secret_length"])
			assert.Equal(t, len(tt.header), appErr.Context["header_length"])

			if tt.secret != "" {
				assert.NotContains(t, err.Error(), tt.secret)
			}
			if tt.header != "" {
				assert.NotContains(t, err.Error(), tt.header)
			}
		})
	}
}

func TestVerify_ToleranceBoundary(t *testing.T) {
	v := newTestVerifier(t, DefaultConfig())

	header := SignHeader(fixedNow.Add(-300*time.Second), []byte(testPayload), testSecret, "v1")
	assert.NoError(t, v.Verify([]byte(testPayload), header, testSecret))
}

func TestVerify_ZeroToleranceDisablesTimestampCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = 0
	v := newTestVerifier(t, cfg)

	header := SignHeader(fixedNow.Add(-24*time.Hour), []byte(testPayload), testSecret, "v1")
	assert.NoError(t, v.Verify([]byte(testPayload), header, testSecret))
}

func TestVerify_AnyMatchingSignatureAccepted(t *testing.T) {
	v := newTestVerifier(t, DefaultConfig())

	good := SignHeader(fixedNow, []byte(testPayload), testSecret, "v1")
	bad := SignHeader(fixedNow, []byte(testPayload), "whsec_rotated_out", "v1")
	_, badSig, _ := strings.Cut(bad, ",")
	_, goodSig, _ := strings.Cut(good, ",")

	header := "t=1700000000," + badSig + "," + goodSig + ",v0=deadbeef"
	assert.NoError(t, v.Verify([]byte(testPayload), header, testSecret))
}

func TestVerify_CustomScheme(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheme = "v0"
	v := newTestVerifier(t, cfg)

	header := SignHeader(fixedNow, []byte(testPayload), testSecret, "v0")
	assert.NoError(t, v.Verify([]byte(testPayload), header, testSecret))

	header = SignHeader(fixedNow, []byte(testPayload), testSecret, "v1")
	assert.Error(t, v.Verify([]byte(testPayload), header, testSecret))
}

func TestVerifyRequest_CaseInsensitiveHeader(t *testing.T) {
	v := newTestVerifier(t, DefaultConfig())

	h := http.Header{}
	h.Set("stripe-signature", SignHeader(fixedNow, []byte(testPayload), testSecret, "v1"))

	assert.NoError(t, v.VerifyRequest([]byte(testPayload), h, testSecret))
}

func TestParseHeader(t *testing.T) {
	header, err := ParseHeader("t=1700000000, v1=00ff, v1=zz, v0=ab")
	require.NoError(t, err)
	assert.Equal(t, fixedNow, header.Timestamp)
	assert.Len(t, header.Signatures["v1"], 1)
	assert.Len(t, header.Signatures["v0"], 1)

	_, err = ParseHeader("v1=00ff")
	assert.Error(t, err)

	_, err = ParseHeader("t=notanumber,v1=00ff")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Scheme: "v1"}.Validate())
	assert.Error(t, Config{Header: "Stripe-Signature"}.Validate())
	assert.Error(t, Config{Header: "Stripe-Signature", Scheme: "v1=", Tolerance: time.Second}.Validate())
	assert.Error(t, Config{Header: "Stripe-Signature", Scheme: "v1", Tolerance: -time.Second}.Validate())
}
