package trigger

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]interface{}
	}{
		{"object", `{"type":"customer.created"}`, map[string]interface{}{"type": "customer.created"}},
		{"empty", ``, map[string]interface{}{}},
		{"invalid", `{"type":`, map[string]interface{}{}},
		{"array", `[1,2]`, map[string]interface{}{}},
		{"null", `null`, map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRequest([]byte(tt.body), nil)
			assert.Equal(t, tt.want, r.JSON())
			assert.Equal(t, tt.body, string(r.Body))
		})
	}
}

func TestRequestHeaderLookupIsCaseInsensitive(t *testing.T) {
	h := http.Header{}
	h.Set("stripe-signature", "t=1,v1=00")

	r := NewRequest(nil, h)
	assert.Equal(t, "t=1,v1=00", r.Header.Get("Stripe-Signature"))
}
