package signature

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"stripe-webhook-router/internal/common/errors"
)

// Header is a parsed signature header
type Header struct {
	Timestamp time.Time
	// Signatures holds the decoded signatures for each scheme in header order
	Signatures map[string][][]byte
}

// ParseHeader splits a signature header into its timestamp and signature
// entries. Entries whose value is not valid hex are skipped.
func ParseHeader(value string) (*Header, error) {
	header := &Header{Signatures: make(map[string][][]byte)}
	if strings.TrimSpace(value) == "" {
		return nil, errors.ValidationError("signature header is empty")
	}

	var haveTimestamp bool
	for _, pair := range strings.Split(value, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}

		if key == "t" {
			unix, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, errors.ValidationError("unable to parse timestamp from signature header")
			}
			header.Timestamp = time.Unix(unix, 0)
			haveTimestamp = true
			continue
		}

		sig, err := hex.DecodeString(val)
		if err != nil {
			continue
		}
		header.Signatures[key] = append(header.Signatures[key], sig)
	}

	if !haveTimestamp {
		return nil, errors.ValidationError("signature header has no timestamp")
	}
	return header, nil
}

// SignHeader produces a header value for payload signed at t under scheme
func SignHeader(t time.Time, payload []byte, secret, scheme string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return fmt.Sprintf("t=%d,%s=%s", t.Unix(), scheme, hex.EncodeToString(webhook.ComputeSignature(t, payload, secret)))
}
