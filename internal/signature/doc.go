// Package signature verifies Stripe-style signed webhook payloads.
//
// A signature header has the form
//
//	t=1700000000,v1=5257a869e7ec...,v0=6ffbb59b2300...
//
// where t is the unix signing time and each v1 entry is the lowercase hex
// HMAC-SHA256 of "<t>.<raw body>" keyed with the endpoint secret. A payload
// is accepted when any entry of the configured scheme matches and t lies
// within the configured tolerance of the current time.
//
// The same Verifier backs snapshot dispatch, thin-event resolution and the
// per-handler re-verification, so every call site agrees on what "valid"
// means. Secrets and header values never appear in returned errors; only
// their lengths do.
package signature
