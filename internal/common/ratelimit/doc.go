// Package ratelimit limits inbound webhook deliveries per key.
//
// Two backends are available:
//
//   - local: a token bucket per key using golang.org/x/time/rate. Buckets idle
//     for longer than the cleanup period are dropped.
//   - distributed: a sliding window per key stored in Redis, shared by every
//     instance of the router.
//
// The distributed limiter fails open: when Redis cannot be reached the
// request is allowed and the error is returned for logging.
package ratelimit
