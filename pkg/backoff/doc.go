// Package backoff computes retry delays.
//
// Strategies are indexed by the number of failures so far (retry 0 is the
// first retry). Reconnect returns the live-connection policy: 1s, 2s, 4s, 8s,
// 16s, then 30s for every further retry.
package backoff
