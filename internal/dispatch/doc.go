// Package dispatch implements the request dispatcher: cache lookup,
// provider selection, and strictly ordered fallback across enabled
// providers.
//
// Guarantees:
//   - Candidates are tried in ascending priority order, never in parallel;
//     each attempt carries its own timeout so a hung provider cannot block
//     the chain indefinitely.
//   - A rate-limited provider is skipped for the remainder of its window,
//     not just the failing call.
//   - Identical concurrent misses collapse into one upstream call
//     (singleflight).
//   - Cache population is detached from the caller's lifetime: an abandoned
//     call still completes and warms the cache.
package dispatch
