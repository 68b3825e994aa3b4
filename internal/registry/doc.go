// Package registry manages upstream provider configuration.
//
// The registry is the single source of truth for which providers the
// dispatcher may call and in what order. Every mutation persists the full
// provider list as one JSON document before returning, and the in-memory
// list is replaced wholesale under a write lock so concurrent readers never
// observe a partial update.
package registry
