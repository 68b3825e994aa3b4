// Package store implements the gateway's time-boxed cache.
//
// The store keeps serialized JSON payloads with absolute expiry timestamps.
// A background sweep evicts expired entries on a fixed period and re-saves
// the durable snapshot only when something was actually removed. On startup
// the persisted snapshot is loaded with already-expired entries dropped, so
// stale data is never served after a restart. A corrupt snapshot is logged
// and discarded rather than failing the process.
package store
