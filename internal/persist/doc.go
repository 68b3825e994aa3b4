// Package persist provides durable storage for the gateway's serialized
// state documents (provider list, cache snapshot).
//
// Each document is a single JSON blob stored under a fixed key. Two backends
// are provided:
//   - File: one file per key under a local directory (the default)
//   - Postgres: one row per key in a documents table (pgx pool)
package persist
