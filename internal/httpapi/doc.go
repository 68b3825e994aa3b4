// Package httpapi exposes the gateway over HTTP: asset reads served
// through the dispatcher, provider administration backed by the
// registry, and health/status endpoints.
package httpapi
