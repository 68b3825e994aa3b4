// Package provider defines the adapter contract every upstream data
// provider implements, plus the shared authenticated HTTP client adapters
// are built on.
//
// Each adapter owns exactly one upstream wire format: it builds the
// authenticated request from its ProviderConfig (header or query credential
// placement), parses the response, and maps every canonical field,
// substituting nil for fields the provider does not expose. Adapters are
// side-effect free with respect to the cache and registry; provider
// selection and caching belong to the dispatcher.
package provider
