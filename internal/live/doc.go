// Package live implements the push-style update layer: one shared
// websocket connection to the upstream price stream and a fan-out
// subscription hub that delivers each event to every registered handler.
//
// Connection rules:
//   - the connection is a single shared resource; Connect is idempotent
//   - handlers for a topic run in registration order; a panicking handler
//     is isolated and never blocks delivery to the rest
//   - removing the last handler for a topic does not close the connection
//
// Each inbound price event is patched into the shared snapshot before
// subscribers are notified.
package live
