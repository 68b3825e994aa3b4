// Package monitor implements the polling baseline for a fixed asset set.
//
// The monitor fetches through the dispatcher immediately on start and then
// on a fixed interval, computing per-asset deltas against the previous
// cycle. Fetch failures fall back to the last good in-memory data; before
// any cycle has succeeded a static placeholder dataset is served, marked so
// callers can tell it apart from live data.
package monitor
