// Package history persists finished conversion batches in a local SQLite
// database so past results survive restarts. Only terminal outcomes are
// recorded; retention is bounded by a keep-last policy.
package history
