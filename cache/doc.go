// Package cache provides key to wrapper stores for memoized results.
//
// It provides a Store interface with an in-memory and a directory-backed
// implementation, key validation, a process-wide active store, and a small
// configuration layer for choosing a backend.
package cache
