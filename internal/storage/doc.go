// Package storage provides the record stores behind the file catalog.
//
// # Overview
//
// The catalog persists one JSON document per file. Which medium holds
// those documents is a deployment choice, so the catalog talks to the
// small Store interface and never to a concrete backend:
//
//	┌─────────────────────────────────────┐
//	│            catalog.Catalog          │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│           Store interface           │
//	│        Get / Put / List             │
//	└─────────────────────────────────────┘
//	          │                 │
//	          ▼                 ▼
//	    ┌──────────┐      ┌──────────┐
//	    │  Memory  │      │   Bolt   │
//	    │  Store   │      │  Store   │
//	    └──────────┘      └──────────┘
//
// # Implementations
//
// MemoryStore: map guarded by sync.RWMutex
//   - No persistence (data lost on restart)
//   - Used by tests and single-run deployments
//
// BoltStore: one bbolt bucket in a single database file
//   - Survives restarts
//   - Each Put is a transaction, so a crash never leaves a torn record
//   - The file is locked; one coordinator process owns it at a time
//
// # Concurrency
//
// Both implementations are safe for concurrent use. Neither provides
// read-modify-write atomicity across calls; the catalog layers per-file
// locking on top for that.
//
// # Errors
//
// Get returns ErrKeyNotFound for a missing key. Every other error is an
// I/O failure the catalog reports as a storage error.
package storage
