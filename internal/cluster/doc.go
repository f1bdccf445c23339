// Package cluster describes the data node fleet the coordinator works with
// and the HTTP/JSON plumbing used to talk to it.
//
// # Overview
//
// The fleet is static. It is read once at startup from a YAML (or JSON)
// file and never changes for the lifetime of the process:
//
//	              ┌──────────────┐
//	              │ Coordinator  │
//	              │              │
//	              │ - Catalog    │
//	              │ - Barrier    │
//	              │ - Dispatcher │
//	              └──────┬───────┘
//	                     │
//	      ┌──────────────┼──────────────┐
//	      │              │              │
//	┌─────▼─────┐ ┌─────▼─────┐ ┌─────▼─────┐
//	│ ordinal 0 │ │ ordinal 1 │ │ ordinal 2 │
//	│  id: 1    │ │  id: 2    │ │  id: 3    │
//	└───────────┘ └───────────┘ └───────────┘
//
// Fleet order is significant. Fragment placement walks it round-robin and
// the shuffle partition table assigns key ranges to nodes in this order.
// Ordinal 0 additionally answers key-hash queries on behalf of the cluster.
//
// # Identity
//
// A Node is identified by its integer ID. Addresses are stored as
// "host:port"; lookups accept "http://host:port" too, since data nodes
// report themselves with a scheme.
//
// # Communication Protocol
//
// Data nodes expose a single JSON endpoint at their base URL. The command
// is selected by the only top-level key of the body:
//
//	POST http://10.0.0.11:8001
//	{"clear_data": {"file_name": "words.txt"}}
//
// Client.Send builds that envelope. Requests time out after 5 seconds
// unless the context expires first.
//
// # Failure Handling
//
// Unknown ids and addresses yield ErrNodeNotFound. The fleet performs no
// health checking; a node that stops answering simply fails the requests
// sent to it.
package cluster
