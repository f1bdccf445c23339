// Package coordinator implements the control plane of an Arbiter cluster:
// it decides where file fragments go, gathers the hash extrema data nodes
// report during a shuffle, turns them into a key partition table, and
// fans phase commands out to the fleet.
//
// # Overview
//
// The coordinator owns no file data. Data nodes store fragments and run
// map and reduce work; the coordinator keeps the file catalog and tells
// nodes what to do next. The node list is static and loaded at startup.
//
//	┌──────────────────────────────────────────┐
//	│               COORDINATOR                │
//	├──────────────────────────────────────────┤
//	│  Placer       next node for a fragment   │
//	│  Barrier      per-file shuffle rounds    │
//	│  Partition    hash range table           │
//	│  Dispatcher   broadcast + point queries  │
//	│  Reaper       expires stale rounds       │
//	└──────────────────────────────────────────┘
//	        │ catalog.Catalog (file records)
//	        ▼
//	   storage.Store (memory or directory)
//
// # Fragment placement
//
// Fragments of a file are placed round robin over the fleet in fleet
// order. The next target follows the node that holds the file's last
// committed fragment; a file with no fragments starts at the first node.
// A last fragment on a node outside the fleet is reported as
// ErrInconsistentPlacement rather than guessed around.
//
// # Shuffle barrier
//
// Before a shuffle every data node reports the minimum and maximum hash of
// its keys for the file. Reports accumulate per file; the report that
// brings the count to the fleet size resolves the round:
//
//	globalMin = min(reported minimums)
//	globalMax = max(reported maximums)
//	step      = (globalMax - globalMin) / N
//	node i    owns [globalMin + i*step, globalMin + (i+1)*step)
//
// The last node's range is closed and ends exactly at globalMax. The table
// is written to the file record and the round is reset in one step under
// the file's lock; if the write fails the report is not counted.
//
// With a deadline configured, a round older than the deadline is discarded
// instead of resolved. The next report starts a fresh round, and the
// Reaper discards stale rounds nobody reports to.
//
// # Dispatch
//
// Commands travel to nodes as a JSON object with a single key naming the
// command. Broadcast sends to every node concurrently with a per-node
// timeout and returns one Outcome per node; an unreachable node never
// blocks the rest.
//
// # Usage
//
//	fleet, _ := cluster.LoadFleetConfig("data_nodes.yaml")
//	coord := coordinator.New(fleet, catalog.New(storage.NewMemoryStore()), cluster.Client{}, coordinator.Config{})
//	reg, _ := coord.RegisterFile(ctx, "words.txt", ",")
//	target, _ := coord.AppendTarget(ctx, reg.FileID)
package coordinator
