package coordinator

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/moby/locker"
	"golang.org/x/exp/slices"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
)

// ShuffleSample is one node's local hash extrema after its map phase.
// NodeAddress is optional; when set, each node may report once per round.
type ShuffleSample struct {
	NodeAddress string  `json:"node_address,omitempty"`
	MinHash     float64 `json:"min_hash"`
	MaxHash     float64 `json:"max_hash"`
}

// BarrierResult is the outcome of a single report. Until every node of
// the fleet has reported, Resolved is false and only the counters are set.
type BarrierResult struct {
	FileName  string             `json:"file_name,omitempty"`
	KeyRanges []catalog.KeyRange `json:"key_ranges,omitempty"`
	GlobalMin float64            `json:"global_min"`
	GlobalMax float64            `json:"global_max"`
	Step      float64            `json:"step"`
	Reporting int                `json:"reporting"`
	Needed    int                `json:"needed"`
	Resolved  bool               `json:"resolved"`
}

// BarrierStatus describes the in-flight shuffle round of a file.
type BarrierStatus struct {
	StartedAt time.Time `json:"started_at"`
	Reporting int       `json:"reporting"`
	Needed    int       `json:"needed"`
	TimedOut  bool      `json:"timed_out"`
}

// shuffleReport accumulates samples for one file between the end of the
// map phase and resolution.
type shuffleReport struct {
	startedAt time.Time
	nodes     map[string]bool
	mins      []float64
	maxs      []float64
}

// Barrier waits for every fleet node to report its local hash extrema for
// a file, then turns them into the file's partition table.
//
// State is per file. Reports for one file are serialized by a per-file
// lock held across accumulation, resolution and persistence; reports for
// different files never wait on each other.
type Barrier struct {
	fleet    *cluster.Fleet
	catalog  *catalog.Catalog
	locks    *locker.Locker
	reports  map[string]*shuffleReport
	timedOut map[string]time.Time
	now      func() time.Time
	deadline time.Duration
	mu       sync.Mutex // Protects reports and timedOut
}

// NewBarrier returns a barrier over fleet. A zero deadline disables round expiry.
func NewBarrier(fleet *cluster.Fleet, cat *catalog.Catalog, deadline time.Duration) *Barrier {
	return &Barrier{
		fleet:    fleet,
		catalog:  cat,
		locks:    locker.New(),
		reports:  make(map[string]*shuffleReport),
		timedOut: make(map[string]time.Time),
		now:      time.Now,
		deadline: deadline,
	}
}

// Report adds a sample to the file's current round, starting one if needed.
// The report that completes the round computes and persists the partition
// table and resets the round. If persisting fails the completing sample is
// not counted and the error is returned.
func (b *Barrier) Report(ctx context.Context, fileID string, s ShuffleSample) (BarrierResult, error) {
	if !finite(s.MinHash) || !finite(s.MaxHash) {
		return BarrierResult{}, fmt.Errorf("%w: non-finite hash in [%v, %v]", ErrInvalidReport, s.MinHash, s.MaxHash)
	}
	if s.MinHash > s.MaxHash {
		return BarrierResult{}, fmt.Errorf("%w: min %v > max %v", ErrInvalidReport, s.MinHash, s.MaxHash)
	}
	var nodeKey string
	if s.NodeAddress != "" {
		node, err := b.fleet.LookupByAddress(s.NodeAddress)
		if err != nil {
			return BarrierResult{}, err
		}
		nodeKey = cluster.HostPort(node.Address)
	}

	b.locks.Lock(fileID)
	defer b.locks.Unlock(fileID)

	f, err := b.catalog.Load(ctx, fileID)
	if err != nil {
		return BarrierResult{}, err
	}

	needed := b.fleet.Size()
	rep := b.current(fileID)

	if nodeKey != "" && rep.nodes[nodeKey] {
		return BarrierResult{}, fmt.Errorf("%w: %s", ErrDuplicateReport, nodeKey)
	}

	mins := append(slices.Clone(rep.mins), s.MinHash)
	maxs := append(slices.Clone(rep.maxs), s.MaxHash)

	if len(mins) < needed {
		b.mu.Lock()
		rep.mins, rep.maxs = mins, maxs
		if nodeKey != "" {
			rep.nodes[nodeKey] = true
		}
		b.mu.Unlock()
		return BarrierResult{Reporting: len(mins), Needed: needed}, nil
	}

	globalMin := slices.Min(mins)
	globalMax := slices.Max(maxs)
	table := BuildPartitionTable(b.fleet.Nodes(), globalMin, globalMax)

	if _, err := b.catalog.SetKeyRanges(ctx, fileID, table); err != nil {
		return BarrierResult{}, fmt.Errorf("persist key ranges: %w", err)
	}

	b.mu.Lock()
	delete(b.reports, fileID)
	b.mu.Unlock()

	log.Printf("barrier: file %s resolved over %d nodes, hash range [%v, %v]",
		fileID, needed, globalMin, globalMax)

	return BarrierResult{
		Resolved:  true,
		Reporting: needed,
		Needed:    needed,
		FileName:  f.Name,
		GlobalMin: globalMin,
		GlobalMax: globalMax,
		Step:      partitionStep(globalMin, globalMax, needed),
		KeyRanges: table,
	}, nil
}

// current returns the file's active round, replacing it if it has outlived
// the deadline. Callers hold the file lock.
func (b *Barrier) current(fileID string) *shuffleReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	rep, ok := b.reports[fileID]
	if ok && b.expired(rep, now) {
		log.Printf("barrier: file %s round expired with %d/%d reports, starting over",
			fileID, len(rep.mins), b.fleet.Size())
		ok = false
	}
	if !ok {
		rep = &shuffleReport{startedAt: now, nodes: make(map[string]bool)}
		b.reports[fileID] = rep
		delete(b.timedOut, fileID)
	}
	return rep
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (b *Barrier) expired(rep *shuffleReport, now time.Time) bool {
	return b.deadline > 0 && now.Sub(rep.startedAt) > b.deadline
}

// Status returns the state of the file's current round.
func (b *Barrier) Status(fileID string) BarrierStatus {
	b.locks.Lock(fileID)
	defer b.locks.Unlock(fileID)

	b.mu.Lock()
	defer b.mu.Unlock()

	st := BarrierStatus{Needed: b.fleet.Size()}
	if _, ok := b.timedOut[fileID]; ok {
		st.TimedOut = true
		return st
	}
	if rep, ok := b.reports[fileID]; ok {
		st.Reporting = len(rep.mins)
		st.StartedAt = rep.startedAt
		st.TimedOut = b.expired(rep, b.now())
	}
	return st
}

// Expire discards every round older than the deadline and returns the
// affected file ids. Those files report TimedOut until a new sample
// arrives.
func (b *Barrier) Expire() []string {
	if b.deadline <= 0 {
		return nil
	}

	b.mu.Lock()
	now := b.now()
	var candidates []string
	for id, rep := range b.reports {
		if b.expired(rep, now) {
			candidates = append(candidates, id)
		}
	}
	b.mu.Unlock()

	var expired []string
	for _, id := range candidates {
		b.locks.Lock(id)
		b.mu.Lock()
		if rep, ok := b.reports[id]; ok && b.expired(rep, b.now()) {
			delete(b.reports, id)
			b.timedOut[id] = now
			expired = append(expired, id)
			log.Printf("barrier: file %s timed out with %d/%d reports", id, len(rep.mins), b.fleet.Size())
		}
		b.mu.Unlock()
		b.locks.Unlock(id)
	}
	return expired
}
