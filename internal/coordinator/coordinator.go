package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
)

// Config tunes the coordinator's timing behaviour.
type Config struct {
	// DispatchTimeout bounds delivery to a single node.
	DispatchTimeout time.Duration
	// ShuffleDeadline expires shuffle rounds that wait longer than this
	// for their remaining reports. Zero waits forever.
	ShuffleDeadline time.Duration
}

// Registration is returned when a file is registered.
type Registration struct {
	FileID       string   `json:"file_id"`
	Outcomes     Outcomes `json:"outcomes"`
	Distribution int      `json:"distribution"`
}

// ShuffleOutcome is the result of a shuffle report. Outcomes is set only
// when the report resolved the barrier and the table was pushed to nodes.
type ShuffleOutcome struct {
	Outcomes Outcomes `json:"outcomes,omitempty"`
	BarrierResult
}

// Coordinator wires the fleet, the file catalog, fragment placement, the
// shuffle barrier and command dispatch into the operations clients and
// data nodes call.
type Coordinator struct {
	fleet      *cluster.Fleet
	catalog    *catalog.Catalog
	placer     *Placer
	barrier    *Barrier
	dispatcher *Dispatcher
}

// New builds a coordinator.
func New(fleet *cluster.Fleet, cat *catalog.Catalog, sender Sender, cfg Config) *Coordinator {
	placer := NewPlacer(fleet)
	return &Coordinator{
		fleet:      fleet,
		catalog:    cat,
		placer:     placer,
		barrier:    NewBarrier(fleet, cat, cfg.ShuffleDeadline),
		dispatcher: NewDispatcher(fleet, cat, placer, sender, cfg.DispatchTimeout),
	}
}

// Barrier exposes the shuffle barrier, e.g. for a Reaper.
func (c *Coordinator) Barrier() *Barrier {
	return c.barrier
}

// Fleet returns the data node fleet.
func (c *Coordinator) Fleet() *cluster.Fleet {
	return c.fleet
}

// RegisterFile records a new file and asks every node to prepare for it.
// Registration succeeds even if some nodes could not be reached; their
// failures are listed in the outcomes.
func (c *Coordinator) RegisterFile(ctx context.Context, name, delimiter string) (Registration, error) {
	f, err := c.catalog.Register(ctx, name, delimiter)
	if err != nil {
		return Registration{}, err
	}
	out, err := c.dispatcher.Broadcast(ctx, MakeFile{DestinationFile: f.Name, FileID: f.ID})
	if err != nil {
		return Registration{}, err
	}
	return Registration{
		FileID:       f.ID,
		Distribution: c.fleet.Distribution(),
		Outcomes:     out,
	}, nil
}

// FileExists reports whether the file is registered on the cluster.
func (c *Coordinator) FileExists(ctx context.Context, fileID string) (bool, error) {
	return c.catalog.Exists(ctx, fileID)
}

// FileInfo returns the file's record.
func (c *Coordinator) FileInfo(ctx context.Context, fileID string) (*catalog.File, error) {
	return c.catalog.Load(ctx, fileID)
}

// Files lists registered file ids.
func (c *Coordinator) Files(ctx context.Context) ([]string, error) {
	return c.catalog.List(ctx)
}

// AppendTarget returns the URL of the node that receives the next fragment.
func (c *Coordinator) AppendTarget(ctx context.Context, fileID string) (string, error) {
	target, err := c.dispatcher.QueryAppendTarget(ctx, fileID)
	if err != nil {
		log.Printf("append target for %s: %v", fileID, err)
		return "", err
	}
	return target, nil
}

// RefreshFragment commits a fragment a node has stored. nodeAddr may carry
// a scheme. Unknown nodes are rejected with cluster.ErrNodeNotFound.
func (c *Coordinator) RefreshFragment(ctx context.Context, fileID, nodeAddr, segment string) (*catalog.File, error) {
	node, err := c.fleet.LookupByAddress(nodeAddr)
	if err != nil {
		return nil, err
	}
	if segment == "" {
		return nil, fmt.Errorf("%w: segment name required", ErrInvalidFragment)
	}
	return c.catalog.AppendFragment(ctx, fileID, node.ID, segment)
}

// ShuffleReport feeds a node's hash extrema into the file's barrier. When
// the report completes the barrier, the new partition table is pushed to
// every node before returning.
func (c *Coordinator) ShuffleReport(ctx context.Context, fileID string, s ShuffleSample) (ShuffleOutcome, error) {
	res, err := c.barrier.Report(ctx, fileID, s)
	if err != nil {
		return ShuffleOutcome{}, err
	}
	if !res.Resolved {
		return ShuffleOutcome{BarrierResult: res}, nil
	}

	out, err := c.dispatcher.Broadcast(ctx, ShufflePush{
		FileName:  res.FileName,
		FileID:    fileID,
		NodesKeys: NodeKeysOf(res.KeyRanges),
		MaxHash:   res.GlobalMax,
	})
	if err != nil {
		return ShuffleOutcome{}, err
	}
	return ShuffleOutcome{BarrierResult: res, Outcomes: out}, nil
}

// ShuffleStatus reports the file's in-flight shuffle round. A round that
// expired yields ErrBarrierTimedOut alongside the status.
func (c *Coordinator) ShuffleStatus(ctx context.Context, fileID string) (BarrierStatus, error) {
	if _, err := c.catalog.Load(ctx, fileID); err != nil {
		return BarrierStatus{}, err
	}
	st := c.barrier.Status(fileID)
	if st.TimedOut {
		return st, fmt.Errorf("file %s: %w", fileID, ErrBarrierTimedOut)
	}
	return st, nil
}

// StartMap broadcasts the map phase request.
func (c *Coordinator) StartMap(ctx context.Context, req json.RawMessage) (Outcomes, error) {
	return c.dispatcher.Broadcast(ctx, Map{Request: req})
}

// StartReduce broadcasts the reduce phase request.
func (c *Coordinator) StartReduce(ctx context.Context, req json.RawMessage) (Outcomes, error) {
	return c.dispatcher.Broadcast(ctx, Reduce{Request: req})
}

// MapReduce broadcasts the map request and then the reduce request.
func (c *Coordinator) MapReduce(ctx context.Context, req json.RawMessage) (mapped, reduced Outcomes, err error) {
	if mapped, err = c.StartMap(ctx, req); err != nil {
		return nil, nil, err
	}
	if reduced, err = c.StartReduce(ctx, req); err != nil {
		return nil, nil, err
	}
	return mapped, reduced, nil
}

// ClearData asks every node to drop its intermediate data.
func (c *Coordinator) ClearData(ctx context.Context, req json.RawMessage) (Outcomes, error) {
	return c.dispatcher.Broadcast(ctx, ClearData{Request: req})
}

// MoveToInitFolder asks every node to move the file's fragments back to
// its input folder.
func (c *Coordinator) MoveToInitFolder(ctx context.Context, fileID string) (Outcomes, error) {
	if _, err := c.catalog.Load(ctx, fileID); err != nil {
		return nil, err
	}
	return c.dispatcher.Broadcast(ctx, MoveToInitFolder{FileID: fileID})
}

// KeyOwner locates the node responsible for key in the file's partition table.
func (c *Coordinator) KeyOwner(ctx context.Context, fileID, key string) (KeyOwner, error) {
	return c.dispatcher.QueryKeyOwner(ctx, fileID, key)
}
