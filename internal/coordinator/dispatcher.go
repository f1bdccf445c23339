package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
)

// DefaultDispatchTimeout bounds each node's delivery during a broadcast.
const DefaultDispatchTimeout = 4 * time.Second

// Sender delivers a named command to one node. cluster.Client implements it.
type Sender interface {
	Send(ctx context.Context, addr, name string, payload any, out any) error
}

// Outcome is the delivery result of a broadcast to one node.
type Outcome struct {
	Err     error  `json:"-"`
	Address string `json:"data_node_address"`
	Error   string `json:"error,omitempty"`
	NodeID  int    `json:"data_node_id"`
}

// OK reports whether delivery succeeded. It also holds for outcomes
// decoded from JSON, which carry only the Error text.
func (o Outcome) OK() bool { return o.Err == nil && o.Error == "" }

// Outcomes holds one Outcome per fleet node, in fleet order.
type Outcomes []Outcome

// Failed returns the outcomes whose delivery failed.
func (oc Outcomes) Failed() Outcomes {
	var failed Outcomes
	for _, o := range oc {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// KeyOwner answers where a key lives: the node-local hash of the key
// together with the file's partition table.
type KeyOwner struct {
	Owner     string             `json:"data_node_address,omitempty"`
	KeyRanges []catalog.KeyRange `json:"key_ranges"`
	HashKey   float64            `json:"hash_key"`
}

// Dispatcher sends phase commands to the fleet and answers point queries.
type Dispatcher struct {
	fleet   *cluster.Fleet
	catalog *catalog.Catalog
	placer  *Placer
	sender  Sender
	timeout time.Duration
}

// NewDispatcher returns a dispatcher. A non-positive timeout selects
// DefaultDispatchTimeout.
func NewDispatcher(fleet *cluster.Fleet, cat *catalog.Catalog, placer *Placer, sender Sender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Dispatcher{
		fleet:   fleet,
		catalog: cat,
		placer:  placer,
		sender:  sender,
		timeout: timeout,
	}
}

// Broadcast delivers cmd to every node concurrently. Each node gets its own
// timeout and a failing node never prevents delivery to the others. The
// returned error is non-nil only when cmd cannot be encoded.
func (d *Dispatcher) Broadcast(ctx context.Context, cmd Command) (Outcomes, error) {
	name, payload, err := Encode(cmd)
	if err != nil {
		return nil, err
	}

	nodes := d.fleet.Nodes()
	out := make(Outcomes, len(nodes))

	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n cluster.Node) {
			defer wg.Done()

			nctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			res := Outcome{NodeID: n.ID, Address: n.Address}
			if err := d.sender.Send(nctx, n.Address, name, payload, nil); err != nil {
				res.Err = fmt.Errorf("%w: %w", ErrDispatchFailed, err)
				res.Error = err.Error()
				log.Printf("dispatch: %s to node %d (%s) failed: %v", name, n.ID, n.Address, err)
			}
			out[i] = res
		}(i, n)
	}
	wg.Wait()

	if failed := out.Failed(); len(failed) > 0 {
		log.Printf("dispatch: %s delivered to %d/%d nodes", name, len(out)-len(failed), len(out))
	}
	return out, nil
}

// QueryAppendTarget returns the URL of the node that should receive the
// file's next fragment. The decision is taken under the file's lock so it
// reads the last committed fragment.
func (d *Dispatcher) QueryAppendTarget(ctx context.Context, fileID string) (string, error) {
	var target cluster.Node
	err := d.catalog.View(ctx, fileID, func(f *catalog.File) error {
		node, err := d.placer.NextTarget(f)
		if err != nil {
			return err
		}
		target = node
		return nil
	})
	if err != nil {
		return "", err
	}
	return target.URL(), nil
}

// QueryKeyOwner asks the fleet's first node for the hash of key and pairs
// it with the file's current partition table.
func (d *Dispatcher) QueryKeyOwner(ctx context.Context, fileID, key string) (KeyOwner, error) {
	f, err := d.catalog.Load(ctx, fileID)
	if err != nil {
		return KeyOwner{}, err
	}

	name, payload, err := Encode(HashOfKey{Key: key})
	if err != nil {
		return KeyOwner{}, err
	}

	qctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	node := d.fleet.NodeAt(0)
	var hash float64
	if err := d.sender.Send(qctx, node.Address, name, payload, &hash); err != nil {
		return KeyOwner{}, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	owner, _ := OwnerOf(f.KeyRanges, hash)
	return KeyOwner{
		KeyRanges: f.KeyRanges,
		HashKey:   hash,
		Owner:     owner,
	}, nil
}
