package coordinator

import (
	"fmt"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
)

// Placer picks the data node that receives a file's next fragment.
//
// Placement is round-robin over fleet order and is derived entirely from
// the file's fragment history: the node after the one holding the last
// fragment, wrapping to ordinal 0. There is no stored cursor, so the
// answer can always be recomputed from the catalog record alone.
type Placer struct {
	fleet *cluster.Fleet
}

// NewPlacer returns a placer over fleet.
func NewPlacer(fleet *cluster.Fleet) *Placer {
	return &Placer{fleet: fleet}
}

// NextTarget returns the node for the file's next fragment.
// It fails with ErrInconsistentPlacement when the last fragment's node
// has left the fleet.
func (p *Placer) NextTarget(f *catalog.File) (cluster.Node, error) {
	last, ok := f.LastFragment()
	if !ok {
		return p.fleet.NodeAt(0), nil
	}
	idx, err := p.fleet.IndexOf(last.NodeID)
	if err != nil {
		return cluster.Node{}, fmt.Errorf("file %s: last fragment on node %d: %w",
			f.ID, last.NodeID, ErrInconsistentPlacement)
	}
	return p.fleet.NodeAt((idx + 1) % p.fleet.Size()), nil
}
