package cluster

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

// ErrNodeNotFound is returned when a node id or address is not part of the fleet.
// It is a caller-input error and must not be retried.
var ErrNodeNotFound = errors.New("node not found")

// Fleet is the fixed, ordered set of data nodes. Order matters: it drives
// round-robin placement and the order in which key ranges are handed out.
// A Fleet is immutable once built and safe for concurrent use.
type Fleet struct {
	nodes        []Node
	distribution int
}

// NewFleet builds a fleet from nodes in the given order.
func NewFleet(nodes []Node, distribution int) (*Fleet, error) {
	if len(nodes) == 0 {
		return nil, errors.New("fleet must contain at least one node")
	}
	seenID := make(map[int]bool, len(nodes))
	seenAddr := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.Address == "" {
			return nil, fmt.Errorf("node %d has no address", n.ID)
		}
		addr := HostPort(n.Address)
		if seenID[n.ID] {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		if seenAddr[addr] {
			return nil, fmt.Errorf("duplicate node address %s", addr)
		}
		seenID[n.ID] = true
		seenAddr[addr] = true
	}
	return &Fleet{nodes: slices.Clone(nodes), distribution: distribution}, nil
}

// Size returns the number of nodes N.
func (f *Fleet) Size() int {
	return len(f.nodes)
}

// Distribution is the block distribution setting handed to clients on file registration.
func (f *Fleet) Distribution() int {
	return f.distribution
}

// NodeAt returns the node at the given ordinal. It panics if ordinal is out of range.
func (f *Fleet) NodeAt(ordinal int) Node {
	return f.nodes[ordinal]
}

// IndexOf returns the ordinal of the node with the given id.
func (f *Fleet) IndexOf(id int) (int, error) {
	idx := slices.IndexFunc(f.nodes, func(n Node) bool { return n.ID == id })
	if idx < 0 {
		return -1, fmt.Errorf("node id %d: %w", id, ErrNodeNotFound)
	}
	return idx, nil
}

// AddressOf returns the address of the node with the given id.
func (f *Fleet) AddressOf(id int) (string, error) {
	idx, err := f.IndexOf(id)
	if err != nil {
		return "", err
	}
	return f.nodes[idx].Address, nil
}

// LookupByAddress finds a node by address. Both "host:port" and
// "http://host:port" spellings match.
func (f *Fleet) LookupByAddress(addr string) (Node, error) {
	want := HostPort(addr)
	idx := slices.IndexFunc(f.nodes, func(n Node) bool { return HostPort(n.Address) == want })
	if idx < 0 {
		return Node{}, fmt.Errorf("node address %q: %w", addr, ErrNodeNotFound)
	}
	return f.nodes[idx], nil
}

// Nodes returns a copy of the fleet in order.
func (f *Fleet) Nodes() []Node {
	return slices.Clone(f.nodes)
}

// URLs returns every node's base URL in fleet order.
func (f *Fleet) URLs() []string {
	urls := make([]string, len(f.nodes))
	for i, n := range f.nodes {
		urls[i] = n.URL()
	}
	return urls
}
