package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
	"github.com/dreamware/arbiter/internal/storage"
)

// newFleet builds a fleet of n nodes with ids 10, 20, 30, ... so tests
// catch code that confuses node ids with ordinals.
func newFleet(t *testing.T, n int) *cluster.Fleet {
	t.Helper()
	nodes := make([]cluster.Node, n)
	for i := range nodes {
		nodes[i] = cluster.Node{ID: (i + 1) * 10, Address: string(rune('a'+i)) + ":8000"}
	}
	fleet, err := cluster.NewFleet(nodes, 1024)
	require.NoError(t, err)
	return fleet
}

func newCatalog() *catalog.Catalog {
	return catalog.New(storage.NewMemoryStore())
}

func registerFile(t *testing.T, cat *catalog.Catalog) *catalog.File {
	t.Helper()
	f, err := cat.Register(context.Background(), "words.txt", ",")
	require.NoError(t, err)
	return f
}

type sentCommand struct {
	payload any
	addr    string
	name    string
}

// fakeSender records every command and fails for addresses in down.
type fakeSender struct {
	down map[string]bool
	sent []sentCommand
	hash float64
	mu   sync.Mutex
}

func newFakeSender(down ...string) *fakeSender {
	s := &fakeSender{down: make(map[string]bool)}
	for _, d := range down {
		s.down[d] = true
	}
	return s
}

func (s *fakeSender) Send(ctx context.Context, addr, name string, payload any, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down[addr] {
		return errors.New("connection refused")
	}
	s.sent = append(s.sent, sentCommand{addr: addr, name: name, payload: payload})
	if out != nil {
		data, _ := json.Marshal(s.hash)
		return json.Unmarshal(data, out)
	}
	return nil
}

func (s *fakeSender) commands(name string) []sentCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentCommand
	for _, c := range s.sent {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}
