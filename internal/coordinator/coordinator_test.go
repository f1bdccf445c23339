package coordinator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
)

func newCoordinator(t *testing.T, sender Sender, cfg Config) (*Coordinator, *cluster.Fleet) {
	t.Helper()
	fleet := newFleet(t, 3)
	return New(fleet, newCatalog(), sender, cfg), fleet
}

// TestFileLifecycle walks a file through registration, appends, the
// shuffle barrier and a key lookup on a three node fleet.
func TestFileLifecycle(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	sender.hash = 25
	c, fleet := newCoordinator(t, sender, Config{})

	reg, err := c.RegisterFile(ctx, "words.txt", "")
	require.NoError(t, err)
	assert.Equal(t, 1024, reg.Distribution)
	assert.Len(t, reg.Outcomes, 3)
	assert.Len(t, sender.commands(CmdMakeFile), 3)

	exists, err := c.FileExists(ctx, reg.FileID)
	require.NoError(t, err)
	assert.True(t, exists)

	// Appends cycle A, B, C, A, B, C.
	for i := 0; i < 6; i++ {
		target, err := c.AppendTarget(ctx, reg.FileID)
		require.NoError(t, err)
		assert.Equal(t, fleet.NodeAt(i%3).URL(), target)

		_, err = c.RefreshFragment(ctx, reg.FileID, target, "segment")
		require.NoError(t, err)
	}

	info, err := c.FileInfo(ctx, reg.FileID)
	require.NoError(t, err)
	require.Len(t, info.Fragments, 6)
	assert.Equal(t, 10, info.Fragments[0].NodeID)
	assert.Equal(t, 30, info.Fragments[5].NodeID)

	samples := []ShuffleSample{
		{NodeAddress: "a:8000", MinHash: 2, MaxHash: 20},
		{NodeAddress: "b:8000", MinHash: 5, MaxHash: 30},
		{NodeAddress: "c:8000", MinHash: 1, MaxHash: 10},
	}
	var last ShuffleOutcome
	for i, s := range samples {
		last, err = c.ShuffleReport(ctx, reg.FileID, s)
		require.NoError(t, err)
		if i < 2 {
			assert.False(t, last.Resolved)
			assert.Empty(t, last.Outcomes)
			assert.Empty(t, sender.commands(CmdShufflePush))
		}
	}
	require.True(t, last.Resolved)
	assert.Len(t, last.Outcomes, 3)

	pushes := sender.commands(CmdShufflePush)
	require.Len(t, pushes, 3)
	push := pushes[0].payload.(ShufflePush)
	assert.Equal(t, "words.txt", push.FileName)
	assert.Equal(t, 30.0, push.MaxHash)
	require.Len(t, push.NodesKeys, 3)
	assert.Equal(t, "c:8000", push.NodesKeys[2].DataNodeIP)
	assert.Equal(t, last.KeyRanges[2].HashKeysRange, push.NodesKeys[2].HashKeysRange)

	owner, err := c.KeyOwner(ctx, reg.FileID, "apple")
	require.NoError(t, err)
	assert.Equal(t, 25.0, owner.HashKey)
	assert.Equal(t, "c:8000", owner.Owner)
	assert.Equal(t, last.KeyRanges, owner.KeyRanges)
}

func TestFileInfoIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newCoordinator(t, newFakeSender(), Config{})

	reg, err := c.RegisterFile(ctx, "words.txt", ";")
	require.NoError(t, err)
	_, err = c.RefreshFragment(ctx, reg.FileID, "http://a:8000", "words_0.txt")
	require.NoError(t, err)

	first, err := c.FileInfo(ctx, reg.FileID)
	require.NoError(t, err)
	second, err := c.FileInfo(ctx, reg.FileID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, ";", first.FieldDelimiter)
}

func TestRefreshFragmentErrors(t *testing.T) {
	ctx := context.Background()
	c, _ := newCoordinator(t, newFakeSender(), Config{})
	reg, err := c.RegisterFile(ctx, "words.txt", "")
	require.NoError(t, err)

	_, err = c.RefreshFragment(ctx, reg.FileID, "http://unknown:1", "seg")
	assert.ErrorIs(t, err, cluster.ErrNodeNotFound)
	assert.True(t, IsInputError(err))

	_, err = c.RefreshFragment(ctx, reg.FileID, "a:8000", "")
	assert.ErrorIs(t, err, ErrInvalidFragment)

	_, err = c.RefreshFragment(ctx, "missing", "a:8000", "seg")
	assert.ErrorIs(t, err, catalog.ErrFileNotFound)

	info, err := c.FileInfo(ctx, reg.FileID)
	require.NoError(t, err)
	assert.Empty(t, info.Fragments)
}

func TestRegisterWithUnreachableNode(t *testing.T) {
	ctx := context.Background()
	c, _ := newCoordinator(t, newFakeSender("b:8000"), Config{})

	reg, err := c.RegisterFile(ctx, "words.txt", "")
	require.NoError(t, err)

	failed := reg.Outcomes.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b:8000", failed[0].Address)

	exists, err := c.FileExists(ctx, reg.FileID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPhaseCommands(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	c, _ := newCoordinator(t, sender, Config{})
	req := json.RawMessage(`{"file_id":"f1","mapper":"wordcount"}`)

	out, err := c.StartMap(ctx, req)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	out, err = c.StartReduce(ctx, req)
	require.NoError(t, err)
	assert.Len(t, out, 3)

	mapped, reduced, err := c.MapReduce(ctx, req)
	require.NoError(t, err)
	assert.Len(t, mapped, 3)
	assert.Len(t, reduced, 3)

	out, err = c.ClearData(ctx, json.RawMessage(`{"file_name":"words.txt"}`))
	require.NoError(t, err)
	assert.Empty(t, out.Failed())

	assert.Len(t, sender.commands(CmdMap), 6)
	assert.Len(t, sender.commands(CmdReduce), 6)
	assert.Len(t, sender.commands(CmdClearData), 3)
	assert.Equal(t, req, sender.commands(CmdMap)[0].payload)
}

func TestMoveToInitFolder(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	c, _ := newCoordinator(t, sender, Config{})
	reg, err := c.RegisterFile(ctx, "words.txt", "")
	require.NoError(t, err)

	out, err := c.MoveToInitFolder(ctx, reg.FileID)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, MoveToInitFolder{FileID: reg.FileID}, sender.commands(CmdMoveToInitFolder)[0].payload)

	_, err = c.MoveToInitFolder(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrFileNotFound)
}

func TestShuffleStatusTimedOut(t *testing.T) {
	ctx := context.Background()
	c, _ := newCoordinator(t, newFakeSender(), Config{ShuffleDeadline: time.Minute})
	reg, err := c.RegisterFile(ctx, "words.txt", "")
	require.NoError(t, err)

	now := time.Now()
	c.Barrier().now = func() time.Time { return now }

	_, err = c.ShuffleReport(ctx, reg.FileID, ShuffleSample{MinHash: 0, MaxHash: 1})
	require.NoError(t, err)

	st, err := c.ShuffleStatus(ctx, reg.FileID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Reporting)
	assert.Equal(t, 3, st.Needed)

	now = now.Add(time.Hour)
	c.Barrier().Expire()

	_, err = c.ShuffleStatus(ctx, reg.FileID)
	assert.ErrorIs(t, err, ErrBarrierTimedOut)

	_, err = c.ShuffleStatus(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrFileNotFound)
}

func TestFiles(t *testing.T) {
	ctx := context.Background()
	c, _ := newCoordinator(t, newFakeSender(), Config{})

	reg, err := c.RegisterFile(ctx, "words.txt", "")
	require.NoError(t, err)

	ids, err := c.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{reg.FileID}, ids)
	assert.Equal(t, 3, c.Fleet().Size())
}

func TestRegisterWithoutName(t *testing.T) {
	sender := newFakeSender()
	c, _ := newCoordinator(t, sender, Config{})

	_, err := c.RegisterFile(context.Background(), "", ",")
	assert.ErrorIs(t, err, catalog.ErrInvalidFile)
	assert.True(t, IsInputError(err))
	assert.Empty(t, sender.commands(CmdMakeFile))
}
