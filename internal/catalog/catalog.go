// Package catalog is the coordinator's file table: which files exist,
// where their fragments live and how their key space is partitioned.
//
// Every mutation is a read-modify-write under a per-file lock, so two
// requests for the same file are serialized while requests for
// different files proceed independently.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/moby/locker"

	"github.com/dreamware/arbiter/internal/storage"
)

var (
	// ErrFileNotFound is returned for an unknown file id.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFile rejects a registration without a file name.
	ErrInvalidFile = errors.New("invalid file")
)

// StorageError reports a failure of the backing store. The operation that
// hit it has not committed anything.
type StorageError struct {
	Err    error
	Op     string
	FileID string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("catalog %s %s: %v", e.Op, e.FileID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Catalog persists file records in a storage.Store.
type Catalog struct {
	store storage.Store
	locks *locker.Locker
	now   func() time.Time
}

// New returns a catalog backed by store.
func New(store storage.Store) *Catalog {
	return &Catalog{
		store: store,
		locks: locker.New(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new, empty file record.
func (c *Catalog) Register(ctx context.Context, name, delimiter string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: file name required", ErrInvalidFile)
	}
	if delimiter == "" {
		delimiter = DefaultFieldDelimiter
	}

	now := c.now()
	f := &File{
		ID:                    uuid.New().String(),
		Name:                  name,
		FieldDelimiter:        delimiter,
		LastFragmentBlockSize: DefaultBlockSize,
		Fragments:             []Fragment{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	c.locks.Lock(f.ID)
	defer c.locks.Unlock(f.ID)
	if err := c.save(f); err != nil {
		return nil, err
	}
	log.Printf("catalog: registered file %s (%s)", f.ID, f.Name)
	return f, nil
}

// Load returns the current record for id.
func (c *Catalog) Load(ctx context.Context, id string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.load(id)
}

// Exists reports whether a file with the given id is registered.
func (c *Catalog) Exists(ctx context.Context, id string) (bool, error) {
	_, err := c.Load(ctx, id)
	if errors.Is(err, ErrFileNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List returns the ids of all registered files.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := c.store.List()
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return ids, nil
}

// View runs fn against the record while holding the file's lock. No
// concurrent Update of the same file can interleave with fn.
func (c *Catalog) View(ctx context.Context, id string, fn func(*File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.locks.Lock(id)
	defer c.locks.Unlock(id)

	f, err := c.load(id)
	if err != nil {
		return err
	}
	return fn(f)
}

// Update loads the record, applies fn and saves the result, all under the
// file's lock. If fn or the save fails nothing is written.
func (c *Catalog) Update(ctx context.Context, id string, fn func(*File) error) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.locks.Lock(id)
	defer c.locks.Unlock(id)

	f, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(f); err != nil {
		return nil, err
	}
	f.ID = id
	f.UpdatedAt = c.now()
	if err := c.save(f); err != nil {
		return nil, err
	}
	return f, nil
}

// AppendFragment commits a new fragment at the end of the file's fragment list.
func (c *Catalog) AppendFragment(ctx context.Context, id string, nodeID int, segment string) (*File, error) {
	return c.Update(ctx, id, func(f *File) error {
		f.Fragments = append(f.Fragments, Fragment{NodeID: nodeID, Segment: segment})
		return nil
	})
}

// SetKeyRanges replaces the file's partition table.
func (c *Catalog) SetKeyRanges(ctx context.Context, id string, ranges []KeyRange) (*File, error) {
	return c.Update(ctx, id, func(f *File) error {
		f.KeyRanges = append([]KeyRange(nil), ranges...)
		return nil
	})
}

func (c *Catalog) load(id string) (*File, error) {
	data, err := c.store.Get(id)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("file %s: %w", id, ErrFileNotFound)
	}
	if err != nil {
		return nil, &StorageError{Op: "load", FileID: id, Err: err}
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &StorageError{Op: "decode", FileID: id, Err: err}
	}
	return &f, nil
}

func (c *Catalog) save(f *File) error {
	data, err := json.Marshal(f)
	if err != nil {
		return &StorageError{Op: "encode", FileID: f.ID, Err: err}
	}
	if err := c.store.Put(f.ID, data); err != nil {
		return &StorageError{Op: "save", FileID: f.ID, Err: err}
	}
	return nil
}
