package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// DefaultFieldDelimiter separates fields within a record of a file.
	DefaultFieldDelimiter = ","
	// DefaultBlockSize is the block size assumed for a file's last fragment.
	DefaultBlockSize = 1024
)

// File is the coordinator's authoritative record of a logical file.
// Data nodes hold fragments but never a copy of this record.
type File struct {
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	ID                    string     `json:"id"`
	Name                  string     `json:"file_name"`
	FieldDelimiter        string     `json:"field_delimiter"`
	KeyRanges             []KeyRange `json:"key_ranges"`
	Fragments             []Fragment `json:"file_fragments"`
	LastFragmentBlockSize int        `json:"last_fragment_block_size"`
	Locked                bool       `json:"lock"`
}

// LastFragment returns the most recently appended fragment.
func (f *File) LastFragment() (Fragment, bool) {
	if len(f.Fragments) == 0 {
		return Fragment{}, false
	}
	return f.Fragments[len(f.Fragments)-1], true
}

// Fragment records that a named segment of the file lives on a node.
// It is encoded as a single-entry object, {"<node_id>": "<segment_name>"},
// which is the shape data nodes and existing file tables use.
type Fragment struct {
	Segment string
	NodeID  int
}

func (fr Fragment) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{strconv.Itoa(fr.NodeID): fr.Segment})
}

func (fr *Fragment) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return errors.New("fragment must have exactly one node entry")
	}
	for k, v := range m {
		id, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("fragment node id %q: %w", k, err)
		}
		fr.NodeID = id
		fr.Segment = v
	}
	return nil
}

// KeyRange assigns a contiguous slice of the hash key space to a data node.
// HashKeysRange is [lower, upper]; all but the last range of a table are
// half-open at upper.
type KeyRange struct {
	DataNodeAddress string     `json:"data_node_address"`
	HashKeysRange   [2]float64 `json:"hash_keys_range"`
}

// Lower returns the inclusive lower bound.
func (k KeyRange) Lower() float64 { return k.HashKeysRange[0] }

// Upper returns the upper bound.
func (k KeyRange) Upper() float64 { return k.HashKeysRange[1] }
