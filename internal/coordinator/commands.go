package coordinator

import (
	"encoding/json"
	"fmt"

	"github.com/dreamware/arbiter/internal/catalog"
)

// Command names as data nodes recognise them. A node reads the single
// top-level key of the request body to decide what to do.
const (
	CmdMakeFile         = "make_file"
	CmdMap              = "map"
	CmdReduce           = "reduce"
	CmdShufflePush      = "shuffle"
	CmdClearData        = "clear_data"
	CmdMoveToInitFolder = "move_file_to_init_folder"
	CmdHashOfKey        = "get_hash_of_key"
)

// Command is one of the messages the coordinator sends to data nodes.
// The set is closed: only the types in this file implement it.
type Command interface {
	isCommand()
}

// MakeFile tells every node to prepare storage for a newly registered file.
type MakeFile struct {
	DestinationFile string `json:"destination_file"`
	FileID          string `json:"file_id"`
}

// Map starts the map phase. The request is forwarded to nodes untouched.
type Map struct {
	Request json.RawMessage
}

// Reduce starts the reduce phase. The request is forwarded to nodes untouched.
type Reduce struct {
	Request json.RawMessage
}

// ShufflePush hands every node the resolved partition table of a file.
type ShufflePush struct {
	FileName  string     `json:"file_name"`
	FileID    string     `json:"file_id"`
	NodesKeys []NodeKeys `json:"nodes_keys"`
	MaxHash   float64    `json:"max_hash"`
}

// NodeKeys is one partition table entry as data nodes read it.
type NodeKeys struct {
	DataNodeIP    string     `json:"data_node_ip"`
	HashKeysRange [2]float64 `json:"hash_keys_range"`
}

// NodeKeysOf converts a partition table to its node wire form.
func NodeKeysOf(ranges []catalog.KeyRange) []NodeKeys {
	out := make([]NodeKeys, len(ranges))
	for i, r := range ranges {
		out[i] = NodeKeys{DataNodeIP: r.DataNodeAddress, HashKeysRange: r.HashKeysRange}
	}
	return out
}

// ClearData asks nodes to drop intermediate data.
type ClearData struct {
	Request json.RawMessage
}

// MoveToInitFolder asks nodes to move a file's fragments back to the input area.
type MoveToInitFolder struct {
	FileID string `json:"file_id"`
}

// HashOfKey asks a node for its hash of Key.
type HashOfKey struct {
	Key string
}

func (MakeFile) isCommand()         {}
func (Map) isCommand()              {}
func (Reduce) isCommand()           {}
func (ShufflePush) isCommand()      {}
func (ClearData) isCommand()        {}
func (MoveToInitFolder) isCommand() {}
func (HashOfKey) isCommand()        {}

// Encode returns the wire name and payload for cmd.
func Encode(cmd Command) (string, any, error) {
	switch c := cmd.(type) {
	case MakeFile:
		return CmdMakeFile, c, nil
	case Map:
		return CmdMap, rawOrEmpty(c.Request), nil
	case Reduce:
		return CmdReduce, rawOrEmpty(c.Request), nil
	case ShufflePush:
		return CmdShufflePush, c, nil
	case ClearData:
		return CmdClearData, rawOrEmpty(c.Request), nil
	case MoveToInitFolder:
		return CmdMoveToInitFolder, c, nil
	case HashOfKey:
		return CmdHashOfKey, c.Key, nil
	default:
		return "", nil, fmt.Errorf("unknown command %T", cmd)
	}
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
