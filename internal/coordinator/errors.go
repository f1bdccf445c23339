package coordinator

import (
	"errors"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
)

var (
	// ErrInconsistentPlacement means a file's last fragment sits on a node
	// that is no longer in the fleet, so the next target cannot be derived.
	ErrInconsistentPlacement = errors.New("inconsistent placement")

	// ErrInvalidReport rejects a shuffle sample whose bounds make no sense.
	ErrInvalidReport = errors.New("invalid shuffle report")

	// ErrInvalidFragment rejects a fragment commit without a segment name.
	ErrInvalidFragment = errors.New("invalid fragment")

	// ErrDuplicateReport rejects a second sample from the same node within one round.
	ErrDuplicateReport = errors.New("node already reported for this shuffle round")

	// ErrBarrierTimedOut is reported for a file whose shuffle round expired
	// before every node reported.
	ErrBarrierTimedOut = errors.New("shuffle barrier timed out")

	// ErrDispatchFailed marks a command that could not be delivered to a node.
	ErrDispatchFailed = errors.New("dispatch failed")
)

// IsInputError reports whether err was caused by the caller's input
// (an unknown file or node, or a malformed request). Such errors are never retried.
func IsInputError(err error) bool {
	return errors.Is(err, catalog.ErrFileNotFound) ||
		errors.Is(err, catalog.ErrInvalidFile) ||
		errors.Is(err, cluster.ErrNodeNotFound) ||
		errors.Is(err, ErrInvalidReport) ||
		errors.Is(err, ErrInvalidFragment) ||
		errors.Is(err, ErrDuplicateReport)
}
