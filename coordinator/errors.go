package coordinator

import (
	"errors"
)

var (
	// ErrNotBuilt is returned by Search when the coordinator has not
	// completed a build (state is Empty or Trained, not Populated).
	ErrNotBuilt = errors.New("coordinator: index not built")
	// ErrInvalidState is returned by operations invalid for the
	// coordinator's current lifecycle state.
	ErrInvalidState = errors.New("coordinator: invalid state for this operation")
	// ErrInvalidArgument is returned for well-typed but semantically
	// rejected arguments, notably nprobe == 0.
	ErrInvalidArgument = errors.New("coordinator: invalid argument")
	// ErrInvalidDimension is returned when a vector or query length
	// disagrees with the coordinator's configured dimension.
	ErrInvalidDimension = errors.New("coordinator: invalid dimension")
	// ErrCorrupt is returned when a persisted blob fails validation.
	ErrCorrupt = errors.New("coordinator: corrupt persisted state")
)
