package ivfshard

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/ivfshard/coordinator"
	"github.com/hupe1980/ivfshard/kmeans"
)

// Sentinel errors identifying the kinds of failure the core can report.
// Concrete failures wrap one of these so callers can classify with
// errors.Is without depending on the internal sub-package types.
var (
	// ErrInvalidDimension is returned when a vector length is inconsistent
	// with the configured dimension or with a parallel ids slice.
	ErrInvalidDimension = errors.New("ivfshard: invalid dimension")
	// ErrInsufficientData is returned when a training call has fewer
	// vectors than the requested number of centroids.
	ErrInsufficientData = errors.New("ivfshard: insufficient data")
	// ErrInvalidState is returned when an operation requires the index to
	// be Populated (or Trained) but it is not, e.g. Search before Build.
	ErrInvalidState = errors.New("ivfshard: invalid state for this operation")
	// ErrShardUnavailable is returned by a shard-scoped operation when the
	// shard failed to respond; the failed shard is not retried. It never
	// reaches a Search caller directly: the coordinator folds it into a
	// PartialResult instead of propagating it.
	ErrShardUnavailable = errors.New("ivfshard: shard unavailable")
	// ErrTimeout is returned when a search deadline expires before all
	// dispatched shards respond. Like ErrShardUnavailable, it degrades into
	// a PartialResult rather than surfacing to Search's return value.
	ErrTimeout = errors.New("ivfshard: search timed out")
	// ErrCorrupt is returned when a persisted blob fails its magic/version/
	// checksum checks. It is never auto-repaired.
	ErrCorrupt = errors.New("ivfshard: corrupt persisted data")
	// ErrInvalidArgument is returned for arguments that are well-typed but
	// semantically rejected, such as nprobe == 0.
	ErrInvalidArgument = errors.New("ivfshard: invalid argument")
)

// DimensionError carries the expected and actual dimension for a failed
// dimension check. Unwraps to ErrInvalidDimension.
type DimensionError struct {
	Expected int
	Actual   int
	cause    error
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("ivfshard: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionError) Unwrap() error { return errors.Join(ErrInvalidDimension, e.cause) }

// ShardError identifies the shard that failed to serve a request.
// Unwraps to ErrShardUnavailable.
type ShardError struct {
	ShardID uint32
	cause   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("ivfshard: shard %d unavailable", e.ShardID)
}

func (e *ShardError) Unwrap() error { return errors.Join(ErrShardUnavailable, e.cause) }

// Kind classifies an error into one of the kinds named in the core's error
// handling design, letting a caller decide whether to retry, treat the
// result as partial, or fail hard.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidDimension
	KindInsufficientData
	KindInvalidState
	KindShardUnavailable
	KindTimeout
	KindCorrupt
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindInvalidDimension:
		return "InvalidDimension"
	case KindInsufficientData:
		return "InsufficientData"
	case KindInvalidState:
		return "InvalidState"
	case KindShardUnavailable:
		return "ShardUnavailable"
	case KindTimeout:
		return "Timeout"
	case KindCorrupt:
		return "Corrupt"
	case KindInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Kindof classifies err by walking its error chain against the public
// sentinels. Errors that don't originate from this module report
// KindUnknown.
func Kindof(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidDimension):
		return KindInvalidDimension
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrShardUnavailable):
		return KindShardUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrCorrupt):
		return KindCorrupt
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindUnknown
	}
}

// translateError funnels errors surfaced by the kmeans and coordinator
// subpackages into the root package's public error surface, mirroring the
// teacher's translateError for index/engine errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var kdim *kmeans.ErrInvalidDimension
	if errors.As(err, &kdim) {
		return &DimensionError{Expected: kdim.Dimension, Actual: kdim.Got, cause: err}
	}
	if errors.Is(err, kmeans.ErrInsufficientData) {
		return fmt.Errorf("%w: %w", ErrInsufficientData, err)
	}

	if errors.Is(err, coordinator.ErrNotBuilt) || errors.Is(err, coordinator.ErrInvalidState) {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if errors.Is(err, coordinator.ErrInvalidArgument) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if errors.Is(err, coordinator.ErrInvalidDimension) {
		return fmt.Errorf("%w: %w", ErrInvalidDimension, err)
	}
	if errors.Is(err, coordinator.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}
