package ivfshard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindof(t *testing.T) {
	assert.Equal(t, KindInvalidDimension, Kindof(&DimensionError{Expected: 4, Actual: 3}))
	assert.Equal(t, KindShardUnavailable, Kindof(&ShardError{ShardID: 2}))
	assert.Equal(t, KindInvalidArgument, Kindof(ErrInvalidArgument))
	assert.Equal(t, KindTimeout, Kindof(context.DeadlineExceeded))
	assert.Equal(t, KindUnknown, Kindof(errors.New("unrelated")))
	assert.Equal(t, KindUnknown, Kindof(nil))
}

func TestDimensionErrorUnwrapsToSentinel(t *testing.T) {
	err := &DimensionError{Expected: 128, Actual: 64}
	assert.ErrorIs(t, error(err), ErrInvalidDimension)
}

func TestShardErrorUnwrapsToSentinel(t *testing.T) {
	err := &ShardError{ShardID: 3}
	assert.ErrorIs(t, error(err), ErrShardUnavailable)
}
