package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/keymint/internal/keymint/domain"
)

// stubOperation is a no-op operation for table bookkeeping tests.
type stubOperation struct {
	aborted bool
}

func (s *stubOperation) UpdateAad(_ context.Context, _ []byte) error       { return nil }
func (s *stubOperation) Update(_ context.Context, _ []byte) ([]byte, error) { return nil, nil }
func (s *stubOperation) Finish(_ context.Context, _, _ []byte) ([]byte, error) {
	return nil, nil
}
func (s *stubOperation) Abort(_ context.Context) error {
	s.aborted = true
	return nil
}

func TestOperationTableCapacity(t *testing.T) {
	t.Run("default capacity", func(t *testing.T) {
		table := NewOperationTable(0)
		for i := 0; i < DefaultOperationTableSize; i++ {
			_, err := table.Insert(&stubOperation{})
			require.NoError(t, err)
		}

		_, err := table.Insert(&stubOperation{})
		assert.ErrorIs(t, err, domain.ErrTooManyOperations)
		assert.Equal(t, DefaultOperationTableSize, table.Len())
	})

	t.Run("slot frees on remove", func(t *testing.T) {
		table := NewOperationTable(1)
		handle, err := table.Insert(&stubOperation{})
		require.NoError(t, err)

		_, err = table.Insert(&stubOperation{})
		require.ErrorIs(t, err, domain.ErrTooManyOperations)

		_, err = table.Remove(handle)
		require.NoError(t, err)

		_, err = table.Insert(&stubOperation{})
		assert.NoError(t, err)
	})
}

func TestOperationTableHandles(t *testing.T) {
	table := NewOperationTable(4)

	t.Run("handles are non-zero and unique across the table lifetime", func(t *testing.T) {
		seen := make(map[domain.OperationHandle]bool)
		for i := 0; i < 100; i++ {
			handle, err := table.Insert(&stubOperation{})
			require.NoError(t, err)
			assert.NotZero(t, handle)
			assert.False(t, seen[handle], "handle %d reused", handle)
			seen[handle] = true

			_, err = table.Remove(handle)
			require.NoError(t, err)
		}
	})

	t.Run("retired handle stays dead", func(t *testing.T) {
		handle, err := table.Insert(&stubOperation{})
		require.NoError(t, err)
		_, err = table.Remove(handle)
		require.NoError(t, err)

		_, err = table.Get(handle)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationHandle)
		_, err = table.Remove(handle)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationHandle)
	})

	t.Run("unknown handle", func(t *testing.T) {
		_, err := table.Get(domain.OperationHandle(12345))
		assert.ErrorIs(t, err, domain.ErrInvalidOperationHandle)
	})

	t.Run("get returns the inserted operation", func(t *testing.T) {
		op := &stubOperation{}
		handle, err := table.Insert(op)
		require.NoError(t, err)

		got, err := table.Get(handle)
		require.NoError(t, err)
		assert.Same(t, op, got.(*stubOperation))

		_, err = table.Remove(handle)
		require.NoError(t, err)
	})
}
