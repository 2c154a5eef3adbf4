package usecase

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// DefaultOperationTableSize is the number of concurrent operations allowed
// when no explicit capacity is configured.
const DefaultOperationTableSize = 16

// OperationTable is the bounded registry of live operations. The mutex
// guards only table bookkeeping; the crypto work happens outside it.
//
// Handles are random non-zero 64-bit values and are never reused for the
// lifetime of the table, even after the operation they named is gone: a
// retired handle must keep failing rather than silently naming a newer
// operation.
type OperationTable struct {
	mu       sync.Mutex
	capacity int
	ops      map[domain.OperationHandle]engine.Operation
	used     map[domain.OperationHandle]struct{}
}

// NewOperationTable creates a table with the given capacity; zero or
// negative means DefaultOperationTableSize.
func NewOperationTable(capacity int) *OperationTable {
	if capacity <= 0 {
		capacity = DefaultOperationTableSize
	}
	return &OperationTable{
		capacity: capacity,
		ops:      make(map[domain.OperationHandle]engine.Operation, capacity),
		used:     make(map[domain.OperationHandle]struct{}),
	}
}

// Insert registers a live operation and returns its handle. When the table
// is full the caller must finish or abort an existing operation first;
// nothing is evicted implicitly.
func (t *OperationTable) Insert(op engine.Operation) (domain.OperationHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.ops) >= t.capacity {
		return 0, domain.ErrTooManyOperations
	}

	handle, err := t.newHandle()
	if err != nil {
		return 0, err
	}
	t.ops[handle] = op
	t.used[handle] = struct{}{}
	return handle, nil
}

// Get returns the live operation for a handle.
func (t *OperationTable) Get(handle domain.OperationHandle) (engine.Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[handle]
	if !ok {
		return nil, domain.ErrInvalidOperationHandle
	}
	return op, nil
}

// Remove retires a handle and returns the operation it named. The handle
// stays burned afterwards.
func (t *OperationTable) Remove(handle domain.OperationHandle) (engine.Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[handle]
	if !ok {
		return nil, domain.ErrInvalidOperationHandle
	}
	delete(t.ops, handle)
	return op, nil
}

// Len reports the number of live operations.
func (t *OperationTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// newHandle draws a random handle that is non-zero and was never issued by
// this table. Callers hold the mutex.
func (t *OperationTable) newHandle() (domain.OperationHandle, error) {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("failed to generate operation handle: %w", err)
		}
		handle := domain.OperationHandle(binary.LittleEndian.Uint64(buf[:]))
		if handle == 0 {
			continue
		}
		if _, seen := t.used[handle]; seen {
			continue
		}
		return handle, nil
	}
}
