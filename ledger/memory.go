package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentrange/deal-server/errortypes"
)

// NewMemoryLedger builds an in-process ledger seeded with per-product avails.
// Products absent from the seed have zero avails.
func NewMemoryLedger(avails map[string]int64) Ledger {
	remaining := make(map[string]int64, len(avails))
	for id, n := range avails {
		remaining[id] = n
	}
	return &memoryLedger{remaining: remaining}
}

type memoryLedger struct {
	mu        sync.Mutex
	remaining map[string]int64
}

func (l *memoryLedger) Reserve(ctx context.Context, productID string, volume int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remaining[productID] < volume {
		return &errortypes.AllocationUnavailable{
			Message: fmt.Sprintf("product %s has %d impressions available, %d requested", productID, l.remaining[productID], volume),
		}
	}
	l.remaining[productID] -= volume
	return nil
}

func (l *memoryLedger) Release(ctx context.Context, productID string, volume int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.remaining[productID] += volume
	return nil
}
