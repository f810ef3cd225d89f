package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrange/deal-server/errortypes"
)

func TestMemoryLedgerReserve(t *testing.T) {
	led := NewMemoryLedger(map[string]int64{"ctv-premium": 5000000})

	require.NoError(t, led.Reserve(context.Background(), "ctv-premium", 3000000))
	require.NoError(t, led.Reserve(context.Background(), "ctv-premium", 2000000))

	err := led.Reserve(context.Background(), "ctv-premium", 1)
	require.Error(t, err)
	assert.IsType(t, &errortypes.AllocationUnavailable{}, err)
}

func TestMemoryLedgerUnknownProduct(t *testing.T) {
	led := NewMemoryLedger(nil)

	err := led.Reserve(context.Background(), "never-seeded", 1)
	require.Error(t, err)
	assert.IsType(t, &errortypes.AllocationUnavailable{}, err)
}

func TestMemoryLedgerRelease(t *testing.T) {
	led := NewMemoryLedger(map[string]int64{"ctv-premium": 1000000})

	require.NoError(t, led.Reserve(context.Background(), "ctv-premium", 1000000))
	require.Error(t, led.Reserve(context.Background(), "ctv-premium", 1000000))

	require.NoError(t, led.Release(context.Background(), "ctv-premium", 1000000))
	assert.NoError(t, led.Reserve(context.Background(), "ctv-premium", 1000000))
}

func TestMemoryLedgerCanceledContext(t *testing.T) {
	led := NewMemoryLedger(map[string]int64{"ctv-premium": 1000000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, led.Reserve(ctx, "ctv-premium", 1), context.Canceled)
	assert.ErrorIs(t, led.Release(ctx, "ctv-premium", 1), context.Canceled)
}

func TestMemoryLedgerNeverOversells(t *testing.T) {
	const avail = 1000
	led := NewMemoryLedger(map[string]int64{"ctv-premium": avail})

	var succeeded int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if led.Reserve(context.Background(), "ctv-premium", 1) == nil {
					atomic.AddInt64(&succeeded, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(avail), succeeded, "exactly the seeded volume may be reserved")
}
