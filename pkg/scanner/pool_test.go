package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_AllItemsComplete(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 4}, zap.NewNop())

	items := []WorkItem[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "b", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
		{ID: "c", Execute: func(ctx context.Context) (int, error) { return 3, nil }},
	}

	results := Process(context.Background(), pool, items)
	require.Len(t, results, 3)

	byID := map[string]int{}
	for _, r := range results {
		require.NoError(t, r.Err)
		byID[r.ID] = r.Result
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3}, byID)
}

func TestProcess_FailuresDoNotStopOthers(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 2}, zap.NewNop())
	boom := errors.New("boom")

	items := []WorkItem[string]{
		{ID: "ok", Execute: func(ctx context.Context) (string, error) { return "done", nil }},
		{ID: "bad", Execute: func(ctx context.Context) (string, error) { return "", boom }},
	}

	results := Process(context.Background(), pool, items)
	require.Len(t, results, 2)

	for _, r := range results {
		switch r.ID {
		case "ok":
			assert.NoError(t, r.Err)
			assert.Equal(t, "done", r.Result)
		case "bad":
			assert.ErrorIs(t, r.Err, boom)
		}
	}
}

func TestProcess_BoundedConcurrency(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 2}, zap.NewNop())

	var current, peak atomic.Int32
	var mu sync.Mutex

	items := make([]WorkItem[struct{}], 8)
	for i := range items {
		items[i] = WorkItem[struct{}]{
			ID: "item",
			Execute: func(ctx context.Context) (struct{}, error) {
				n := current.Add(1)
				mu.Lock()
				if n > peak.Load() {
					peak.Store(n)
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return struct{}{}, nil
			},
		}
	}

	results := Process(context.Background(), pool, items)
	require.Len(t, results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcess_CancelledItemsReportContextError(t *testing.T) {
	pool := NewPool(PoolConfig{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []WorkItem[int]{
		{ID: "first", Execute: func(ctx context.Context) (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return 1, nil
		}},
		{ID: "second", Execute: func(ctx context.Context) (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return 2, nil
		}},
	}

	results := Process(ctx, pool, items)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled, "item %s", r.ID)
	}
}

func TestProcess_EmptyItems(t *testing.T) {
	pool := NewPool(PoolConfig{}, zap.NewNop())
	assert.Nil(t, Process[int](context.Background(), pool, nil))
}
