package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOrder struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Total  int64  `json:"total"`
}

// runDocumentStoreContract exercises the behaviour every backend must share.
func runDocumentStoreContract(t *testing.T, s DocumentStore) {
	ctx := context.Background()

	t.Run("create and read", func(t *testing.T) {
		id, err := s.Create(ctx, "orders", testOrder{UserID: "u1", Status: "pending", Total: 100})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		var got testOrder
		require.NoError(t, s.Read(ctx, Path("orders", id), &got))
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, int64(100), got.Total)
	})

	t.Run("read missing", func(t *testing.T) {
		var got testOrder
		err := s.Read(ctx, Path("orders", "missing"), &got)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid path", func(t *testing.T) {
		var got testOrder
		assert.ErrorIs(t, s.Read(ctx, "orders", &got), ErrInvalidPath)
	})

	t.Run("update merges fields", func(t *testing.T) {
		id, err := s.Create(ctx, "orders", testOrder{UserID: "u2", Status: "pending", Total: 50})
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, Path("orders", id), map[string]any{"status": "processing"}))

		var got testOrder
		require.NoError(t, s.Read(ctx, Path("orders", id), &got))
		assert.Equal(t, "processing", got.Status)
		assert.Equal(t, "u2", got.UserID)
		assert.Equal(t, int64(50), got.Total)
	})

	t.Run("update missing", func(t *testing.T) {
		err := s.Update(ctx, Path("orders", "nope"), map[string]any{"status": "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set, list order and remove", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, Path("flowers", "b"), map[string]any{"name": "B"}))
		require.NoError(t, s.Set(ctx, Path("flowers", "a"), map[string]any{"name": "A"}))
		require.NoError(t, s.Set(ctx, Path("flowers", "c"), map[string]any{"name": "C"}))

		records, err := s.List(ctx, "flowers")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"a", "b", "c"}, keys(records))

		require.NoError(t, s.Remove(ctx, Path("flowers", "b")))
		records, err = s.List(ctx, "flowers")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, keys(records))
	})

	t.Run("find by field", func(t *testing.T) {
		_, err := s.Create(ctx, "finds", testOrder{UserID: "alice", Status: "pending"})
		require.NoError(t, err)
		_, err = s.Create(ctx, "finds", testOrder{UserID: "bob", Status: "pending"})
		require.NoError(t, err)
		_, err = s.Create(ctx, "finds", testOrder{UserID: "alice", Status: "completed"})
		require.NoError(t, err)

		records, err := s.Find(ctx, "finds", "userId", "alice")
		require.NoError(t, err)
		assert.Len(t, records, 2)

		records, err = s.Find(ctx, "finds", "status", "cancelled")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("created keys follow creation order", func(t *testing.T) {
		first, err := s.Create(ctx, "ordered", map[string]any{"n": 1})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		second, err := s.Create(ctx, "ordered", map[string]any{"n": 2})
		require.NoError(t, err)
		assert.Less(t, first, second)
	})

	t.Run("subscribe delivers full snapshots", func(t *testing.T) {
		snapshots := make(chan []Record, 16)
		unsubscribe, err := s.Subscribe(ctx, "live", func(records []Record) {
			snapshots <- records
		})
		require.NoError(t, err)
		defer unsubscribe()

		initial := waitSnapshot(t, snapshots)
		assert.Empty(t, initial)

		require.NoError(t, s.Set(ctx, Path("live", "x"), map[string]any{"name": "X"}))
		require.NoError(t, s.Set(ctx, Path("live", "y"), map[string]any{"name": "Y"}))

		// deliveries may coalesce; wait until the latest state is seen
		require.Eventually(t, func() bool {
			for {
				select {
				case snap := <-snapshots:
					if len(snap) == 2 {
						return true
					}
				default:
					return false
				}
			}
		}, 5*time.Second, 20*time.Millisecond)
	})
}

func waitSnapshot(t *testing.T, ch <-chan []Record) []Record {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func keys(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}
	return out
}
