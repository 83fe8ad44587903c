package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore instance
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return NewRedisStore(client), mr, cleanup
}

func TestRedisStore_Contract(t *testing.T) {
	s, _, cleanup := setupTestRedis(t)
	defer cleanup()

	runDocumentStoreContract(t, s)
}

func TestRedisStore_Layout(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, s.Set(context.Background(), Path("flowers", "f1"), map[string]any{"name": "Rose"}))

	stored := mr.HGet("doc:flowers", "f1")
	assert.JSONEq(t, `{"name":"Rose"}`, stored)
}

func TestRedisStore_InvalidJSON(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.HSet("doc:orders", "broken", "{not json")

	var out map[string]any
	err := s.Read(context.Background(), Path("orders", "broken"), &out)
	require.ErrorContains(t, err, "unmarshal document failed")

	err = s.Update(context.Background(), Path("orders", "broken"), map[string]any{"a": 1})
	require.ErrorContains(t, err, "unmarshal document failed")
}

func TestKeyFormat(t *testing.T) {
	assert.Equal(t, "doc:orders", hashKey("orders"))
	assert.Equal(t, "doc-changes:orders", changeChannel("orders"))
}
