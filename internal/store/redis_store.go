package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// RedisStore keeps each collection in one hash and announces changes on a
// pub/sub channel per collection.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Create(ctx context.Context, collection string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document failed: %w", err)
	}
	id := newID()
	if err := r.client.HSet(ctx, hashKey(collection), id, string(raw)).Err(); err != nil {
		return "", fmt.Errorf("redis hset failed: %w", err)
	}
	r.announce(ctx, collection)
	return id, nil
}

func (r *RedisStore) Read(ctx context.Context, path string, out any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	data, err := r.client.HGet(ctx, hashKey(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis hget failed: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal document failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Set(ctx context.Context, path string, data any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document failed: %w", err)
	}
	if err := r.client.HSet(ctx, hashKey(collection), id, string(raw)).Err(); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	r.announce(ctx, collection)
	return nil
}

// Update merges fields under WATCH so a concurrent writer forces a retry
// instead of a lost update.
func (r *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	key := hashKey(collection)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis hget failed: %w", err)
		}
		merged, err := mergeFields(current, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, string(merged))
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err = r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		r.announce(ctx, collection)
		return nil
	}
	return fmt.Errorf("redis update of %s gave up after %d retries: %w", path, maxUpdateRetries, err)
}

func (r *RedisStore) Remove(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := r.client.HDel(ctx, hashKey(collection), id).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	r.announce(ctx, collection)
	return nil
}

func (r *RedisStore) List(ctx context.Context, collection string) ([]Record, error) {
	docs, err := r.client.HGetAll(ctx, hashKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	records := make([]Record, 0, len(docs))
	for id, raw := range docs {
		records = append(records, Record{Key: id, Data: json.RawMessage(raw)})
	}
	sortRecords(records)
	return records, nil
}

func (r *RedisStore) Find(ctx context.Context, collection, field, value string) ([]Record, error) {
	records, err := r.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return filterRecords(records, field, value), nil
}

func (r *RedisStore) Subscribe(ctx context.Context, collection string, fn func([]Record)) (func(), error) {
	pubsub := r.client.Subscribe(ctx, changeChannel(collection))
	// wait for the subscription to be confirmed so no change is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	initial, err := r.List(ctx, collection)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	f := newFeed(fn)
	f.push(initial)

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	messages := pubsub.Channel()
	go func() {
		for {
			select {
			case _, ok := <-messages:
				if !ok {
					return
				}
				snapshot, err := r.List(subCtx, collection)
				if err != nil {
					continue
				}
				f.push(snapshot)
			case <-subCtx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		pubsub.Close()
		f.stop()
	}, nil
}

// announce is best effort: the write already succeeded.
func (r *RedisStore) announce(ctx context.Context, collection string) {
	r.client.Publish(ctx, changeChannel(collection), collection)
}

func hashKey(collection string) string {
	return fmt.Sprintf("doc:%s", collection)
}

func changeChannel(collection string) string {
	return fmt.Sprintf("doc-changes:%s", collection)
}
