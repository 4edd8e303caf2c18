package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces ledger keys.
const DefaultRedisPrefix = "uisp:webhook:"

// RedisStore keeps the ledger in Redis so several service instances can share
// it. Reserve relies on SET NX; finalization runs under WATCH.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return NewRedisStore(rdb, opts.Prefix), nil
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Reserve(ctx context.Context, rec Record) (Record, bool, error) {
	if err := validID(rec.WebhookID); err != nil {
		return Record{}, false, err
	}
	rec.Response = nil
	rec.ProcessedAt = time.Time{}
	if rec.ReservedAt.IsZero() {
		rec.ReservedAt = s.now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, false, fmt.Errorf("reserve %s: encode: %w", rec.WebhookID, err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(rec.WebhookID), data, 0).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("reserve %s: %w", rec.WebhookID, err)
	}
	if ok {
		return rec, true, nil
	}
	existing, err := s.Lookup(ctx, rec.WebhookID)
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, webhookID string, response []byte) error {
	key := s.key(webhookID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if !rec.Pending() {
			return ErrAlreadyProcessed
		}
		if response == nil {
			response = []byte("null")
		}
		rec.Response = append(json.RawMessage(nil), response...)
		rec.ProcessedAt = s.now().UTC()
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadyProcessed) {
		return fmt.Errorf("mark processed %s: %w", webhookID, err)
	}
	return err
}

func (s *RedisStore) Release(ctx context.Context, webhookID string) error {
	key := s.key(webhookID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.get(ctx, tx, key)
		if err != nil || !rec.Pending() {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("release %s: %w", webhookID, err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, webhookID string) (Record, error) {
	rec, err := s.get(ctx, s.rdb, s.key(webhookID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Record{}, fmt.Errorf("lookup %s: %w", webhookID, err)
	}
	return rec, err
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c stringGetter, key string) (Record, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
