package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.RecordStore = (*Storage)(nil)

func (s *Storage) FindRecord(ctx context.Context, accountName string) (*model.Record, error) {
	data, err := s.client.Get(ctx, recordKey(accountName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRecordNotFound
		}
		return nil, err
	}
	return decodeRecord(data)
}

func (s *Storage) CreateRecord(ctx context.Context, rec *model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := recordKey(rec.AccountName)
	return s.withRetries(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrRecordExists
		}

		// Record and index are written atomically
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, recordIndexKey(), rec.AccountName)
			return nil
		})
		return err
	})
}

func (s *Storage) SaveRecord(ctx context.Context, rec *model.Record) error {
	key := recordKey(rec.AccountName)
	return s.withRetries(ctx, key, func(tx *redis.Tx) error {
		stored := rec.Clone()

		// Never clear a validated flag already persisted
		existing, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			prev, err := decodeRecord(existing)
			if err != nil {
				return err
			}
			if prev.Validated {
				stored.Validated = true
			}
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, recordIndexKey(), rec.AccountName)
			return nil
		})
		return err
	})
}

func (s *Storage) ListRecords(ctx context.Context) ([]*model.Record, error) {
	accounts, err := s.client.SMembers(ctx, recordIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	if len(accounts) == 0 {
		return []*model.Record{}, nil
	}
	sort.Strings(accounts)

	keys := make([]string, len(accounts))
	for i, account := range accounts {
		keys[i] = recordKey(account)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*model.Record, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // Index entry without a record
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			continue // Skip invalid data
		}
		records = append(records, rec)
	}

	return records, nil
}

// withRetries runs fn in a WATCH transaction on key, retrying when the key
// changed underneath it
func (s *Storage) withRetries(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	var err error
	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func decodeRecord(data []byte) (*model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
