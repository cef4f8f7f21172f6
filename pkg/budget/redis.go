package budget

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/pario-ai/tickerpulse/pkg/models"
)

// DefaultRedisKey is the key holding the budget record.
const DefaultRedisKey = "tickerpulse:budget"

// RedisConfig holds connection parameters for RedisStore.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Key      string   `yaml:"key"`
}

// RedisStore keeps the budget record as a JSON string under one key.
type RedisStore struct {
	client rueidis.Client
	key    string
}

// NewRedisStore connects to Redis.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("redis addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}
	return newRedisStore(client, cfg.Key), nil
}

func newRedisStore(client rueidis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load reads the record.
func (s *RedisStore) Load(ctx context.Context) (models.BudgetRecord, error) {
	cmd := s.client.B().Get().Key(s.key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return models.BudgetRecord{}, ErrNoRecord
		}
		return models.BudgetRecord{}, fmt.Errorf("budget GET %s: %w", s.key, err)
	}
	var rec models.BudgetRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.BudgetRecord{}, fmt.Errorf("budget GET %s parse: %w", s.key, err)
	}
	return rec, nil
}

// Save overwrites the record.
func (s *RedisStore) Save(ctx context.Context, rec models.BudgetRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode budget: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key).Value(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("budget SET %s: %w", s.key, err)
	}
	return nil
}

// Close shuts down the client.
func (s *RedisStore) Close() {
	s.client.Close()
}
