package gradepolicy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/approvio/approvio/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

// hashKey is the Redis hash holding one JSON-encoded GradeApprovalConfig per
// grade code field.
const hashKey = "approvio:grade_policies"

// RedisStore backs the grade policy cache with a Redis hash, for deployments
// that keep reference data in Redis rather than the workflow store.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store from a redis:// URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreWithClient wraps an existing client, used by tests.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// List loads every grade approval config from the hash.
func (s *RedisStore) List(ctx context.Context) ([]*models.GradeApprovalConfig, error) {
	entries, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load grade policies from redis: %w", err)
	}

	configs := make([]*models.GradeApprovalConfig, 0, len(entries))

	for gradeCode, raw := range entries {
		var config models.GradeApprovalConfig

		err := json.Unmarshal([]byte(raw), &config)
		if err != nil {
			return nil, fmt.Errorf("failed to decode grade policy for %s: %w", gradeCode, err)
		}

		configs = append(configs, &config)
	}

	return configs, nil
}

// Save writes one grade approval config into the hash.
func (s *RedisStore) Save(ctx context.Context, config *models.GradeApprovalConfig) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode grade policy for %s: %w", config.GradeCode, err)
	}

	err = s.client.HSet(ctx, hashKey, config.GradeCode, data).Err()
	if err != nil {
		return fmt.Errorf("failed to save grade policy for %s: %w", config.GradeCode, err)
	}

	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
