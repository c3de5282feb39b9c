package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"broski-bot/config"
)

const (
	dailyTradesKey = "broski:risk:daily_trades"
	stateTTL       = 48 * time.Hour
)

// RedisStateStore persists the daily-trade window in Redis so the limit
// survives restarts. When Redis becomes unreachable it degrades to an
// in-memory copy and keeps retrying on the next write.
type RedisStateStore struct {
	client *redis.Client
	logger zerolog.Logger

	mu       sync.Mutex
	fallback []time.Time
}

var _ StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore connects to Redis and verifies the connection.
func NewRedisStateStore(cfg config.RedisConfig, logger zerolog.Logger) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("connected to Redis")
	return &RedisStateStore{client: client, logger: logger}, nil
}

func (s *RedisStateStore) LoadDailyTrades() ([]time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, dailyTradesKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.fallback, fmt.Errorf("loading daily trades: %w", err)
	}

	var unix []int64
	if err := json.Unmarshal(data, &unix); err != nil {
		return nil, fmt.Errorf("parsing daily trades: %w", err)
	}

	times := make([]time.Time, len(unix))
	for i, u := range unix {
		times[i] = time.Unix(u, 0)
	}
	return times, nil
}

func (s *RedisStateStore) SaveDailyTrades(times []time.Time) error {
	s.mu.Lock()
	s.fallback = append(s.fallback[:0], times...)
	s.mu.Unlock()

	unix := make([]int64, len(times))
	for i, t := range times {
		unix[i] = t.Unix()
	}
	data, err := json.Marshal(unix)
	if err != nil {
		return fmt.Errorf("marshaling daily trades: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, dailyTradesKey, data, stateTTL).Err(); err != nil {
		return fmt.Errorf("saving daily trades: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
