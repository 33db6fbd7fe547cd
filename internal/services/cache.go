package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var (
	ErrCacheMiss        = errors.New("cache miss")
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// CacheService stores JSON values in redis behind a circuit breaker. A nil
// client disables caching: every Get misses and every Set is dropped.
type CacheService struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Entry
}

func NewCacheService(client *redis.Client, failureThreshold int, logger *logrus.Entry) *CacheService {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if logger == nil {
		logger = logrus.WithField("component", "cache")
	}

	settings := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
		// A miss is a normal answer, not a failure of redis.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &CacheService{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Enabled reports whether a redis client is configured.
func (s *CacheService) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *CacheService) execute(fn func() (interface{}, error)) (interface{}, error) {
	out, err := s.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return out, err
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	_, err = s.execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, data, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Get decodes the value at key into dest. It returns ErrCacheMiss when the
// key is absent or caching is disabled.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.Enabled() {
		return ErrCacheMiss
	}

	out, err := s.execute(func() (interface{}, error) {
		return s.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal(out.([]byte), dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (s *CacheService) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}

	out, err := s.execute(func() (interface{}, error) {
		var keys []string
		iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return 0, err
		}
		if len(keys) == 0 {
			return 0, nil
		}
		return len(keys), s.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache prefix %q: %w", prefix, err)
	}
	return out.(int), nil
}

// State exposes the breaker state for health reporting.
func (s *CacheService) State() string {
	if !s.Enabled() {
		return "disabled"
	}
	return s.breaker.State().String()
}

func (s *CacheService) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}
