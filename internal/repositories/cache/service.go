package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// ErrCacheMiss is returned when a key is absent; callers fall through to the
// database.
var ErrCacheMiss = errors.New("cache miss")

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

func balanceKey(accountID uint) string {
	return fmt.Sprintf("account:balance:%d", accountID)
}

func blacklistKey(token string) string {
	return fmt.Sprintf("auth:blacklist:%s", token)
}

// GetBalance returns the cached balance for an account, or ErrCacheMiss.
// Balances are stored as their canonical decimal string so no float
// round-trip ever touches them.
func (s *CacheService) GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	val, err := s.client.Get(ctx, balanceKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, ErrCacheMiss
		}
		return decimal.Zero, fmt.Errorf("failed to get cached balance: %w", err)
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt cached balance: %w", err)
	}
	return balance, nil
}

func (s *CacheService) SetBalance(ctx context.Context, accountID uint, balance decimal.Decimal) error {
	return s.client.Set(ctx, balanceKey(accountID), balance.String(), s.ttl).Err()
}

func (s *CacheService) InvalidateBalance(ctx context.Context, accountID uint) error {
	return s.client.Del(ctx, balanceKey(accountID)).Err()
}

// MarkTokenRevoked fronts the blacklist table; the key expires with the token
// itself.
func (s *CacheService) MarkTokenRevoked(ctx context.Context, token string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

// IsTokenRevoked reports a definite revocation. A miss is not authoritative;
// callers still consult the database.
func (s *CacheService) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	err := s.client.Get(ctx, blacklistKey(token)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return true, nil
}

func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// FlushAll flushes all keys from the cache.
func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

// Close closes the Redis client connection.
func (s *CacheService) Close() error {
	return s.client.Close()
}
