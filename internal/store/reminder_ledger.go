package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultReminderLedgerTTL = 72 * time.Hour

// RedisReminderLedger records which reminders were already sent so that a rerun
// on the same day does not notify twice.
type RedisReminderLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisReminderLedger creates a ledger that stores keys under prefix.
func NewRedisReminderLedger(client redis.UniversalClient, prefix string) *RedisReminderLedger {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "subwatch"
	}

	return &RedisReminderLedger{
		client: client,
		prefix: trimmedPrefix,
		ttl:    defaultReminderLedgerTTL,
	}
}

// Claim marks (subscriptionID, offset, date) as notified. It returns false when
// another run already claimed the same key.
func (l *RedisReminderLedger) Claim(ctx context.Context, subscriptionID string, offset int, date string) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}

	key := l.key(subscriptionID, offset, date)
	claimed, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder key %s: %w", key, err)
	}
	return claimed, nil
}

// Release removes a claim so a failed delivery can be retried by a later run.
func (l *RedisReminderLedger) Release(ctx context.Context, subscriptionID string, offset int, date string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, l.key(subscriptionID, offset, date)).Err()
}

func (l *RedisReminderLedger) key(subscriptionID string, offset int, date string) string {
	return fmt.Sprintf("%s:reminder:%s:%d:%s", l.prefix, strings.TrimSpace(subscriptionID), offset, date)
}
