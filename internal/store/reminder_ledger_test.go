package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisReminderLedgerKey(t *testing.T) {
	ledger := NewRedisReminderLedger(nil, "subwatch:")

	got := ledger.key(" 4f1c ", 3, "2024-06-13")
	if got != "subwatch:reminder:4f1c:3:2024-06-13" {
		t.Fatalf("unexpected ledger key %q", got)
	}
}

func TestRedisReminderLedgerDefaultsPrefix(t *testing.T) {
	ledger := NewRedisReminderLedger(nil, "  ")
	if ledger.prefix != "subwatch" {
		t.Fatalf("expected default prefix, got %q", ledger.prefix)
	}
}

func TestRedisReminderLedgerWithoutClientAlwaysClaims(t *testing.T) {
	ledger := NewRedisReminderLedger(nil, "subwatch")

	claimed, err := ledger.Claim(context.Background(), "sub-1", 1, "2024-06-11")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Fatal("expected a ledger without a client to claim every key")
	}
	if err := ledger.Release(context.Background(), "sub-1", 1, "2024-06-11"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
}

func newMiniredisLedger(t *testing.T) (*RedisReminderLedger, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisReminderLedger(client, "subwatch"), server
}

func TestRedisReminderLedgerClaimIsExclusive(t *testing.T) {
	ledger, server := newMiniredisLedger(t)
	ctx := context.Background()

	claimed, err := ledger.Claim(ctx, "sub-1", 3, "2024-06-13")
	if err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, got claimed=%v err=%v", claimed, err)
	}

	claimed, err = ledger.Claim(ctx, "sub-1", 3, "2024-06-13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed {
		t.Fatal("expected a second claim for the same reminder to be refused")
	}

	// Another offset or date is a different reminder.
	claimed, err = ledger.Claim(ctx, "sub-1", 2, "2024-06-13")
	if err != nil || !claimed {
		t.Fatalf("expected claim for another offset to succeed, got claimed=%v err=%v", claimed, err)
	}

	key := "subwatch:reminder:sub-1:3:2024-06-13"
	if !server.Exists(key) {
		t.Fatalf("expected key %s to be stored", key)
	}
	if ttl := server.TTL(key); ttl != defaultReminderLedgerTTL {
		t.Fatalf("expected ttl %s, got %s", defaultReminderLedgerTTL, ttl)
	}
}

func TestRedisReminderLedgerReleaseAllowsReclaim(t *testing.T) {
	ledger, _ := newMiniredisLedger(t)
	ctx := context.Background()

	if _, err := ledger.Claim(ctx, "sub-1", 1, "2024-06-11"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ledger.Release(ctx, "sub-1", 1, "2024-06-11"); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}

	claimed, err := ledger.Claim(ctx, "sub-1", 1, "2024-06-11")
	if err != nil || !claimed {
		t.Fatalf("expected claim after release to succeed, got claimed=%v err=%v", claimed, err)
	}
}

func TestRedisReminderLedgerExpiredClaim(t *testing.T) {
	ledger, server := newMiniredisLedger(t)
	ctx := context.Background()

	if _, err := ledger.Claim(ctx, "sub-1", 2, "2024-06-12"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server.FastForward(defaultReminderLedgerTTL + time.Second)

	claimed, err := ledger.Claim(ctx, "sub-1", 2, "2024-06-12")
	if err != nil || !claimed {
		t.Fatalf("expected claim after expiry to succeed, got claimed=%v err=%v", claimed, err)
	}
}

func TestRedisReminderLedgerServerDown(t *testing.T) {
	ledger, server := newMiniredisLedger(t)
	server.Close()

	if _, err := ledger.Claim(context.Background(), "sub-1", 3, "2024-06-13"); err == nil {
		t.Fatal("expected an error when redis is unreachable")
	}
}
