package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestDedup(t *testing.T) (*Deduplicator, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	d, err := New("redis://"+mr.Addr(), "")
	if err != nil {
		mr.Close()
		t.Fatalf("New: %v", err)
	}
	return d, mr
}

func TestAlreadySentNewKey(t *testing.T) {
	d, mr := setupTestDedup(t)
	defer mr.Close()
	defer d.Close()

	if d.AlreadySent(context.Background(), IntentKey("0xabc", "i1")) {
		t.Error("AlreadySent should return false for new key")
	}
}

func TestRecordExpires(t *testing.T) {
	d, mr := setupTestDedup(t)
	defer mr.Close()
	defer d.Close()

	ctx := context.Background()
	key := IntentKey("0xabc", "i1")
	d.Record(ctx, key, IntentAlertTTL)
	if !d.AlreadySent(ctx, key) {
		t.Fatal("AlreadySent should return true after Record")
	}

	mr.FastForward(IntentAlertTTL + time.Second)
	if d.AlreadySent(ctx, key) {
		t.Error("key should expire after the TTL")
	}
}

func TestClearByPattern(t *testing.T) {
	d, mr := setupTestDedup(t)
	defer mr.Close()
	defer d.Close()

	ctx := context.Background()
	d.Record(ctx, IntentKey("0xaaa", "i1"), IntentAlertTTL)
	d.Record(ctx, IntentKey("0xaaa", "i2"), IntentAlertTTL)
	d.Record(ctx, IntentKey("0xbbb", "i1"), IntentAlertTTL)

	d.ClearByPattern(ctx, WalletPattern("0xaaa"))

	if d.AlreadySent(ctx, IntentKey("0xaaa", "i1")) || d.AlreadySent(ctx, IntentKey("0xaaa", "i2")) {
		t.Error("0xaaa keys should be cleared")
	}
	if !d.AlreadySent(ctx, IntentKey("0xbbb", "i1")) {
		t.Error("0xbbb key should not be cleared")
	}
}

func TestDigestKeyPerDay(t *testing.T) {
	a := DigestKey(42, time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC))
	b := DigestKey(42, time.Date(2026, 1, 3, 1, 0, 0, 0, time.UTC))
	if a == b {
		t.Errorf("digest keys for different days collide: %s", a)
	}
	if a != "alert:digest:42:2026-01-02" {
		t.Errorf("DigestKey = %s", a)
	}
}

func TestAlreadySentFailClosed(t *testing.T) {
	d, mr := setupTestDedup(t)
	defer d.Close()

	mr.Close()

	if !d.AlreadySent(context.Background(), "any:key") {
		t.Error("AlreadySent should return true (fail-closed) when Redis is down")
	}
}
