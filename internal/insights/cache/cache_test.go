// internal/insights/cache/cache_test.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audit-insights/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func createKeyInput() KeyInput {
	return KeyInput{
		AuditID:      "audit-1",
		SectionID:    "scheduling-noshows",
		Currency:     "USD",
		Locale:       "en-US",
		Vertical:     models.VerticalDental,
		PreviousKeys: []string{"missed_calls", "recall"},
		Responses:    map[string]interface{}{"noShowsPerWeek": 6.0, "usesConfirmations": false},
		LossSummary: &models.LossSummary{
			Records: []models.LossRecord{{Area: "No-Show Revenue Loss", ResultMonthly: 5000}},
		},
	}
}

// ==========================
// Key Tests
// ==========================

func TestKey_Stable(t *testing.T) {
	a := Key(createKeyInput())
	b := Key(createKeyInput())
	assert.Equal(t, a, b)
	assert.Contains(t, a, KeyPrefix)
	assert.Len(t, a, len(KeyPrefix)+64)
}

func TestKey_PreviousKeysOrderInsensitive(t *testing.T) {
	in := createKeyInput()
	reordered := createKeyInput()
	reordered.PreviousKeys = []string{"recall", "missed_calls"}

	assert.Equal(t, Key(in), Key(reordered))
	assert.Equal(t, []string{"missed_calls", "recall"}, in.PreviousKeys)
}

func TestKey_EveryParameterAffectsKey(t *testing.T) {
	base := Key(createKeyInput())

	tests := []struct {
		name   string
		mutate func(in *KeyInput)
	}{
		{"audit", func(in *KeyInput) { in.AuditID = "audit-2" }},
		{"section", func(in *KeyInput) { in.SectionID = "phone-handling" }},
		{"currency", func(in *KeyInput) { in.Currency = "CAD" }},
		{"locale", func(in *KeyInput) { in.Locale = "fr-CA" }},
		{"vertical", func(in *KeyInput) { in.Vertical = models.VerticalHVAC }},
		{"previous keys", func(in *KeyInput) { in.PreviousKeys = nil }},
		{"responses", func(in *KeyInput) { in.Responses["noShowsPerWeek"] = 7.0 }},
		{"loss summary", func(in *KeyInput) { in.LossSummary = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := createKeyInput()
			tt.mutate(&in)
			assert.NotEqual(t, base, Key(in))
		})
	}
}

func TestKeyFor_UsesLatestResponse(t *testing.T) {
	req := &models.GenerateRequest{
		Business: models.BusinessContext{Vertical: models.VerticalDental, Currency: "USD", Locale: "en-US"},
		Snapshot: models.AuditSnapshot{
			AuditID:   "audit-1",
			SectionID: "scheduling-noshows",
			Responses: []models.Response{{Key: "noShowsPerWeek", Value: 2.0}, {Key: "noShowsPerWeek", Value: 6.0}},
		},
	}
	folded := &models.GenerateRequest{
		Business: req.Business,
		Snapshot: models.AuditSnapshot{
			AuditID:   "audit-1",
			SectionID: "scheduling-noshows",
			Responses: []models.Response{{Key: "noShowsPerWeek", Value: 6.0}},
		},
	}

	assert.Equal(t, Key(KeyFor(folded)), Key(KeyFor(req)))
}

// ==========================
// Memory Store Tests
// ==========================

func TestMemoryStore_HitAndMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "k", []byte(`{"insights":[]}`), time.Minute))

	val, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"insights":[]}`, string(val))

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestMemoryStore_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(0).WithClock(clock.Now)

	require.NoError(t, store.Put(ctx, "k", []byte("v1"), 300*time.Second))

	clock.Advance(299 * time.Second)
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok, "entry is live before the ttl elapses")

	clock.Advance(2 * time.Second)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok, "entry is a miss at t=301s")
	assert.Equal(t, 0, store.Stats().Entries, "stale entry is removed on read")

	require.NoError(t, store.Put(ctx, "k", []byte("v2"), 300*time.Second))
	val, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v2", string(val))
}

func TestMemoryStore_ExactExpiryIsMiss(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(0).WithClock(clock.Now)

	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))
	clock.Advance(time.Minute)

	_, ok, _ := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_NonPositiveTTLStoresNothing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Put(ctx, "k", []byte("v"), 0))
	_, ok, _ := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_EvictsOldestPastCeiling(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	require.NoError(t, store.Put(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Put(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, store.Put(ctx, "a", []byte("3"), time.Minute))
	require.NoError(t, store.Put(ctx, "c", []byte("4"), time.Minute))

	_, ok, _ := store.Get(ctx, "b")
	assert.False(t, ok, "b is the oldest insert once a is rewritten")

	val, ok, _ := store.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "3", string(val))

	_, ok, _ = store.Get(ctx, "c")
	assert.True(t, ok)

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Entries)
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	original := []byte("value")
	require.NoError(t, store.Put(ctx, "k", original, time.Minute))
	original[0] = 'X'

	got, _, _ := store.Get(ctx, "k")
	got[1] = 'Y'

	again, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "value", string(again))
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(64)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%100)
				value := []byte(fmt.Sprintf("%s-%d", key, w))
				_ = store.Put(ctx, key, value, time.Minute)

				if got, ok, _ := store.Get(ctx, key); ok {
					assert.Contains(t, string(got), key+"-", "value is never torn")
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Stats().Entries, 64)
}

// ==========================
// Redis Store Tests
// ==========================

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func TestRedisStore_PutGet(t *testing.T) {
	ctx := context.Background()
	mr, store := setupMiniredis(t)

	_, ok, err := store.Get(ctx, "insights:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "insights:abc", []byte(`{"auditId":"a"}`), 300*time.Second))
	assert.Equal(t, 300*time.Second, mr.TTL("insights:abc"))

	val, ok, err := store.Get(ctx, "insights:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"auditId":"a"}`, string(val))
}

func TestRedisStore_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	mr, store := setupMiniredis(t)

	require.NoError(t, store.Put(ctx, "k", []byte("v"), 300*time.Second))
	mr.FastForward(301 * time.Second)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("get failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("k").SetErr(errors.New("connection refused"))

		_, ok, err := NewRedisStore(client).Get(ctx, "k")
		assert.False(t, ok)
		assert.True(t, errors.Is(err, ErrCacheUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set failure", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectSet("k", []byte("v"), time.Minute).SetErr(errors.New("OOM"))

		err := NewRedisStore(client).Put(ctx, "k", []byte("v"), time.Minute)
		assert.True(t, errors.Is(err, ErrCacheUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss is not an error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.ExpectGet("k").RedisNil()

		_, ok, err := NewRedisStore(client).Get(ctx, "k")
		assert.False(t, ok)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
