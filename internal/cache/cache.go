// Package cache keeps the most recent prayer times snapshot per calendar date
// for offline fallback. It is best-effort: every failure is logged, counted
// and reported as a miss.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/prayer-engine/internal/metrics"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

const keyPrefix = "prayer-times:"

// Entry is one cached day. Date is the calendar date (YYYY-MM-DD) it is keyed by.
type Entry struct {
	Date     string             `json:"date"`
	Location prayer.Coordinates `json:"location"`
	Snapshot prayer.Snapshot    `json:"snapshot"`
	Method   string             `json:"method"`
	SavedAt  time.Time          `json:"savedAt"`
}

// Cache stores Entries in a store.KV.
type Cache struct {
	kv      store.KV
	log     zerolog.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu sync.Mutex // serializes writes
}

// New creates a Cache over kv.
func New(kv store.KV, log zerolog.Logger, rec metrics.Recorder) *Cache {
	return &Cache{kv: kv, log: log, metrics: rec, now: time.Now}
}

// Key returns the KV key for the calendar date of date in its own location.
func Key(date time.Time) string {
	return keyPrefix + date.Format(prayer.DateLayout)
}

// Save stores snap as the entry for date, replacing any previous entry.
// It reports whether the write succeeded.
func (c *Cache) Save(ctx context.Context, date time.Time, loc prayer.Coordinates, snap *prayer.Snapshot, method string) bool {
	dateStr := date.Format(prayer.DateLayout)
	entry := Entry{
		Date:     dateStr,
		Location: loc,
		Snapshot: *snap,
		Method:   method,
		SavedAt:  c.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.fail("save", dateStr, err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.kv.Put(ctx, Key(date), data); err != nil {
		c.fail("save", dateStr, err)
		return false
	}
	return true
}

// Get returns the entry for date, or nil when absent, unreadable or for
// another date.
func (c *Cache) Get(ctx context.Context, date time.Time) *Entry {
	dateStr := date.Format(prayer.DateLayout)

	data, err := c.kv.Get(ctx, Key(date))
	if errors.Is(err, store.ErrNotFound) {
		c.metrics.IncCacheMisses()
		return nil
	}
	if err != nil {
		c.fail("get", dateStr, err)
		c.metrics.IncCacheMisses()
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.fail("decode", dateStr, err)
		c.metrics.IncCacheMisses()
		return nil
	}

	// A stale entry for a previous day is useless.
	if entry.Date != dateStr {
		c.metrics.IncCacheMisses()
		return nil
	}

	c.metrics.IncCacheHits()
	return &entry
}

// Delete removes the entry for date. Failures are logged only.
func (c *Cache) Delete(ctx context.Context, date time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.kv.Delete(ctx, Key(date)); err != nil {
		c.fail("delete", date.Format(prayer.DateLayout), err)
	}
}

func (c *Cache) fail(op, date string, err error) {
	c.metrics.IncCacheErrors(op)
	c.log.Warn().Err(err).Str("op", op).Str("date", date).Msg("prayer times cache error")
}
