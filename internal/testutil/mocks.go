// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smokyabdulrahman/prayer-engine/internal/metrics"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

// ErrInjected is returned by MockKV when a failure is switched on.
var ErrInjected = errors.New("injected failure")

// MockKV is an in-memory store.KV that can be told to fail.
type MockKV struct {
	mu       sync.Mutex
	Data     map[string][]byte
	FailGet  bool
	FailPut  bool
	GetCalls int
	PutCalls int
}

func NewMockKV() *MockKV {
	return &MockKV{Data: map[string][]byte{}}
}

func (m *MockKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.FailGet {
		return nil, ErrInjected
	}
	v, ok := m.Data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MockKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.FailPut {
		return ErrInjected
	}
	m.Data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
	return nil
}

func (m *MockKV) Close() error { return nil }

// SetFailures switches injected Get/Put failures.
func (m *MockKV) SetFailures(get, put bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailGet, m.FailPut = get, put
}

// Raw returns the stored bytes for key.
func (m *MockKV) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Data[key]
	return v, ok
}

// MockRecorder implements metrics.Recorder and counts calls by name.
type MockRecorder struct {
	metrics.Noop
	mu     sync.Mutex
	Counts map[string]int
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{Counts: map[string]int{}}
}

func (m *MockRecorder) inc(name string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counts[name] += n
}

// Count returns how many times name was recorded.
func (m *MockRecorder) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[name]
}

func (m *MockRecorder) IncRefresh(outcome string)          { m.inc("refresh_"+outcome, 1) }
func (m *MockRecorder) IncLocationFailure(kind string)     { m.inc("location_failure_"+kind, 1) }
func (m *MockRecorder) IncCacheHits()                      { m.inc("cache_hit", 1) }
func (m *MockRecorder) IncCacheMisses()                    { m.inc("cache_miss", 1) }
func (m *MockRecorder) IncCacheErrors(op string)           { m.inc("cache_error_"+op, 1) }
func (m *MockRecorder) IncSettingsPersistFailures()        { m.inc("settings_persist_failure", 1) }
func (m *MockRecorder) IncNotificationsScheduled(n int)    { m.inc("notifications_scheduled", n) }
func (m *MockRecorder) IncNotificationsFired(prayer string) { m.inc("notification_fired_"+prayer, 1) }
func (m *MockRecorder) ObserveCalculationDuration(_ time.Duration) {
	m.inc("calculation", 1)
}
