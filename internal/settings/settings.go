// Package settings holds the active calculation settings and persists them
// through a store.KV.
//
// The current value is immutable and swapped whole on every change, so
// readers never observe a half-applied update. Writes are serialized and
// persisted before they return; a failed write is logged and counted, and the
// new value still takes effect for the session.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/prayer-engine/internal/metrics"
	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/store"
)

// Key is the KV key the settings are stored under.
const Key = "settings"

// ValidKeys lists the keys accepted by SetKey.
var ValidKeys = []string{
	"method", "madhab", "high_latitude_rule",
	"adjust.fajr", "adjust.sunrise", "adjust.dhuhr",
	"adjust.asr", "adjust.maghrib", "adjust.isha",
}

// Partial is a settings update. Nil fields are left unchanged; Adjustments
// merge prayer by prayer.
type Partial struct {
	Method           *prayer.Method           `json:"method,omitempty"`
	Madhab           *prayer.Madhab           `json:"madhab,omitempty"`
	HighLatitudeRule *prayer.HighLatitudeRule `json:"highLatitudeRule,omitempty"`
	Adjustments      *AdjustmentsPartial      `json:"adjustmentsMinutes,omitempty"`
}

// AdjustmentsPartial carries per-prayer adjustment overrides.
type AdjustmentsPartial struct {
	Fajr    *int `json:"fajr,omitempty"`
	Sunrise *int `json:"sunrise,omitempty"`
	Dhuhr   *int `json:"dhuhr,omitempty"`
	Asr     *int `json:"asr,omitempty"`
	Maghrib *int `json:"maghrib,omitempty"`
	Isha    *int `json:"isha,omitempty"`
}

func (p *AdjustmentsPartial) apply(a prayer.Adjustments) prayer.Adjustments {
	set := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	set(&a.Fajr, p.Fajr)
	set(&a.Sunrise, p.Sunrise)
	set(&a.Dhuhr, p.Dhuhr)
	set(&a.Asr, p.Asr)
	set(&a.Maghrib, p.Maghrib)
	set(&a.Isha, p.Isha)
	return a
}

// Merge returns base with p applied. The result is not validated.
func (p Partial) Merge(base prayer.Settings) prayer.Settings {
	if p.Method != nil {
		base.Method = *p.Method
	}
	if p.Madhab != nil {
		base.Madhab = *p.Madhab
	}
	if p.HighLatitudeRule != nil {
		base.HighLatitudeRule = *p.HighLatitudeRule
	}
	if p.Adjustments != nil {
		base.Adjustments = p.Adjustments.apply(base.Adjustments)
	}
	return base
}

// Store is the process-wide settings holder.
type Store struct {
	kv      store.KV
	log     zerolog.Logger
	metrics metrics.Recorder

	mu      sync.Mutex // serializes writers
	current atomic.Pointer[prayer.Settings]

	subsMu sync.Mutex
	subs   map[int]func(prayer.Settings)
	nextID int
}

// New returns a Store holding the defaults. Call Load to read persisted settings.
func New(kv store.KV, log zerolog.Logger, rec metrics.Recorder) *Store {
	s := &Store{kv: kv, log: log, metrics: rec}
	def := prayer.DefaultSettings()
	s.current.Store(&def)
	return s
}

// Load reads the persisted settings and makes them current. A missing,
// unreadable or invalid value yields the defaults; it is never an error.
func (s *Store) Load(ctx context.Context) prayer.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.read(ctx)
	s.current.Store(&v)
	return v
}

func (s *Store) read(ctx context.Context) prayer.Settings {
	data, err := s.kv.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Msg("settings read failed, using defaults")
		}
		return prayer.DefaultSettings()
	}

	var v prayer.Settings
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Warn().Err(err).Msg("stored settings are corrupt, using defaults")
		return prayer.DefaultSettings()
	}
	if err := v.Validate(); err != nil {
		s.log.Warn().Err(err).Msg("stored settings are invalid, using defaults")
		return prayer.DefaultSettings()
	}
	return v
}

// Get returns the current settings.
func (s *Store) Get() prayer.Settings {
	return *s.current.Load()
}

// Update merges p into the current settings, persists and returns the result.
// An invalid result is rejected and nothing changes.
func (s *Store) Update(ctx context.Context, p Partial) (prayer.Settings, error) {
	return s.change(ctx, p.Merge)
}

// Replace makes v current wholesale.
func (s *Store) Replace(ctx context.Context, v prayer.Settings) (prayer.Settings, error) {
	return s.change(ctx, func(prayer.Settings) prayer.Settings { return v })
}

// Reset restores and persists the defaults.
func (s *Store) Reset(ctx context.Context) prayer.Settings {
	v, _ := s.change(ctx, func(prayer.Settings) prayer.Settings { return prayer.DefaultSettings() })
	return v
}

// OnChange registers fn to be called with the new settings after every
// change that alters them. Calls happen on the writer's goroutine once the
// write has completed. The returned func unregisters fn.
func (s *Store) OnChange(fn func(prayer.Settings)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.subs == nil {
		s.subs = map[int]func(prayer.Settings){}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) change(ctx context.Context, next func(prayer.Settings) prayer.Settings) (prayer.Settings, error) {
	s.mu.Lock()
	prev := s.Get()
	v, err := s.swap(ctx, next(prev))
	s.mu.Unlock()

	if err == nil && v != prev {
		s.publish(v)
	}
	return v, err
}

func (s *Store) publish(v prayer.Settings) {
	s.subsMu.Lock()
	fns := make([]func(prayer.Settings), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// swap validates, persists and publishes v. Callers hold s.mu.
func (s *Store) swap(ctx context.Context, v prayer.Settings) (prayer.Settings, error) {
	if err := v.Validate(); err != nil {
		return s.Get(), err
	}
	s.persist(ctx, v)
	s.current.Store(&v)
	return v, nil
}

func (s *Store) persist(ctx context.Context, v prayer.Settings) {
	data, err := json.Marshal(v)
	if err == nil {
		err = s.kv.Put(ctx, Key, data)
	}
	if err != nil {
		s.metrics.IncSettingsPersistFailures()
		s.log.Error().Err(err).Str("kind", "SettingsPersistError").
			Msg("failed to persist settings; keeping them for this session")
	}
}

// SetKey updates one setting from its string form, as typed on the command line.
func (s *Store) SetKey(ctx context.Context, key, value string) (prayer.Settings, error) {
	p, err := ParseKey(key, value)
	if err != nil {
		return s.Get(), err
	}
	return s.Update(ctx, p)
}

// ParseKey converts a key/value pair into a Partial.
func ParseKey(key, value string) (Partial, error) {
	var p Partial
	switch key {
	case "method":
		m, err := prayer.ParseMethod(value)
		if err != nil {
			return p, err
		}
		p.Method = &m
	case "madhab", "school":
		m, err := prayer.ParseMadhab(value)
		if err != nil {
			return p, err
		}
		p.Madhab = &m
	case "high_latitude_rule":
		r, err := prayer.ParseHighLatitudeRule(value)
		if err != nil {
			return p, err
		}
		p.HighLatitudeRule = &r
	default:
		name, ok := strings.CutPrefix(key, "adjust.")
		if !ok {
			return p, fmt.Errorf("unknown settings key %q; valid keys: %s", key, strings.Join(ValidKeys, ", "))
		}
		minutes, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("invalid adjustment %q: must be a whole number of minutes", value)
		}
		adj, err := (prayer.Adjustments{}).With(name, minutes)
		if err != nil {
			return p, err
		}
		p.Adjustments = partialFor(name, adj)
	}
	return p, nil
}

func partialFor(name string, adj prayer.Adjustments) *AdjustmentsPartial {
	var p AdjustmentsPartial
	v := adj.Get(canonical(name))
	switch canonical(name) {
	case prayer.Fajr:
		p.Fajr = &v
	case prayer.Sunrise:
		p.Sunrise = &v
	case prayer.Dhuhr:
		p.Dhuhr = &v
	case prayer.Asr:
		p.Asr = &v
	case prayer.Maghrib:
		p.Maghrib = &v
	case prayer.Isha:
		p.Isha = &v
	}
	return &p
}

func canonical(name string) string {
	for _, n := range prayer.AllPrayerNames {
		if strings.EqualFold(n, name) {
			return n
		}
	}
	return name
}

// Overlay reads a Store with Partial applied on top. It is how one-off
// command line overrides take effect without being persisted.
type Overlay struct {
	Store   *Store
	Partial Partial
}

func (o Overlay) Get() prayer.Settings {
	return o.Partial.Merge(o.Store.Get())
}

// OnChange forwards to the underlying Store.
func (o Overlay) OnChange(fn func(prayer.Settings)) func() {
	return o.Store.OnChange(func(prayer.Settings) { fn(o.Get()) })
}
