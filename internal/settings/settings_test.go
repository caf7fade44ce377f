package settings

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokyabdulrahman/prayer-engine/internal/prayer"
	"github.com/smokyabdulrahman/prayer-engine/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, *testutil.MockKV, *testutil.MockRecorder, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	kv := testutil.NewMockKV()
	rec := testutil.NewMockRecorder()
	return New(kv, zerolog.New(&buf), rec), kv, rec, &buf
}

func ptr[T any](v T) *T { return &v }

func TestLoad_DefaultsWhenEmpty(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	got := s.Load(context.Background())
	assert.Equal(t, prayer.DefaultSettings(), got)
	assert.Equal(t, prayer.Settings{
		Method:           prayer.MuslimWorldLeague,
		Madhab:           prayer.Shafi,
		HighLatitudeRule: prayer.MiddleOfTheNight,
	}, got)
}

func TestLoad_DefaultsWhenCorrupt(t *testing.T) {
	tests := map[string]string{
		"not json":       `{"method":`,
		"unknown method": `{"method":"Jafari","madhab":"Shafi","highLatitudeRule":"MiddleOfTheNight"}`,
		"wrong types":    `{"method":3}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			s, kv, _, buf := newTestStore(t)
			kv.Data[Key] = []byte(raw)

			assert.Equal(t, prayer.DefaultSettings(), s.Load(context.Background()))
			assert.Contains(t, buf.String(), "using defaults")
		})
	}
}

func TestLoad_DefaultsWhenReadFails(t *testing.T) {
	s, kv, _, _ := newTestStore(t)
	kv.SetFailures(true, false)
	assert.Equal(t, prayer.DefaultSettings(), s.Load(context.Background()))
}

func TestUpdate_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	s, kv, _, _ := newTestStore(t)

	got, err := s.Update(ctx, Partial{
		Method: ptr(prayer.UmmAlQura),
		Madhab: ptr(prayer.Hanafi),
	})
	require.NoError(t, err)
	assert.Equal(t, prayer.UmmAlQura, got.Method)
	assert.Equal(t, prayer.Hanafi, got.Madhab)
	assert.Equal(t, prayer.MiddleOfTheNight, got.HighLatitudeRule)
	assert.Equal(t, got, s.Get())

	raw, ok := kv.Raw(Key)
	require.True(t, ok, "update must persist before returning")
	assert.Contains(t, string(raw), `"method":"UmmAlQura"`)
	assert.Contains(t, string(raw), `"adjustmentsMinutes"`)

	reloaded := New(kv, zerolog.Nop(), testutil.NewMockRecorder())
	assert.Equal(t, got, reloaded.Load(ctx))
}

func TestUpdate_AdjustmentsMergeKeyByKey(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t)

	_, err := s.Update(ctx, Partial{Adjustments: &AdjustmentsPartial{Fajr: ptr(2), Isha: ptr(-1)}})
	require.NoError(t, err)
	got, err := s.Update(ctx, Partial{Adjustments: &AdjustmentsPartial{Isha: ptr(3)}})
	require.NoError(t, err)

	assert.Equal(t, prayer.Adjustments{Fajr: 2, Isha: 3}, got.Adjustments)
}

func TestUpdate_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s, kv, _, _ := newTestStore(t)

	_, err := s.Update(ctx, Partial{Madhab: ptr(prayer.Madhab("Maliki"))})
	assert.Error(t, err)
	assert.Equal(t, prayer.DefaultSettings(), s.Get())
	assert.Zero(t, kv.PutCalls)
}

func TestUpdate_PersistFailureKeepsValue(t *testing.T) {
	ctx := context.Background()
	s, kv, rec, buf := newTestStore(t)
	kv.SetFailures(false, true)

	got, err := s.Update(ctx, Partial{Method: ptr(prayer.Karachi)})
	require.NoError(t, err, "persistence failures are not surfaced")
	assert.Equal(t, prayer.Karachi, got.Method)
	assert.Equal(t, prayer.Karachi, s.Get().Method)
	assert.Equal(t, 1, rec.Count("settings_persist_failure"))
	assert.Contains(t, buf.String(), "SettingsPersistError")
}

func TestGetReturnsCopy(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	v := s.Get()
	v.Method = prayer.Tehran
	assert.Equal(t, prayer.MuslimWorldLeague, s.Get().Method)
}

func TestReplaceAndReset(t *testing.T) {
	ctx := context.Background()
	s, kv, _, _ := newTestStore(t)

	want := prayer.Settings{
		Method:           prayer.Turkey,
		Madhab:           prayer.Hanafi,
		HighLatitudeRule: prayer.SeventhOfTheNight,
		Adjustments:      prayer.Adjustments{Dhuhr: 2},
	}
	got, err := s.Replace(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Equal(t, prayer.DefaultSettings(), s.Reset(ctx))
	assert.Equal(t, prayer.DefaultSettings(), s.Load(ctx))
	assert.Equal(t, 2, kv.PutCalls)
}

func TestSetKey(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		key, value string
		check      func(t *testing.T, s prayer.Settings)
		wantErr    bool
	}{
		{"method", "egyptian", func(t *testing.T, s prayer.Settings) { assert.Equal(t, prayer.Egyptian, s.Method) }, false},
		{"method", "2", func(t *testing.T, s prayer.Settings) { assert.Equal(t, prayer.NorthAmerica, s.Method) }, false},
		{"madhab", "1", func(t *testing.T, s prayer.Settings) { assert.Equal(t, prayer.Hanafi, s.Madhab) }, false},
		{"school", "hanafi", func(t *testing.T, s prayer.Settings) { assert.Equal(t, prayer.Hanafi, s.Madhab) }, false},
		{"high_latitude_rule", "TwilightAngle", func(t *testing.T, s prayer.Settings) {
			assert.Equal(t, prayer.TwilightAngle, s.HighLatitudeRule)
		}, false},
		{"adjust.maghrib", "3", func(t *testing.T, s prayer.Settings) { assert.Equal(t, 3, s.Adjustments.Maghrib) }, false},
		{"adjust.Fajr", "-2", func(t *testing.T, s prayer.Settings) { assert.Equal(t, -2, s.Adjustments.Fajr) }, false},
		{"adjust.maghrib", "soon", nil, true},
		{"adjust.qiyam", "1", nil, true},
		{"method", "Jafari", nil, true},
		{"city", "Moscow", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s, _, _, _ := newTestStore(t)
			got, err := s.SetKey(ctx, tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, prayer.DefaultSettings(), s.Get())
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Update(ctx, Partial{Adjustments: &AdjustmentsPartial{Fajr: ptr(i)}})
			_ = s.Get()
		}(i)
	}
	wg.Wait()

	assert.NoError(t, s.Get().Validate())
}

func TestOverlay(t *testing.T) {
	s, kv, _, _ := newTestStore(t)
	_, err := s.Update(context.Background(), Partial{Madhab: ptr(prayer.Hanafi)})
	require.NoError(t, err)
	before, _ := kv.Raw(Key)

	o := Overlay{Store: s, Partial: Partial{Method: ptr(prayer.NorthAmerica)}}
	got := o.Get()
	assert.Equal(t, prayer.NorthAmerica, got.Method)
	assert.Equal(t, prayer.Hanafi, got.Madhab, "unset fields come from the store")

	assert.Equal(t, prayer.MuslimWorldLeague, s.Get().Method, "overlay never writes through")
	after, _ := kv.Raw(Key)
	assert.Equal(t, before, after)
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	s, kv, _, _ := newTestStore(t)

	var got []prayer.Settings
	stop := s.OnChange(func(v prayer.Settings) { got = append(got, v) })

	_, err := s.Update(ctx, Partial{Madhab: ptr(prayer.Hanafi)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, prayer.Hanafi, got[0].Madhab)

	// Rejected and unchanged writes are silent.
	_, err = s.Update(ctx, Partial{Method: ptr(prayer.Method("Nope"))})
	require.Error(t, err)
	_, err = s.Update(ctx, Partial{Madhab: ptr(prayer.Hanafi)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// A failed persist still changes the session value, so it is published.
	kv.SetFailures(false, true)
	s.Reset(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, prayer.DefaultSettings(), got[1])

	stop()
	_, err = s.Replace(ctx, prayer.Settings{Method: prayer.Egyptian, Madhab: prayer.Shafi, HighLatitudeRule: prayer.MiddleOfTheNight})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOnChange_SubscriberMayReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t)

	var seen prayer.Settings
	s.OnChange(func(v prayer.Settings) {
		seen = s.Get()
		if v.Madhab == prayer.Hanafi {
			_, _ = s.Update(ctx, Partial{HighLatitudeRule: ptr(prayer.SeventhOfTheNight)})
		}
	})

	_, err := s.Update(ctx, Partial{Madhab: ptr(prayer.Hanafi)})
	require.NoError(t, err)
	assert.Equal(t, prayer.SeventhOfTheNight, s.Get().HighLatitudeRule)
	assert.Equal(t, s.Get(), seen)
}

func TestOverlay_OnChangeAppliesOverrides(t *testing.T) {
	s, _, _, _ := newTestStore(t)
	o := Overlay{Store: s, Partial: Partial{Method: ptr(prayer.NorthAmerica)}}

	var got prayer.Settings
	o.OnChange(func(v prayer.Settings) { got = v })

	_, err := s.Update(context.Background(), Partial{Madhab: ptr(prayer.Hanafi)})
	require.NoError(t, err)
	assert.Equal(t, prayer.NorthAmerica, got.Method)
	assert.Equal(t, prayer.Hanafi, got.Madhab)
}
