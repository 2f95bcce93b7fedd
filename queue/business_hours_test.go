package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/persistence"
	"github.com/zapflow/zapflow/persistence/memory"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 28, hour, minute, 0, 0, time.UTC)
}

func checkerWith(t *testing.T, enabled, start, end string) *hoursChecker {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SetSetting(persistence.SETTING_BUSINESS_HOURS_ENABLED, enabled))
	require.NoError(t, store.SetSetting(persistence.SETTING_BUSINESS_HOURS_START, start))
	require.NoError(t, store.SetSetting(persistence.SETTING_BUSINESS_HOURS_END, end))
	return newHoursChecker(store, config.QueueConfig{})
}

func TestBusinessHours(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"disabled is always open": func(t *testing.T) {
			h := newHoursChecker(memory.NewStore(), config.QueueConfig{})
			require.True(t, h.Open(at(3, 0)))
		},
		"inside the window": func(t *testing.T) {
			h := checkerWith(t, "true", "09:00", "18:00")
			require.True(t, h.Open(at(10, 0)))
			require.True(t, h.Open(at(9, 0)))
			require.True(t, h.Open(at(17, 59)))
		},
		"outside the window": func(t *testing.T) {
			h := checkerWith(t, "true", "09:00", "18:00")
			require.False(t, h.Open(at(20, 0)))
			require.False(t, h.Open(at(8, 59)))
			require.False(t, h.Open(at(18, 0)))
		},
		"window wrapping past midnight": func(t *testing.T) {
			h := checkerWith(t, "true", "22:00", "02:00")
			require.True(t, h.Open(at(23, 0)))
			require.True(t, h.Open(at(1, 30)))
			require.False(t, h.Open(at(3, 0)))
			require.False(t, h.Open(at(12, 0)))
		},
		"equal bounds are always open": func(t *testing.T) {
			h := checkerWith(t, "true", "08:00", "08:00")
			require.True(t, h.Open(at(3, 0)))
		},
		"config defaults apply without stored settings": func(t *testing.T) {
			h := newHoursChecker(memory.NewStore(), config.QueueConfig{
				BusinessHoursEnabled: true, BusinessHoursStart: "09:00", BusinessHoursEnd: "18:00",
			})
			require.False(t, h.Open(at(20, 0)))
			require.True(t, h.Open(at(10, 0)))
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestParseClock(t *testing.T) {
	require.Equal(t, 9*60, parseClock("09:00"))
	require.Equal(t, 18*60+30, parseClock(" 18:30 "))
	require.Equal(t, 0, parseClock("junk"))
	require.Equal(t, 0, parseClock("25:00"))
	require.Equal(t, 0, parseClock("10:75"))
}
