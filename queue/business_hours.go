package queue

import (
	"strconv"
	"strings"
	"time"

	c "github.com/patrickmn/go-cache"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/persistence"
)

const hoursCacheKey = "business_hours"

type businessHours struct {
	Enabled bool
	Start   int // minutes from midnight
	End     int
}

// hoursChecker gates dispatch to the configured daily window. Settings reads
// are cached briefly so the tick loop does not hammer storage.
type hoursChecker struct {
	storage  persistence.SettingsStorage
	defaults config.QueueConfig
	cache    *c.Cache
}

func newHoursChecker(storage persistence.SettingsStorage, cfg config.QueueConfig) *hoursChecker {
	ttl := time.Duration(cfg.SettingsCacheSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &hoursChecker{
		storage:  storage,
		defaults: cfg,
		cache:    c.New(ttl, time.Minute),
	}
}

// Open reports whether now falls inside the business-hours window. Disabled
// means always open; a window wrapping past midnight is handled.
func (h *hoursChecker) Open(now time.Time) bool {
	hours := h.load()
	if !hours.Enabled {
		return true
	}
	if hours.Start == hours.End {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	if hours.Start < hours.End {
		return minute >= hours.Start && minute < hours.End
	}
	return minute >= hours.Start || minute < hours.End
}

func (h *hoursChecker) load() businessHours {
	if cached, ok := h.cache.Get(hoursCacheKey); ok {
		return cached.(businessHours)
	}
	enabledDefault := "false"
	if h.defaults.BusinessHoursEnabled {
		enabledDefault = "true"
	}
	enabled, _ := h.storage.GetSetting(persistence.SETTING_BUSINESS_HOURS_ENABLED, enabledDefault)
	start, _ := h.storage.GetSetting(persistence.SETTING_BUSINESS_HOURS_START, h.defaults.BusinessHoursStart)
	end, _ := h.storage.GetSetting(persistence.SETTING_BUSINESS_HOURS_END, h.defaults.BusinessHoursEnd)
	hours := businessHours{
		Enabled: strings.EqualFold(enabled, "true"),
		Start:   parseClock(start),
		End:     parseClock(end),
	}
	h.cache.Set(hoursCacheKey, hours, c.DefaultExpiration)
	return hours
}

// parseClock turns "HH:MM" into minutes from midnight, zero on bad input.
func parseClock(value string) int {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0
	}
	return hour*60 + minute
}
