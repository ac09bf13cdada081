package state

import (
	"fmt"
	"time"
)

// Setting identifies a user adjustable setting.
type Setting int

// Settings, in menu order.
const (
	SettingTimeFormat Setting = iota
	SettingBrightness
	SettingRefreshMode
	settingCount
)

// SettingCount is the number of adjustable settings.
const SettingCount = int(settingCount)

func (s Setting) String() string {
	switch s {
	case SettingTimeFormat:
		return "time_format"
	case SettingBrightness:
		return "brightness"
	case SettingRefreshMode:
		return "refresh_mode"
	default:
		return fmt.Sprintf("setting(%d)", int(s))
	}
}

// RefreshModes are cycled in this order.
var RefreshModes = []string{"fast", "balanced", "slow"}

// Settings is the persisted user settings document.
type Settings struct {
	TimeFormat           int       `json:"time_format"`
	Brightness           int       `json:"brightness"`
	SleepEnabled         bool      `json:"sleep_enabled"`
	SleepTime            string    `json:"sleep_time"`
	WakeTime             string    `json:"wake_time"`
	RefreshMode          string    `json:"refresh_mode"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	LastModified         time.Time `json:"last_modified"`
}

func newSettings(timeFormat int, now time.Time) Settings {
	return Settings{
		TimeFormat:           timeFormat,
		Brightness:           3,
		SleepTime:            "23:00",
		WakeTime:             "07:00",
		RefreshMode:          "balanced",
		NotificationsEnabled: true,
		LastModified:         now.UTC(),
	}
}

// Cycle advances setting s to its next value.
func (s *Settings) Cycle(setting Setting, now time.Time) error {
	switch setting {
	case SettingTimeFormat:
		if s.TimeFormat == 24 {
			s.TimeFormat = 12
		} else {
			s.TimeFormat = 24
		}
	case SettingBrightness:
		s.Brightness = s.Brightness%5 + 1
	case SettingRefreshMode:
		current := 1 // unknown modes count as balanced
		for i, mode := range RefreshModes {
			if mode == s.RefreshMode {
				current = i
				break
			}
		}
		s.RefreshMode = RefreshModes[(current+1)%len(RefreshModes)]
	default:
		return fmt.Errorf("state: unknown %s", setting)
	}
	s.LastModified = now.UTC()
	return nil
}
