package models

import "time"

const (
	LocaleEnglish = "en"
	LocaleBengali = "bn"
)

// UserSettings holds per-user preferences for parsing and scheduled summaries.
type UserSettings struct {
	UserID               int64      `json:"user_id"`
	Locale               string     `json:"locale"`
	Timezone             string     `json:"timezone"`
	DailySummaryEnabled  bool       `json:"daily_summary_enabled"`
	DailySummaryTime     string     `json:"daily_summary_time"` // HH:MM format
	LastDailySummaryDate *time.Time `json:"last_daily_summary_date"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewDefaultUserSettings creates a new UserSettings with default values
func NewDefaultUserSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID:              userID,
		Locale:              LocaleEnglish,
		Timezone:            "Asia/Dhaka",
		DailySummaryEnabled: false,
		DailySummaryTime:    "21:00",
		UpdatedAt:           time.Now(),
	}
}

func (s *UserSettings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ShouldSendDailySummary checks if it's time to send the daily summary
func (s *UserSettings) ShouldSendDailySummary(now time.Time) bool {
	if !s.DailySummaryEnabled {
		return false
	}

	loc := s.Location()
	localNow := now.In(loc)
	today := startOfDay(localNow)

	// Check if already sent today
	if s.LastDailySummaryDate != nil {
		lastDate := startOfDay(s.LastDailySummaryDate.In(loc))
		if !lastDate.Before(today) {
			return false
		}
	}

	summaryHour, summaryMin := parseTimeString(s.DailySummaryTime)
	summaryTime := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), summaryHour, summaryMin, 0, 0, loc)

	return !localNow.Before(summaryTime)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ValidLocale reports whether the advisory parser has a prompt for locale.
func ValidLocale(locale string) bool {
	return locale == LocaleEnglish || locale == LocaleBengali
}

// parseTimeString parses "HH:MM" format to hours and minutes
func parseTimeString(timeStr string) (hour, min int) {
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}
