package repository

import (
	"context"
	"time"

	"github.com/hray3182/SpendWise/internal/database"
	"github.com/hray3182/SpendWise/internal/models"
)

type UserSettingsRepository struct {
	db *database.DB
}

func NewUserSettingsRepository(db *database.DB) *UserSettingsRepository {
	return &UserSettingsRepository{db: db}
}

const userSettingsColumns = `user_id, locale, timezone, daily_summary_enabled,
	to_char(daily_summary_time, 'HH24:MI'), last_daily_summary_date, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserSettings(row rowScanner) (*models.UserSettings, error) {
	s := &models.UserSettings{}
	err := row.Scan(
		&s.UserID,
		&s.Locale,
		&s.Timezone,
		&s.DailySummaryEnabled,
		&s.DailySummaryTime,
		&s.LastDailySummaryDate,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetOrCreate retrieves user settings, creating default settings if none exist
func (r *UserSettingsRepository) GetOrCreate(ctx context.Context, userID int64) (*models.UserSettings, error) {
	return scanUserSettings(r.db.Pool.QueryRow(ctx,
		`INSERT INTO user_settings (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING `+userSettingsColumns,
		userID,
	))
}

func (r *UserSettingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.UserSettings, error) {
	return scanUserSettings(r.db.Pool.QueryRow(ctx,
		`SELECT `+userSettingsColumns+` FROM user_settings WHERE user_id = $1`,
		userID,
	))
}

func (r *UserSettingsRepository) SetLocale(ctx context.Context, userID int64, locale string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE user_settings SET locale = $1, updated_at = $2 WHERE user_id = $3`,
		locale, time.Now(), userID,
	)
	return err
}

func (r *UserSettingsRepository) SetTimezone(ctx context.Context, userID int64, timezone string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE user_settings SET timezone = $1, updated_at = $2 WHERE user_id = $3`,
		timezone, time.Now(), userID,
	)
	return err
}

// GetAllUsersWithDailySummaryEnabled returns all user IDs with daily summary enabled
func (r *UserSettingsRepository) GetAllUsersWithDailySummaryEnabled(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT user_id FROM user_settings WHERE daily_summary_enabled = true`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

// SetDailySummaryEnabled toggles daily summary on/off
func (r *UserSettingsRepository) SetDailySummaryEnabled(ctx context.Context, userID int64, enabled bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE user_settings SET daily_summary_enabled = $1, updated_at = $2 WHERE user_id = $3`,
		enabled, time.Now(), userID,
	)
	return err
}

// SetDailySummaryTime updates the daily summary time
func (r *UserSettingsRepository) SetDailySummaryTime(ctx context.Context, userID int64, timeStr string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE user_settings SET daily_summary_time = $1::time, updated_at = $2 WHERE user_id = $3`,
		timeStr, time.Now(), userID,
	)
	return err
}

// SetLastDailySummaryDate updates the last daily summary date
func (r *UserSettingsRepository) SetLastDailySummaryDate(ctx context.Context, userID int64, date time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE user_settings SET last_daily_summary_date = $1 WHERE user_id = $2`,
		date, userID,
	)
	return err
}
