package models

// User is a known identity keyed by its Telegram id.
type User struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}
