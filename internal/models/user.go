package models

import (
	"strconv"
	"time"
)

// User mirrors a Telegram identity, upserted on app load keyed by the
// Telegram numeric id.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DisplayName returns a human-readable identity: the Telegram handle when
// present, falling back to the first name, falling back to the numeric id.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return strconv.FormatInt(u.TelegramID, 10)
}
