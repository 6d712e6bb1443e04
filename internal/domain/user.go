// Package domain contains core domain types for the study-abroad advisor.
package domain

import (
	"time"
)

// User is the user-profile record kept alongside the conversation.
// It is used to backfill profile fields the extraction engine could not derive.
type User struct {
	UserID     string    `json:"user_id"`
	FullName   string    `json:"fullname"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsIdle returns true if the user has not been seen within the given window.
func (u *User) IsIdle(window time.Duration, now time.Time) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(u.LastSeenAt) > window
}

// ProfileBackfill returns the profile fields this user record can provide.
func (u *User) ProfileBackfill() Profile {
	return Profile{
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
	}
}
