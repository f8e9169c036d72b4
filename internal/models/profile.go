package models

import (
	"time"
)

// Profile represents a user profile in the system
type Profile struct {
	ID        string    `json:"id" db:"id"` // UUID that matches auth.users.id
	Email     string    `json:"email" db:"email"`
	AvatarURL string    `json:"avatar_url" db:"avatar_url"`
	Credits   int       `json:"credits" db:"credits"` // Spendable balance, never negative
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StartingCredits is granted once when a profile is first created.
const StartingCredits = 1

// GenerationCost is the fixed price of one generation attempt.
const GenerationCost = 1

// NewProfileRequest is the request structure for creating a new profile
type NewProfileRequest struct {
	UserID    string `json:"user_id"` // The user ID from Supabase auth
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// NewProfileResponse is the response structure when a profile is created
type NewProfileResponse struct {
	Profile Profile `json:"profile"`
	Success bool    `json:"success"`
}
