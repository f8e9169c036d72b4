package models

import "time"

// Generation represents one image-generation attempt from submission
// through poll-to-completion.
type Generation struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Theme     string    `json:"theme" db:"theme"`
	Room      string    `json:"room" db:"room"`
	Status    string    `json:"status" db:"status"`
	OutputURL string    `json:"output_url,omitempty" db:"output_url"`
	LocalPath string    `json:"-" db:"local_path"`
	Refunded  bool      `json:"-" db:"refunded"`
	Error     string    `json:"error,omitempty" db:"error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusTimedOut  = "timed_out"
)

// Themes and Rooms are the selectable options the prompt builder accepts.
var Themes = []string{"Modern", "Minimalist", "Professional", "Tropical", "Vintage"}

var Rooms = []string{"Living Room", "Dining Room", "Office", "Bedroom", "Bathroom", "Gaming Room"}

// ValidTheme reports whether theme is one of the selectable themes.
func ValidTheme(theme string) bool {
	for _, t := range Themes {
		if t == theme {
			return true
		}
	}
	return false
}

// ValidRoom reports whether room is one of the selectable room types.
func ValidRoom(room string) bool {
	for _, r := range Rooms {
		if r == room {
			return true
		}
	}
	return false
}
