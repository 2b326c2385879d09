package models

import "time"

// Session represents a visitor's demo session
type Session struct {
	ID        string
	CreatedAt time.Time
	LastSeen  time.Time
}
