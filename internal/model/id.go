package model

import "github.com/google/uuid"

// NewID returns a fresh UUID string, the ID form used on every record.
func NewID() string {
	return uuid.New().String()
}
