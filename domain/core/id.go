// Package core holds identifiers shared across the portal's records.
package core

import (
	"github.com/google/uuid"
)

// NewID creates a time-ordered identifier (UUID v7). Records created in the
// same instant still sort by id in creation order, which listing queries
// use as their tie-breaker.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return id.String()
}
