// Package document holds PDF document metadata
package document

import (
	"strings"
	"time"
)

// Category separates internal and external document libraries
type Category string

const (
	CategoryInternal Category = "internal"
	CategoryExternal Category = "external"
)

// ParseCategory validates a category name
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(s)) {
	case CategoryInternal:
		return CategoryInternal, true
	case CategoryExternal:
		return CategoryExternal, true
	}
	return "", false
}

// Document is the stored metadata of one uploaded PDF
type Document struct {
	ID           string    `json:"id" db:"id"`
	Category     Category  `json:"category" db:"category"`
	Title        string    `json:"title" db:"title"`
	OriginalName string    `json:"original_name" db:"original_name"`
	StoragePath  string    `json:"-" db:"storage_path"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
