package schema

import (
	"regexp"
	"strings"

	"dataportal/internal/errors"
	"dataportal/internal/header"

	"github.com/iancoleman/strcase"
)

var (
	identPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	underscores  = regexp.MustCompile(`_+`)
)

// TableName derives a table identifier from user input: snake case,
// characters outside [a-z0-9_] replaced, repeated underscores collapsed.
func TableName(input string) (string, error) {
	s := header.Normalize(strcase.ToSnake(strings.TrimSpace(input)))
	s = strings.Trim(underscores.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "", errors.InvalidInput("table name is required")
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "t_" + s
	}
	if len(s) > header.MaxIdentifierLength {
		s = strings.TrimRight(s[:header.MaxIdentifierLength], "_")
	}
	return s, nil
}

// ValidIdentifier reports whether name is a canonical identifier
func ValidIdentifier(name string) bool {
	return len(name) <= header.MaxIdentifierLength && identPattern.MatchString(name)
}

// Policy decides whether a table name may be managed by the portal.
type Policy interface {
	Check(name string) error
}

// ReservedNames rejects exact names and name prefixes.
type ReservedNames struct {
	names    map[string]bool
	prefixes []string
}

// DefaultReserved protects the portal's own tables and the engines' catalogs,
// plus any extra names.
func DefaultReserved(extra ...string) *ReservedNames {
	r := &ReservedNames{
		names: map[string]bool{
			"documents":          true,
			"import_runs":        true,
			"schema_migrations":  true,
			"information_schema": true,
		},
		prefixes: []string{"pg_", "sqlite_"},
	}
	for _, n := range extra {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			r.names[n] = true
		}
	}
	return r
}

// Check returns a SchemaConflict error for reserved names
func (r *ReservedNames) Check(name string) error {
	if r.names[name] {
		return errors.SchemaConflict("table name " + name + " is reserved")
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(name, p) {
			return errors.SchemaConflict("table name " + name + " uses the reserved prefix " + p)
		}
	}
	return nil
}

// Reserved reports whether the policy rejects name
func Reserved(p Policy, name string) bool {
	return p != nil && p.Check(name) != nil
}
