// Package sqlident validates and quotes the SQL identifiers that reach
// generated warehouse statements.
package sqlident

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentifierLen is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLen = 63

// Validate checks that name is a safe SQL identifier:
//   - Non-empty
//   - At most 63 characters
//   - Matches [a-zA-Z_][a-zA-Z0-9_]*
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name %q must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	return nil
}

// Quote wraps a SQL identifier in double quotes, escaping any embedded
// double-quote characters by doubling them (standard SQL).
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Qualified quotes a table-qualified column reference.
func Qualified(table, column string) string {
	return Quote(table) + "." + Quote(column)
}
