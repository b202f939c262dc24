package session

import (
	"fmt"
	"regexp"
)

// Session and iteration names become Azure blob container and table names,
// so they must satisfy both naming rules at once.
var (
	containerNameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	tableNameRe     = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{2,62}$`)
)

// NameRules is the operator-facing description of a valid name.
const NameRules = `a valid name must conform to these rules:
  - Contains 3 to 63 characters
  - Starts with a letter
  - All letters must be lowercase
  - Name can include letters and numbers
  - Name must not contain '-'
  - Name must not use reserved table names, including 'tables'`

// ValidateName checks a session or iteration name.
func ValidateName(name string) error {
	if len(name) < 3 || len(name) > 63 ||
		!containerNameRe.MatchString(name) ||
		!tableNameRe.MatchString(name) ||
		name == "tables" {
		return fmt.Errorf("invalid name %q: %s", name, NameRules)
	}
	return nil
}
