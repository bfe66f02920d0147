package pipeline

import (
	"fmt"
	"regexp"
	"strings"
)

// applyReplacement rewrites input according to the unit's replacement
// spec. Non-regex mode never interprets Find as a pattern: the
// case-insensitive variant escapes it before compiling. A malformed
// user-supplied pattern is a ConfigError, not a panic.
func applyReplacement(input string, unit Unit) (string, error) {
	spec := unit.Replacement
	if spec == nil {
		return "", &ConfigError{Unit: unit.Name, Reason: "replacement unit has no replacement spec"}
	}

	if !spec.Regex {
		if spec.CaseSensitive {
			return strings.ReplaceAll(input, spec.Find, spec.Replace), nil
		}
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(spec.Find))
		if err != nil {
			return "", &ConfigError{Unit: unit.Name, Reason: fmt.Sprintf("compile literal pattern: %v", err)}
		}
		return re.ReplaceAllLiteralString(input, spec.Replace), nil
	}

	pattern := spec.Find
	if !spec.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", &ConfigError{Unit: unit.Name, Reason: fmt.Sprintf("invalid pattern %q: %v", spec.Find, err)}
	}
	return re.ReplaceAllString(input, spec.Replace), nil
}
