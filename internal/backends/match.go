package backends

import (
	"regexp"
	"strings"
)

// fullMatch compiles pattern anchored at both ends. A blank pattern yields nil.
func fullMatch(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	return regexp.Compile("^(?:" + pattern + ")$")
}
