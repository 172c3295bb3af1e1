package logging

import (
	"regexp"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/internal/config"
)

const redactionPlaceholder = "***"

// Parameters that name files or locations are never redacted, even when
// their name happens to contain a sensitive marker.
var allowlistedParameters = map[string]struct{}{
	"inputFile":       {},
	"outputDirectory": {},
	"outputFilename":  {},
	"tokenFile":       {},
	"logFile":         {},
}

// SanitizeParameters returns a copy of params with the values of sensitive
// parameters (passwords, tokens, secrets) replaced by a placeholder.
func SanitizeParameters(params map[string]string) map[string]string {
	if len(params) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(params))
	for key, value := range params {
		if _, ok := allowlistedParameters[key]; ok {
			out[key] = value
			continue
		}
		if isSensitiveKey(key) {
			out[key] = redactionPlaceholder
			continue
		}
		out[key] = SanitizeText(value)
	}
	return out
}

// SanitizeCommand returns a sanitized string representation of the provided
// command arguments. Values of sensitive flags and the replacement half of a
// -x pair whose token looks sensitive are redacted.
func SanitizeCommand(args []string) string {
	if len(args) == 0 {
		return ""
	}

	sanitized := make([]string, 0, len(args))
	redactNext := false
	for _, arg := range args {
		if redactNext {
			sanitized = append(sanitized, redactionPlaceholder)
			redactNext = false
			continue
		}

		if eq := strings.Index(arg, "="); eq > 0 && strings.HasPrefix(arg, "-") {
			flag, value := arg[:eq], arg[eq+1:]
			if isSensitiveKey(flag) || isSensitiveKey(value) {
				sanitized = append(sanitized, flag+"="+redactionPlaceholder)
				continue
			}
		}
		if strings.HasPrefix(arg, "-") && isSensitiveKey(arg) {
			redactNext = true
		}
		sanitized = append(sanitized, SanitizeText(arg))
	}
	if redactNext {
		sanitized = append(sanitized, redactionPlaceholder)
	}
	return strings.Join(sanitized, " ")
}

// SanitizeSubstitutions redacts the replacement of every substitution whose
// token looks sensitive, returning "old=new" pairs suitable for logging.
func SanitizeSubstitutions(subs []config.Substitution) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		if isSensitiveKey(s.Old) {
			out = append(out, s.Old+"="+redactionPlaceholder)
			continue
		}
		out = append(out, s.Old+"="+s.New)
	}
	return out
}

var sensitivePattern = regexp.MustCompile(`(?i)(password|passphrase|secret|token|apikey|privatekey)=([^\s;&]{1,128})`)

// SanitizeText redacts sensitive key/value pairs inside freeform strings,
// such as credentials embedded in database connection parameters.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	return sensitivePattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := strings.SplitN(match, "=", 2)
		if len(parts) != 2 {
			return match
		}
		return parts[0] + "=" + redactionPlaceholder
	})
}

func isSensitiveKey(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "password") ||
		strings.Contains(lower, "passphrase") ||
		strings.Contains(lower, "secret") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "apikey") ||
		strings.Contains(lower, "privatekey") ||
		strings.Contains(lower, "credential")
}
