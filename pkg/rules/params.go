package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/diagnostic"
)

// ErrParamSyntax is returned when a map entry parameter string does not follow
// the grammar `name{char=value;char},name`.
var ErrParamSyntax = errors.New("invalid map entry parameter syntax")

var (
	paramPattern          = regexp.MustCompile(`^([A-Za-z_][\w.-]*)(?:\{(.*)\})?$`)
	characteristicPattern = regexp.MustCompile(`^([A-Za-z_][\w.-]*)(?:=([^;{}=]+))?$`)
)

// Characteristics maps a characteristic id to its value. A nil value marks a
// characteristic given without `=value`.
type Characteristics map[string]*string

// Value returns the characteristic value and whether the characteristic exists.
func (c Characteristics) Value(id string) (string, bool) {
	v, ok := c[id]
	if !ok || v == nil {
		return "", ok
	}
	return *v, true
}

// ParamInfo is the parsed form of a map entry's parameter string.
type ParamInfo struct {
	Params map[string]Characteristics
	Order  []string
}

// Has reports whether the parameter was declared.
func (p ParamInfo) Has(name string) bool {
	_, ok := p.Params[name]
	return ok
}

// Characteristics returns the characteristics declared for name.
func (p ParamInfo) Characteristics(name string) Characteristics {
	return p.Params[name]
}

// ParseParams parses a map entry parameter string. Duplicate parameters and
// duplicate characteristics are reported as warnings and the first occurrence
// wins. Any syntax error invalidates the whole string.
func ParseParams(raw string) (ParamInfo, diagnostic.Diagnostics, error) {
	info := ParamInfo{Params: map[string]Characteristics{}}
	var diags diagnostic.Diagnostics

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return info, diags, nil
	}

	tokens, err := splitTopLevel(trimmed)
	if err != nil {
		return ParamInfo{}, diagnostic.Diagnostics{}, err
	}

	for _, token := range tokens {
		token = strings.TrimSpace(token)
		m := paramPattern.FindStringSubmatch(token)
		if m == nil {
			return ParamInfo{}, diagnostic.Diagnostics{}, fmt.Errorf("%w: parameter %q", ErrParamSyntax, token)
		}
		name := m[1]
		hasBody := strings.HasSuffix(token, "}")

		chars := Characteristics{}
		if hasBody {
			chars, err = parseCharacteristics(name, m[2], &diags)
			if err != nil {
				return ParamInfo{}, diagnostic.Diagnostics{}, err
			}
		}

		if _, dup := info.Params[name]; dup {
			diags.AddWarning(diagnostic.CodeDuplicateParam,
				fmt.Sprintf("parameter %q declared more than once, later declaration ignored", name), raw)
			continue
		}
		info.Params[name] = chars
		info.Order = append(info.Order, name)
	}

	return info, diags, nil
}

func parseCharacteristics(param, body string, diags *diagnostic.Diagnostics) (Characteristics, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty characteristics list for %q", ErrParamSyntax, param)
	}
	chars := Characteristics{}
	for _, pair := range strings.Split(body, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			return nil, fmt.Errorf("%w: empty characteristic in %q", ErrParamSyntax, param)
		}

		// base64 values may end in '=' or '=='; keep the padding out of the match
		core, padding := splitPadding(pair)
		m := characteristicPattern.FindStringSubmatch(core)
		if m == nil {
			return nil, fmt.Errorf("%w: characteristic %q of %q", ErrParamSyntax, pair, param)
		}
		id := m[1]
		var value *string
		if strings.Contains(core, "=") {
			v := m[2] + padding
			value = &v
		} else if padding != "" {
			return nil, fmt.Errorf("%w: characteristic %q of %q has no value", ErrParamSyntax, pair, param)
		}

		if _, dup := chars[id]; dup {
			diags.AddWarning(diagnostic.CodeDuplicateCharacter,
				fmt.Sprintf("characteristic %q of parameter %q declared more than once, later declaration ignored", id, param), param)
			continue
		}
		chars[id] = value
	}
	return chars, nil
}

func splitPadding(pair string) (string, string) {
	switch {
	case strings.HasSuffix(pair, "=="):
		return pair[:len(pair)-2], "=="
	case strings.HasSuffix(pair, "="):
		return pair[:len(pair)-1], "="
	default:
		return pair, ""
	}
}

func splitTopLevel(s string) ([]string, error) {
	var (
		tokens []string
		depth  int
		start  int
	)
	for i, r := range s {
		switch r {
		case '{':
			depth++
			if depth > 1 {
				return nil, fmt.Errorf("%w: nested braces", ErrParamSyntax)
			}
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced braces", ErrParamSyntax)
			}
		case ',':
			if depth == 0 {
				tokens = append(tokens, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced braces", ErrParamSyntax)
	}
	return append(tokens, s[start:]), nil
}
