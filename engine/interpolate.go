package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Interpolate replaces {{variable}} placeholders with execution variables.
// Names are case-insensitive and whitespace-tolerant inside the braces;
// dotted names are resolved as paths into nested variable maps. Unresolved
// placeholders render empty so leads never see raw braces.
func Interpolate(content string, variables map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(placeholderRe.FindStringSubmatch(match)[1])
		if value, ok := lookupVariable(variables, name); ok {
			return stringify(value)
		}
		return ""
	})
}

func lookupVariable(variables map[string]any, name string) (any, bool) {
	if value, ok := variables[name]; ok {
		return value, true
	}
	lower := strings.ToLower(name)
	for key, value := range variables {
		if strings.ToLower(key) == lower {
			return value, true
		}
	}
	if strings.Contains(name, ".") {
		if value, err := jsonpath.JsonPathLookup(variables, "$."+name); err == nil && value != nil {
			return value, true
		}
	}
	return nil, false
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Sanitize strips control and zero-width characters from rendered message
// text and normalizes line endings before it reaches the transport.
func Sanitize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			continue
		}
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		if r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
