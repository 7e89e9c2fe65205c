// Package logging provides component-prefixed key/value logging for the
// gateway process. The durable audit trail is a separate artifact
// (internal/audit); this package is for operator-facing process logs only.
package logging

import (
	"fmt"
	"log"
	"strings"
)

// Info logs a message with key/value fields under an uppercased component prefix.
func Info(component, msg string, kv ...any) {
	log.Printf("[%s] %s%s", strings.ToUpper(component), msg, formatFields(kv...))
}

// Error logs an error message with key/value fields under an uppercased component prefix.
func Error(component, msg string, kv ...any) {
	log.Printf("[%s] ERROR %s%s", strings.ToUpper(component), msg, formatFields(kv...))
}

func formatFields(kv ...any) string {
	if len(kv) == 0 {
		return ""
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	var b strings.Builder
	b.WriteString(" ")
	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(toString(kv[i]))
		b.WriteString("=")
		b.WriteString(toString(kv[i+1]))
	}
	return b.String()
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return strings.ReplaceAll(strings.TrimSpace(fmt.Sprintf("%v", t)), "\n", " ")
	}
}
