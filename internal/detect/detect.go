// Package detect is the heuristic injection scanner. It annotates request
// payloads with pattern findings for the audit trail and never rejects
// anything itself: strict schema typing is the blocking control, this
// layer exists so that a bypass of one control is still visible.
package detect

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ppiankov/admingate/internal/model"
)

// maxMatchLen bounds the matched text copied into a finding.
const maxMatchLen = 64

// Pattern categories. Each compiles independently and every match is
// collected; detection never short-circuits.
const (
	CategorySQLKeyword     = "sql_keyword"
	CategorySQLTautology   = "sql_tautology"
	CategoryQueryOperator  = "query_operator"
	CategoryScriptTag      = "script_tag"
	CategoryScriptProtocol = "script_protocol"
	CategoryEventHandler   = "event_handler"
	CategoryShellMeta      = "shell_meta"
	CategoryPathTraversal  = "path_traversal"
)

type signature struct {
	category string
	re       *regexp.Regexp
}

var signatures = []signature{
	{CategorySQLKeyword, regexp.MustCompile(`(?i)\b(union\s+(all\s+)?select|select\s+.+\s+from|insert\s+into|delete\s+from|drop\s+(table|database)|update\s+\w+\s+set|truncate\s+table|exec(ute)?\s*\()`)},
	{CategorySQLTautology, regexp.MustCompile(`(?i)\b(or|and)\b\s*['"]?\w+['"]?\s*=\s*['"]?\w+['"]?`)},
	{CategoryQueryOperator, regexp.MustCompile(`^\s*\$\w+`)},
	{CategoryScriptTag, regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe|object|embed|svg|img)\b`)},
	{CategoryScriptProtocol, regexp.MustCompile(`(?i)\b(javascript|vbscript)\s*:`)},
	{CategoryEventHandler, regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)},
	{CategoryShellMeta, regexp.MustCompile("[;|`]|\\$\\(|&&")},
	{CategoryPathTraversal, regexp.MustCompile(`\.\./|\.\.\\`)},
}

// Scan recursively visits every string leaf and every object key in v and
// returns all pattern findings. Pure over its input: identical inputs
// yield identical findings, and no-match inputs yield an empty slice.
func Scan(v any) []model.DetectionFinding {
	var findings []model.DetectionFinding
	walk("", v, &findings)
	return findings
}

func walk(path string, v any, findings *[]model.DetectionFinding) {
	switch val := v.(type) {
	case string:
		scanString(path, val, findings)
	case map[string]any:
		// Deterministic order so repeated scans report identically.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			// Object keys are scanned too: operator-shaped keys are the
			// signature of document-query injection.
			scanString(childPath, k, findings)
			walk(childPath, val[k], findings)
		}
	case []any:
		for i, item := range val {
			walk(fmt.Sprintf("%s[%d]", path, i), item, findings)
		}
	}
}

func scanString(path, s string, findings *[]model.DetectionFinding) {
	for _, sig := range signatures {
		match := sig.re.FindString(s)
		if match == "" {
			continue
		}
		if len(match) > maxMatchLen {
			match = match[:maxMatchLen]
		}
		*findings = append(*findings, model.DetectionFinding{
			Field:    path,
			Category: sig.category,
			Match:    match,
		})
	}
}
