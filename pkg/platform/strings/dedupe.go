// Package strings holds small helpers for normalizing caller-supplied string
// lists such as credential types, reveal sets and delegator ids.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim trims every element, drops blanks and keeps the first
// occurrence of each value. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortedSet is DedupeAndTrim followed by an ascending sort, for lists whose
// order must not carry information.
func SortedSet(values []string) []string {
	out := DedupeAndTrim(values)
	slices.Sort(out)
	return out
}
