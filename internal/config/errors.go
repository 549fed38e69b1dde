package config

import (
	"fmt"
	"sort"
	"strings"
)

// FieldError describes one rejected configuration field. Value holds the
// offending raw input, Source names the source that supplied it (empty for
// structural and conflict violations), Reason says why it was rejected.
type FieldError struct {
	Key    string
	Value  string
	Source string
	Reason string
}

func (e FieldError) String() string {
	if e.Source != "" {
		return fmt.Sprintf("%s=%q (from %s): %s", e.Key, e.Value, e.Source, e.Reason)
	}
	return fmt.Sprintf("%s=%q: %s", e.Key, e.Value, e.Reason)
}

// LoadError aggregates every field rejected during a load. Loading never
// stops at the first bad field; operators fix the whole set in one pass.
type LoadError struct {
	Fields []FieldError
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "configuration invalid (%d field(s)):", len(e.Fields))
	for _, f := range e.Fields {
		b.WriteString("\n  ")
		b.WriteString(f.String())
	}
	return b.String()
}

// Keys returns the offending field keys, sorted and deduplicated.
func (e *LoadError) Keys() []string {
	seen := make(map[string]struct{}, len(e.Fields))
	keys := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := seen[f.Key]; ok {
			continue
		}
		seen[f.Key] = struct{}{}
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	return keys
}

// HasKey reports whether the aggregate contains an error for key.
func (e *LoadError) HasKey(key string) bool {
	for _, f := range e.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
