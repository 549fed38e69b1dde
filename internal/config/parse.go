package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parseBool accepts exactly true/false/1/0, case-insensitive. This is
// deliberately stricter than strconv.ParseBool: "t", "yes", "on" and friends
// must surface as operator errors, not guesses.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean (true/false/1/0)")
}

// parseInt consumes the whole string; trailing garbage ("30x") is an error,
// never a truncation.
func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	return n, nil
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	return n, nil
}

// splitCSV splits a comma-separated value, trimming whitespace and dropping
// empty entries. An empty input yields nil, distinct from "unset" only at
// the resolver layer.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// resolver walks the source chain field by field, collecting every rejected
// value instead of stopping at the first. A rejected field keeps its default
// so later passes still see a structurally complete tree; the aggregate
// error is what the caller gets.
type resolver struct {
	sources []Source
	errs    []FieldError
}

// lookup scans sources from highest precedence (end of chain) to lowest,
// reporting which source supplied the value.
func (r *resolver) lookup(key string) (value, source string, ok bool) {
	for i := len(r.sources) - 1; i >= 0; i-- {
		if v, ok := r.sources[i].Lookup(key); ok {
			return v, r.sources[i].Name(), true
		}
	}
	return "", "", false
}

func (r *resolver) fail(key, value, source, reason string) {
	r.errs = append(r.errs, FieldError{Key: key, Value: value, Source: source, Reason: reason})
}

func (r *resolver) stringVal(key, def string) string {
	if v, _, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *resolver) boolVal(key string, def bool) bool {
	v, src, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, err := parseBool(v)
	if err != nil {
		r.fail(key, v, src, err.Error())
		return def
	}
	return b
}

func (r *resolver) intVal(key string, def int) int {
	v, src, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := parseInt(v)
	if err != nil {
		r.fail(key, v, src, err.Error())
		return def
	}
	return n
}

func (r *resolver) int64Val(key string, def int64) int64 {
	v, src, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := parseInt64(v)
	if err != nil {
		r.fail(key, v, src, err.Error())
		return def
	}
	return n
}

// enumVal normalizes to lowercase and requires membership in allowed.
func (r *resolver) enumVal(key, def string, allowed ...string) string {
	v, src, ok := r.lookup(key)
	if !ok {
		return def
	}
	norm := strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if norm == a {
			return norm
		}
	}
	r.fail(key, v, src, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return def
}

func (r *resolver) csvVal(key string, def []string) []string {
	v, _, ok := r.lookup(key)
	if !ok {
		return def
	}
	return splitCSV(v)
}
