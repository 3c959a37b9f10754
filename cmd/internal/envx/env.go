// Package envx reads PORTAL_* settings from the environment.
//
// The plain getters fall back to the default on a malformed value; the Parse
// variants report it so extension config loaders can fail fast.
package envx

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Error reports a malformed environment value.
type Error struct {
	Key   string
	Value string
}

func (e *Error) Error() string { return fmt.Sprintf("invalid %s=%q", e.Key, e.Value) }

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// String reads a string env var with a default.
func String(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}

// Bool reads a bool env var with a default.
func Bool(key string, def bool) bool {
	b, err := ParseBool(key, def)
	if err != nil {
		return def
	}
	return b
}

// Int reads a positive int env var with a default.
func Int(key string, def int) int {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Int64 reads a positive int64 env var with a default.
func Int64(key string, def int64) int64 {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// List reads a comma separated list. Blank items are dropped.
func List(key string, def []string) []string {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Duration reads a positive duration env var with a default.
func Duration(key string, def time.Duration) time.Duration {
	d, err := ParseDuration(key, def)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ParseBool is Bool that reports malformed values. Besides strconv's forms it
// accepts yes/no and on/off.
func ParseBool(key string, def bool) (bool, error) {
	v, ok := lookup(key)
	if !ok {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &Error{Key: key, Value: v}
	}
	return b, nil
}

// ParseDuration reads a non-negative duration. A bare "0" is accepted.
func ParseDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := lookup(key)
	if !ok {
		return def, nil
	}
	if v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, &Error{Key: key, Value: v}
	}
	return d, nil
}

// ParseInt reads an int no smaller than minVal.
func ParseInt(key string, def, minVal int) (int, error) {
	return ParseIntRange(key, def, minVal, math.MaxInt)
}

// ParseIntRange reads an int within [minVal, maxVal].
func ParseIntRange(key string, def, minVal, maxVal int) (int, error) {
	v, ok := lookup(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < minVal || n > maxVal {
		return 0, &Error{Key: key, Value: v}
	}
	return n, nil
}
