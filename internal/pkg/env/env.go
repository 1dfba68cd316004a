package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup returns the trimmed value of key. Empty values count as unset.
func lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}

	val = strings.TrimSpace(val)
	return val, val != ""
}

func RequireString(key string) string {
	val, ok := lookup(key)
	if !ok {
		panic(fmt.Sprintf("environment variable %q is required", key))
	}

	return val
}

func String(key, def string) string {
	val, ok := lookup(key)
	if !ok {
		return def
	}

	return val
}

func Int(key string, def int) int {
	val, ok := lookup(key)
	if !ok {
		return def
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}

	return n
}

func Int64(key string, def int64) int64 {
	val, ok := lookup(key)
	if !ok {
		return def
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return def
	}

	return n
}

func Bool(key string, def bool) bool {
	val, ok := lookup(key)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}

	return b
}

func Float64(key string, def float64) float64 {
	val, ok := lookup(key)
	if !ok {
		return def
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}

	return f
}

func Duration(key string, def time.Duration) time.Duration {
	val, ok := lookup(key)
	if !ok {
		return def
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}

	return d
}

// OneOf returns the value of key if it is one of allowed, def otherwise.
func OneOf(key, def string, allowed ...string) string {
	val, ok := lookup(key)
	if !ok {
		return def
	}

	val = strings.ToLower(val)
	for _, a := range allowed {
		if val == a {
			return val
		}
	}

	return def
}
