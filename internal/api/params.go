package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var errBadParam = errors.New("invalid parameter")

// intParam reads name from q, returning def when absent and an error when outside [lo, hi].
func intParam(q url.Values, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadParam, name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", errBadParam, name, lo, hi)
	}
	return v, nil
}

func boolParam(q url.Values, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadParam, name)
	}
	return v, nil
}

func sortParam(q url.Values, def string) (string, error) {
	raw := strings.TrimSpace(q.Get("sort"))
	switch raw {
	case "":
		return def, nil
	case "date", "sim":
		return raw, nil
	default:
		return "", fmt.Errorf("%w: sort must be date or sim", errBadParam)
	}
}
