package httpx

import (
	"net/http"
	"strconv"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// parseLimit parses the limit query param and clamps it to [1, maxListLimit].
func parseLimit(r *http.Request, def int) int {
	lim := parseIntQuery(r, "limit", def)
	if lim < 1 {
		lim = 1
	}
	if lim > maxListLimit {
		lim = maxListLimit
	}
	return lim
}
