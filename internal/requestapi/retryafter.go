package requestapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryAfterCap bounds how long a server-supplied hint is honored. Without
// it a single absurd header would stall the call for its whole context
// lifetime.
const retryAfterCap = 30 * time.Second

// parseRetryAfter extracts a wait hint from a Retry-After header value.
// HTTP allows two forms: delta-seconds (a non-negative decimal, though a
// negative number still parses here — clamping is the retry loop's job)
// and an HTTP-date, from which the remaining wait is computed. Hints above
// retryAfterCap are truncated to it. A value that is neither form, or a
// non-finite number, yields no hint; malformed input is never an error.
func parseRetryAfter(v string) (time.Duration, bool) {
	return parseRetryAfterAt(v, time.Now())
}

func parseRetryAfterAt(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsInf(secs, 0) || math.IsNaN(secs) {
			return 0, false
		}
		// Compare before converting: a large enough float overflows the
		// Duration conversion.
		if secs > retryAfterCap.Seconds() {
			return retryAfterCap, true
		}
		return time.Duration(secs * float64(time.Second)), true
	}

	// http.ParseTime covers RFC 1123, RFC 850 and ANSI C asctime. Formats
	// without an explicit zone are parsed as UTC, matching the comparison
	// below.
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now.UTC())
		if d < 0 {
			d = 0
		}
		if d > retryAfterCap {
			d = retryAfterCap
		}
		return d, true
	}

	return 0, false
}
