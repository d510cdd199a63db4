package github

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Decision is the rate window derived from one response: how long to sleep
// before the next full cycle, whether the upstream throttled us, and the
// pagination target (empty when the page set is exhausted).
type Decision struct {
	Sleep       time.Duration
	RateLimited bool
	Next        string
}

// Policy turns response headers into scheduling decisions. It holds no state;
// every decision is computed from scratch.
type Policy struct {
	// BaseInterval is the minimum pause between full poll cycles, applied
	// even when the quota is healthy.
	BaseInterval time.Duration
	// HardLimit bounds the sleep when the quota is exhausted but the reset
	// header is missing, preventing a tight retry loop.
	HardLimit time.Duration
}

// Decide evaluates the rate-limit signals in priority order: an explicit
// Retry-After hint wins over quota accounting, which wins over the base
// cadence. The returned sleep is never below BaseInterval.
func (p Policy) Decide(h http.Header, now time.Time) Decision {
	sleep, limited := p.throttle(h, now)
	if sleep < p.BaseInterval {
		sleep = p.BaseInterval
	}
	return Decision{
		Sleep:       sleep,
		RateLimited: limited,
		Next:        nextLink(h.Get("Link")),
	}
}

func (p Policy) throttle(h http.Header, now time.Time) (time.Duration, bool) {
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			if secs < 0 {
				secs = 0
			}
			return time.Duration(secs) * time.Second, true
		}
	}

	if remaining, err := strconv.Atoi(strings.TrimSpace(h.Get("X-RateLimit-Remaining"))); err == nil && remaining == 0 {
		if v := strings.TrimSpace(h.Get("X-RateLimit-Reset")); v != "" {
			if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
				d := time.Unix(epoch, 0).Sub(now)
				if d < 0 {
					d = 0
				}
				return d, true
			}
		}
		return p.HardLimit, true
	}

	return 0, false
}

// nextLink extracts the rel="next" target from a Link header value.
// Absent or malformed entries yield no target.
func nextLink(header string) string {
	for _, entry := range strings.Split(header, ",") {
		sections := strings.Split(entry, ";")
		if len(sections) < 2 {
			continue
		}

		target := strings.TrimSpace(sections[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		target = strings.Trim(target, "<>")

		for _, param := range sections[1:] {
			param = strings.TrimSpace(param)
			if param != `rel="next"` && param != "rel=next" {
				continue
			}
			if u, err := url.Parse(target); err == nil && u.IsAbs() {
				return target
			}
		}
	}
	return ""
}
