package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxTimeoutSeconds is the largest Second-N value accepted (RFC 4918 section 10.7).
const maxTimeoutSeconds = 1<<32 - 1

// ParseDepth interprets a lock Depth value. "0" is a non-recursive lock,
// "infinity" (or an absent header) is recursive. Depth "1" is not defined
// for locks and is rejected.
func ParseDepth(s string) (recursive bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "infinity":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("types: invalid lock depth %q", s)
	}
}

// FormatDepth is the inverse of ParseDepth.
func FormatDepth(recursive bool) string {
	if recursive {
		return "infinity"
	}
	return "0"
}

// ParseTimeout interprets a Timeout header value such as "Second-3600",
// "Infinite" or a comma-separated list of both. The first value that parses
// wins. An empty value returns zero, meaning "server default".
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if strings.EqualFold(part, "Infinite") {
			return InfiniteTimeout, nil
		}
		const prefix = "second-"
		if len(part) <= len(prefix) || !strings.EqualFold(part[:len(prefix)], prefix) {
			continue
		}
		n, err := strconv.ParseUint(part[len(prefix):], 10, 64)
		if err != nil || n == 0 || n > maxTimeoutSeconds {
			continue
		}
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("types: invalid timeout %q", s)
}

// FormatTimeout renders a timeout the way a Timeout response header expects.
// Sub-second remainders are rounded up so a client never under-estimates a lease.
func FormatTimeout(d time.Duration) string {
	if d < 0 {
		return "Infinite"
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return "Second-" + strconv.FormatInt(secs, 10)
}
