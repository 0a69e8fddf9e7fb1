package queue

import (
	"strconv"
	"strings"
)

// minutesOfDay converts a time-of-day string to minutes since midnight.
// Accepts "HH:MM", "HH:MM:SS" and date-qualified forms like
// "2024-03-05T08:30:00" or "2024-03-05 08:30". Unparseable input maps
// to 0, so a malformed slot sorts to the front instead of breaking the
// queue order.
func minutesOfDay(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[i+1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0
	}
	return h*60 + m
}
