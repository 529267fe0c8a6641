package util

import "time"

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Truncate shortens s to at most max runes, appending "..." when cut
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
