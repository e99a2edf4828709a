package auth

import "time"

// IsWithinWindow reports whether now falls inside [start, start+window].
func IsWithinWindow(start, now time.Time, window time.Duration) bool {
	return !now.After(start.Add(window))
}

// IsOutsideWindow is the negation of IsWithinWindow
func IsOutsideWindow(start, now time.Time, window time.Duration) bool {
	return !IsWithinWindow(start, now, window)
}
