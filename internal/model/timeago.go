package model

import (
	"fmt"
	"time"
)

// FormatTimeAgo describes how long before now the instant t was.
// A zero t is reported as "Never."
func FormatTimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "Never."
	}
	d := now.Sub(t)
	if d < time.Minute {
		return "Just now."
	}
	if d < time.Hour {
		return fmt.Sprintf("%s ago.", plural(int(d/time.Minute), "minute"))
	}
	if d < 24*time.Hour {
		hours := int(d / time.Hour)
		minutes := int((d % time.Hour) / time.Minute)
		if minutes == 0 {
			return fmt.Sprintf("%dh ago.", hours)
		}
		return fmt.Sprintf("%dh %s ago.", hours, plural(minutes, "minute"))
	}
	return fmt.Sprintf("%s ago.", plural(int(d/(24*time.Hour)), "day"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
