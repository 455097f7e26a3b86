// Package format converts raw controller counters and timestamps into display
// values. Everything here is a pure function of its inputs and the clock.
package format

import (
	"fmt"
	"time"
)

const (
	kib = 1024
	mib = 1024 * 1024
	gib = 1024 * 1024 * 1024
	tib = 1024 * 1024 * 1024 * 1024
)

// OnlineWindow is the handshake age within which a peer counts as online.
// Fixed policy constant, inclusive at the boundary.
const OnlineWindow = 120 * time.Second

// timeNow is swapped in tests.
var timeNow = time.Now

// DataSize renders a byte counter with 1024-based units. Values under 1 KB
// render as integer bytes, everything above with two decimals.
func DataSize(bytes int64) string {
	b := float64(bytes)
	switch {
	case bytes < kib:
		return fmt.Sprintf("%d B", bytes)
	case bytes < mib:
		return fmt.Sprintf("%.2f KB", b/kib)
	case bytes < gib:
		return fmt.Sprintf("%.2f MB", b/mib)
	case bytes < tib:
		return fmt.Sprintf("%.2f GB", b/gib)
	default:
		return fmt.Sprintf("%.2f TB", b/tib)
	}
}

// TimeAgo renders an epoch-seconds timestamp as a coarse "N <unit> ago"
// string using floor division. Unit names are always plural.
func TimeAgo(epochSeconds int64) string {
	past := secondsSince(epochSeconds)
	switch {
	case past < 60:
		return fmt.Sprintf("%d seconds ago", int64(past))
	case past < 3600:
		return fmt.Sprintf("%d minutes ago", int64(past/60))
	case past < 86400:
		return fmt.Sprintf("%d hours ago", int64(past/3600))
	case past < 2592000:
		return fmt.Sprintf("%d days ago", int64(past/86400))
	case past < 31536000:
		return fmt.Sprintf("%d months ago", int64(past/2592000))
	default:
		return fmt.Sprintf("%d years ago", int64(past/31536000))
	}
}

// Online reports whether a handshake at epochSeconds is within OnlineWindow.
// Exactly 120.000s old is still online.
func Online(epochSeconds int64) bool {
	return secondsSince(epochSeconds) <= OnlineWindow.Seconds()
}

func secondsSince(epochSeconds int64) float64 {
	return float64(timeNow().UnixMilli()-epochSeconds*1000) / 1000
}
