// Package humanize formats byte sizes, bitrates and durations for the
// status CLI and log lines.
package humanize

import (
	"fmt"
	"time"
)

// Size formats bytes to a human readable string.
func Size(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// Bitrate formats a bits-per-second value, used when rendering
// getTransportStats output in the status command.
func Bitrate(bitsPerSecond float64) string {
	const (
		kbps = 1000.0
		mbps = kbps * 1000
	)

	switch {
	case bitsPerSecond >= mbps:
		return fmt.Sprintf("%.2f Mbps", bitsPerSecond/mbps)
	case bitsPerSecond >= kbps:
		return fmt.Sprintf("%.2f kbps", bitsPerSecond/kbps)
	default:
		return fmt.Sprintf("%.0f bps", bitsPerSecond)
	}
}

// Duration formats a duration as "1h 2m 3s", trimming leading zero units.
func Duration(d time.Duration) string {
	seconds := int(d.Seconds()) % 60
	minutes := int(d.Minutes()) % 60
	hours := int(d.Hours())

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Truncate shortens s to max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
