package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatClock renders seconds as M:SS. Non-finite and negative values
// render as 0:00.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// ExtraText is the track's metadata line: "120 BPM • Am", either half on
// its own, or an em dash when the track has neither.
func ExtraText(t Track) string {
	var parts []string
	if t.BPM != 0 {
		parts = append(parts, strconv.FormatFloat(t.BPM, 'f', -1, 64)+" BPM")
	}
	if t.Key != "" {
		parts = append(parts, t.Key)
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, " • ")
}

// formatRuntime renders an album length, switching to hours past 60 minutes.
func formatRuntime(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return ""
	}
	total := int64(seconds)
	if total >= 3600 {
		return fmt.Sprintf("%dh %02dm", total/3600, (total%3600)/60)
	}
	return fmt.Sprintf("%dm %02ds", total/60, total%60)
}
