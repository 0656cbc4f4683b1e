package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numPrinter renders integers with locale-aware digit grouping, so
// step counts read as "12,345" rather than "12345".
var numPrinter = message.NewPrinter(language.English)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// formatCount renders an integer with digit grouping.
func formatCount(n int) string {
	return numPrinter.Sprintf("%d", n)
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// ringLine renders one ring as "value/goal unit (pct%)". A zero goal
// renders without the percentage.
func ringLine(value, goal float64, unit string) string {
	if goal <= 0 {
		return fmt.Sprintf("%.0f %s", value, unit)
	}

	return fmt.Sprintf("%.0f/%.0f %s (%.0f%%)", value, goal, unit, value/goal*100)
}
