package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount_GroupsDigits(t *testing.T) {
	assert.Equal(t, "12,345", formatCount(12345))
	assert.Equal(t, "0", formatCount(0))
	assert.Equal(t, "999", formatCount(999))
}

func TestRingLine(t *testing.T) {
	assert.Equal(t, "420/500 kcal (84%)", ringLine(420, 500, "kcal"))
	assert.Equal(t, "30/30 min (100%)", ringLine(30, 30, "min"))
	assert.Equal(t, "7 h", ringLine(7, 0, "h"), "zero goal omits the percentage")
}

func TestFormatTime_SameYearOmitsYear(t *testing.T) {
	now := time.Now()
	got := formatTime(now)
	assert.NotContains(t, got, now.Format("2006"))

	old := now.AddDate(-2, 0, 0)
	assert.Contains(t, formatTime(old), old.Format("2006"))
}
