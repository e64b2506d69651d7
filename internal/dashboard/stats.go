package dashboard

import (
	"fmt"

	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/pkg/types"
)

// DefaultActiveAgents is the agent count shown when none is configured.
const DefaultActiveAgents = 3

// Stats are the headline numbers on the dashboard tab.
type Stats struct {
	TotalCalls         int `json:"totalCalls"`
	TotalMinutes       int `json:"totalMinutes"`
	AvgDurationMinutes int `json:"avgDurationMinutes"`
	ActiveAgents       int `json:"activeAgents"`
}

// ComputeStats derives [Stats] from the call log. Minutes are floored, and
// the average is the floored total minutes divided by the call count.
func ComputeStats(rs []calls.Record, activeAgents int) Stats {
	var seconds int
	for _, r := range rs {
		seconds += r.DurationSeconds
	}
	st := Stats{
		TotalCalls:   len(rs),
		TotalMinutes: seconds / 60,
		ActiveAgents: activeAgents,
	}
	if st.TotalCalls > 0 {
		st.AvgDurationMinutes = st.TotalMinutes / st.TotalCalls
	}
	return st
}

// Color is a named UI colour.
type Color string

const (
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorGray   Color = "gray"
)

// StatusColor maps a call status to its badge colour. Unknown statuses are
// gray.
func StatusColor(s types.CallStatus) Color {
	switch s {
	case types.StatusCompleted:
		return ColorGreen
	case types.StatusMissed:
		return ColorRed
	case types.StatusOngoing:
		return ColorOrange
	default:
		return ColorGray
	}
}

// SentimentColor maps a sentiment score to its colour.
func SentimentColor(score int) Color {
	switch {
	case score >= 75:
		return ColorGreen
	case score >= 40:
		return ColorOrange
	default:
		return ColorRed
	}
}

// FormatDuration renders seconds as m:ss. Negative input renders as 0:00.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
