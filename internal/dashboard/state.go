// Package dashboard owns the VoxPulse application state: which tab is open,
// the call log and its analyses, user settings and the simulated-call flag.
//
// State changes go through the pure [Reduce] function. [Store] serialises
// dispatches, fans the resulting state out to subscribers and copies every
// touched record to an optional [calls.Mirror].
package dashboard

import (
	"errors"

	"github.com/MrWong99/voxpulse/internal/calls"
)

// Sentinel errors returned by [Reduce] and the types built on it.
var (
	ErrCallNotFound       = errors.New("call not found")
	ErrDuplicateCall      = errors.New("call id already exists")
	ErrAnalysisInFlight   = errors.New("analysis already in flight")
	ErrAlreadyAnalyzed    = errors.New("call already analyzed")
	ErrNoTranscript       = errors.New("call has no transcript")
	ErrSimulationInFlight = errors.New("simulation already in flight")
	ErrInvalidTab         = errors.New("tab must not be empty")
)

// Tab is the navigation target shown in the main pane.
type Tab string

// Tabs with a dedicated view. Any other non-empty tab is accepted and
// rendered as a placeholder.
const (
	TabDashboard Tab = "dashboard"
	TabCalls     Tab = "calls"
	TabAnalytics Tab = "analytics"
	TabSettings  Tab = "settings"
)

// Known reports whether t has a dedicated view.
func (t Tab) Known() bool {
	switch t {
	case TabDashboard, TabCalls, TabAnalytics, TabSettings:
		return true
	}
	return false
}

// Settings are the user-adjustable preferences on the settings tab.
type Settings struct {
	EmailReports      bool `json:"emailReports"`
	PushNotifications bool `json:"pushNotifications"`

	// UseProModel asks the analyzer to use the configured pro model.
	UseProModel bool `json:"useProModel"`
}

// DefaultSettings returns the settings every session starts with.
func DefaultSettings() Settings {
	return Settings{EmailReports: true, PushNotifications: true}
}

// State is a snapshot of the whole dashboard.
type State struct {
	Authenticated bool           `json:"authenticated"`
	UserEmail     string         `json:"userEmail,omitempty"`
	ActiveTab     Tab            `json:"activeTab"`
	DarkMode      bool           `json:"darkMode"`
	Calls         []calls.Record `json:"calls"`
	Simulating    bool           `json:"simulating"`
	Settings      Settings       `json:"settings"`
}

// Initial returns a logged-out state on the dashboard tab holding seed.
func Initial(seed []calls.Record) State {
	return State{
		ActiveTab: TabDashboard,
		Calls:     calls.CloneAll(seed),
		Settings:  DefaultSettings(),
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Calls = calls.CloneAll(s.Calls)
	return s
}

// Call returns a copy of the record with id.
func (s State) Call(id string) (calls.Record, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return calls.Record{}, false
	}
	return s.Calls[i].Clone(), true
}

func (s State) indexOf(id string) int {
	for i := range s.Calls {
		if s.Calls[i].ID == id {
			return i
		}
	}
	return -1
}
