package dashboard

import (
	"fmt"

	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/pkg/types"
)

// Action is a state transition understood by [Reduce].
type Action interface {
	// Name identifies the action in events, logs and metrics.
	Name() string
}

// Login signs the user in. Any credentials are accepted.
type Login struct {
	Email    string
	Password string
}

// Logout signs the user out.
type Logout struct{}

// SetTab switches the main pane.
type SetTab struct{ Tab Tab }

// ToggleDarkMode flips the colour scheme.
type ToggleDarkMode struct{}

// StartSimulation marks a simulated call as incoming.
type StartSimulation struct{}

// StopSimulation abandons an incoming simulated call.
type StopSimulation struct{}

// AddCall prepends a new record and ends any running simulation.
type AddCall struct{ Record calls.Record }

// StartAnalysis marks a record's analysis as in flight. Force allows
// re-running a record that already has a successful analysis.
type StartAnalysis struct {
	ID    string
	Force bool
}

// CompleteAnalysis attaches the outcome of an analysis run. Failed marks the
// result as the fallback value.
type CompleteAnalysis struct {
	ID     string
	Result types.AnalysisResult
	Failed bool
}

// ReplaceCall replaces the record with the same id. The existing analysis
// is kept; analyses change only through [StartAnalysis] and
// [CompleteAnalysis].
type ReplaceCall struct{ Record calls.Record }

// UpdateSettings replaces the settings.
type UpdateSettings struct{ Settings Settings }

func (Login) Name() string            { return "login" }
func (Logout) Name() string           { return "logout" }
func (SetTab) Name() string           { return "set_tab" }
func (ToggleDarkMode) Name() string   { return "toggle_dark_mode" }
func (StartSimulation) Name() string  { return "start_simulation" }
func (StopSimulation) Name() string   { return "stop_simulation" }
func (AddCall) Name() string          { return "add_call" }
func (StartAnalysis) Name() string    { return "start_analysis" }
func (CompleteAnalysis) Name() string { return "complete_analysis" }
func (ReplaceCall) Name() string      { return "replace_call" }
func (UpdateSettings) Name() string   { return "update_settings" }

// Reduce applies a to s and returns the new state. s is never modified; on
// error the returned state is s unchanged.
func Reduce(s State, a Action) (State, error) {
	next := s.Clone()

	switch a := a.(type) {
	case Login:
		next.Authenticated = true
		next.UserEmail = a.Email

	case Logout:
		next.Authenticated = false
		next.UserEmail = ""

	case SetTab:
		if a.Tab == "" {
			return s, ErrInvalidTab
		}
		next.ActiveTab = a.Tab

	case ToggleDarkMode:
		next.DarkMode = !next.DarkMode

	case StartSimulation:
		if next.Simulating {
			return s, ErrSimulationInFlight
		}
		next.Simulating = true

	case StopSimulation:
		next.Simulating = false

	case AddCall:
		if err := a.Record.Validate(); err != nil {
			return s, fmt.Errorf("dashboard: add call: %w", err)
		}
		if next.indexOf(a.Record.ID) >= 0 {
			return s, fmt.Errorf("dashboard: add call %q: %w", a.Record.ID, ErrDuplicateCall)
		}
		next.Calls = append([]calls.Record{a.Record.Clone()}, next.Calls...)
		next.Simulating = false

	case StartAnalysis:
		i := next.indexOf(a.ID)
		if i < 0 {
			return s, fmt.Errorf("dashboard: analyze %q: %w", a.ID, ErrCallNotFound)
		}
		rec := &next.Calls[i]
		if !rec.HasTranscript() {
			return s, fmt.Errorf("dashboard: analyze %q: %w", a.ID, ErrNoTranscript)
		}
		switch rec.Analysis.State() {
		case calls.StatePending:
			return s, fmt.Errorf("dashboard: analyze %q: %w", a.ID, ErrAnalysisInFlight)
		case calls.StateDone:
			if !a.Force {
				return s, fmt.Errorf("dashboard: analyze %q: %w", a.ID, ErrAlreadyAnalyzed)
			}
		}
		rec.Analysis = rec.Analysis.Pending()

	case CompleteAnalysis:
		i := next.indexOf(a.ID)
		if i < 0 || !next.Calls[i].Analysis.InFlight() {
			// The record went away or was replaced while the request ran.
			return s, nil
		}
		if a.Failed {
			next.Calls[i].Analysis = calls.Failed(a.Result)
		} else {
			next.Calls[i].Analysis = calls.Done(a.Result)
		}

	case ReplaceCall:
		if err := a.Record.Validate(); err != nil {
			return s, fmt.Errorf("dashboard: replace call: %w", err)
		}
		i := next.indexOf(a.Record.ID)
		if i < 0 {
			return s, fmt.Errorf("dashboard: replace %q: %w", a.Record.ID, ErrCallNotFound)
		}
		if next.Calls[i].Analysis.InFlight() {
			return s, fmt.Errorf("dashboard: replace %q: %w", a.Record.ID, ErrAnalysisInFlight)
		}
		rec := a.Record.Clone()
		rec.Analysis = next.Calls[i].Analysis
		next.Calls[i] = rec

	case UpdateSettings:
		next.Settings = a.Settings

	default:
		return s, fmt.Errorf("dashboard: unknown action %T", a)
	}
	return next, nil
}

// touchedID returns the id of the record a changes, if any.
func touchedID(a Action) string {
	switch a := a.(type) {
	case AddCall:
		return a.Record.ID
	case StartAnalysis:
		return a.ID
	case CompleteAnalysis:
		return a.ID
	case ReplaceCall:
		return a.Record.ID
	}
	return ""
}
