// Package calls holds the call-log records shown on the dashboard: the
// record type itself, the analysis state attached to each record, the seed
// data every session starts from and an optional write-through mirror.
package calls

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voxpulse/pkg/types"
)

// AnalysisState names the variant of an [Analysis].
type AnalysisState string

const (
	// StateNotRun means no analysis has been requested for the record.
	StateNotRun AnalysisState = "not_run"
	// StatePending means a request is in flight.
	StatePending AnalysisState = "pending"
	// StateDone means the provider answered and the result is attached.
	StateDone AnalysisState = "done"
	// StateFailed means the request completed with the fallback result.
	StateFailed AnalysisState = "failed"
)

// IsValid reports whether s is one of the known states.
func (s AnalysisState) IsValid() bool {
	switch s {
	case StateNotRun, StatePending, StateDone, StateFailed:
		return true
	}
	return false
}

// Analysis is the analysis slot of a [Record]. The zero value is NotRun.
//
// Pending keeps whatever result was attached before the run started so the
// UI never loses a rendered analysis while a re-run is in flight. Done and
// Failed always carry a result.
type Analysis struct {
	state  AnalysisState
	result *types.AnalysisResult
}

// NotRun returns the empty analysis slot.
func NotRun() Analysis { return Analysis{state: StateNotRun} }

// Done returns a completed analysis carrying r.
func Done(r types.AnalysisResult) Analysis {
	c := r.Clone()
	return Analysis{state: StateDone, result: &c}
}

// Failed returns a completed analysis carrying the fallback result r.
func Failed(r types.AnalysisResult) Analysis {
	c := r.Clone()
	return Analysis{state: StateFailed, result: &c}
}

// Pending returns an in-flight analysis that keeps a's result, if any.
func (a Analysis) Pending() Analysis {
	return Analysis{state: StatePending, result: a.result}
}

// State returns the variant. The zero value reports [StateNotRun].
func (a Analysis) State() AnalysisState {
	if a.state == "" {
		return StateNotRun
	}
	return a.state
}

// InFlight reports whether a request is outstanding.
func (a Analysis) InFlight() bool { return a.state == StatePending }

// Result returns a copy of the attached result.
func (a Analysis) Result() (types.AnalysisResult, bool) {
	if a.result == nil {
		return types.AnalysisResult{}, false
	}
	return a.result.Clone(), true
}

type analysisJSON struct {
	State  AnalysisState         `json:"state"`
	Result *types.AnalysisResult `json:"result,omitempty"`
}

// MarshalJSON encodes the slot as {"state":...,"result":...}.
func (a Analysis) MarshalJSON() ([]byte, error) {
	return json.Marshal(analysisJSON{State: a.State(), Result: a.result})
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON.
func (a *Analysis) UnmarshalJSON(b []byte) error {
	var v analysisJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.State == "" {
		v.State = StateNotRun
	}
	if !v.State.IsValid() {
		return fmt.Errorf("calls: unknown analysis state %q", v.State)
	}
	switch v.State {
	case StateDone, StateFailed:
		if v.Result == nil {
			return fmt.Errorf("calls: analysis state %q requires a result", v.State)
		}
	case StateNotRun:
		v.Result = nil
	}
	*a = Analysis{state: v.State, result: v.Result}
	return nil
}

// Record is one logged customer interaction.
type Record struct {
	ID              string           `json:"id"`
	CustomerName    string           `json:"customerName"`
	CustomerPhone   string           `json:"customerPhone"`
	AgentName       string           `json:"agentName"`
	AgentType       types.AgentType  `json:"agentType"`
	DurationSeconds int              `json:"durationSeconds"`
	Status          types.CallStatus `json:"status"`
	Timestamp       time.Time        `json:"timestamp"`
	Transcript      string           `json:"transcript"`
	Analysis        Analysis         `json:"analysis"`
}

// Validate reports structural problems with r.
func (r Record) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if r.DurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("durationSeconds %d must not be negative", r.DurationSeconds))
	}
	if !r.AgentType.IsValid() {
		errs = append(errs, fmt.Errorf("unknown agentType %q", r.AgentType))
	}
	if !r.Status.IsValid() {
		errs = append(errs, fmt.Errorf("unknown status %q", r.Status))
	}
	if r.Timestamp.IsZero() {
		errs = append(errs, errors.New("timestamp must be set"))
	}
	return errors.Join(errs...)
}

// HasTranscript reports whether r carries a non-empty transcript.
func (r Record) HasTranscript() bool {
	return r.Transcript != ""
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Analysis.result != nil {
		c := r.Analysis.result.Clone()
		r.Analysis.result = &c
	}
	return r
}

// CloneAll deep-copies a slice of records.
func CloneAll(rs []Record) []Record {
	if rs == nil {
		return nil
	}
	out := make([]Record, len(rs))
	for i := range rs {
		out[i] = rs[i].Clone()
	}
	return out
}
