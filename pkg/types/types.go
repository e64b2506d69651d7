// Package types defines the shared call-centre vocabulary used across all
// VoxPulse packages.
//
// These types are the lingua franca between the analysis requestor, the
// dashboard state, the HTTP API and the MCP tool surface. Each package defines
// its own richer types; cross-cutting enums and the analysis result live here
// to avoid circular imports.
package types

import (
	"errors"
	"fmt"
)

// AgentType is the role the handling agent played on a call.
type AgentType string

const (
	AgentSales   AgentType = "Sales Assistant"
	AgentSupport AgentType = "Customer Support"
	AgentBooking AgentType = "Appointment Booking"
)

// IsValid reports whether a is a recognised agent type.
func (a AgentType) IsValid() bool {
	switch a {
	case AgentSales, AgentSupport, AgentBooking:
		return true
	}
	return false
}

// CallStatus is the terminal or current state of a call.
type CallStatus string

const (
	StatusCompleted CallStatus = "completed"
	StatusMissed    CallStatus = "missed"
	StatusOngoing   CallStatus = "ongoing"
	StatusFailed    CallStatus = "failed"
)

// IsValid reports whether s is a recognised call status.
func (s CallStatus) IsValid() bool {
	switch s {
	case StatusCompleted, StatusMissed, StatusOngoing, StatusFailed:
		return true
	}
	return false
}

// SentimentLabel is the categorical sentiment assigned by the analysis model.
// It is expected, but not guaranteed, to agree with the numeric score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNeutral  SentimentLabel = "Neutral"
	SentimentNegative SentimentLabel = "Negative"
)

// SentimentLabels lists every valid label in display order.
var SentimentLabels = []SentimentLabel{SentimentPositive, SentimentNeutral, SentimentNegative}

// IsValid reports whether l is one of the three recognised labels.
func (l SentimentLabel) IsValid() bool {
	switch l {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Score bounds for AnalysisResult.SentimentScore (inclusive).
const (
	MinSentimentScore = 0
	MaxSentimentScore = 100
)

// AnalysisResult is the structured output of running transcript analysis on
// a call.
type AnalysisResult struct {
	// Summary is a short free-text summary of the call.
	Summary string `json:"summary"`

	// SentimentScore ranges from 0 (very negative) to 100 (very positive).
	SentimentScore int `json:"sentimentScore"`

	// SentimentLabel is the model's categorical sentiment.
	SentimentLabel SentimentLabel `json:"sentimentLabel"`

	// ActionItems are follow-ups extracted from the call, in model order.
	ActionItems []string `json:"actionItems"`

	// KeyTopics are the main subjects discussed, in model order.
	KeyTopics []string `json:"keyTopics"`
}

// Validate checks the result against the field constraints. It does not
// check that the label agrees with the score.
func (r AnalysisResult) Validate() error {
	var errs []error
	if r.SentimentScore < MinSentimentScore || r.SentimentScore > MaxSentimentScore {
		errs = append(errs, fmt.Errorf("sentimentScore %d is out of range [%d, %d]", r.SentimentScore, MinSentimentScore, MaxSentimentScore))
	}
	if !r.SentimentLabel.IsValid() {
		errs = append(errs, fmt.Errorf("sentimentLabel %q is invalid; valid values: Positive, Neutral, Negative", r.SentimentLabel))
	}
	if r.ActionItems == nil {
		errs = append(errs, errors.New("actionItems is required"))
	}
	if r.KeyTopics == nil {
		errs = append(errs, errors.New("keyTopics is required"))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of r so callers can hand results across
// goroutines without sharing slice backing arrays.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.ActionItems = cloneStrings(r.ActionItems)
	out.KeyTopics = cloneStrings(r.KeyTopics)
	return out
}

// cloneStrings copies s, preserving the nil/empty distinction.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
