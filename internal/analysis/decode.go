package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/MrWong99/voxpulse/pkg/types"
)

// ErrMalformed reports a model reply that could not be turned into a valid
// [types.AnalysisResult].
var ErrMalformed = errors.New("malformed analysis payload")

// decodeModelJSON unmarshals JSON from a model reply. It accepts the document
// as-is, or the outermost {...} block when the model wrapped it in prose or a
// code fence.
func decodeModelJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}

	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}

// parseResult decodes and validates a model reply. Every field must be
// present; the score must be a whole number in range and the label one of
// the three known values. Score and label are taken as given and never
// reconciled with each other.
func parseResult(text string) (types.AnalysisResult, error) {
	var p payload
	if err := decodeModelJSON(text, &p); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var errs []error
	if p.Summary == nil {
		errs = append(errs, errors.New("missing summary"))
	}
	score := 0
	switch {
	case p.SentimentScore == nil:
		errs = append(errs, errors.New("missing sentimentScore"))
	case math.Trunc(*p.SentimentScore) != *p.SentimentScore:
		errs = append(errs, fmt.Errorf("sentimentScore %v is not an integer", *p.SentimentScore))
	case *p.SentimentScore < types.MinSentimentScore || *p.SentimentScore > types.MaxSentimentScore:
		errs = append(errs, fmt.Errorf("sentimentScore %v is out of range [%d, %d]",
			*p.SentimentScore, types.MinSentimentScore, types.MaxSentimentScore))
	default:
		score = int(*p.SentimentScore)
	}
	if p.SentimentLabel == nil {
		errs = append(errs, errors.New("missing sentimentLabel"))
	}
	if p.ActionItems == nil {
		errs = append(errs, errors.New("missing actionItems"))
	}
	if p.KeyTopics == nil {
		errs = append(errs, errors.New("missing keyTopics"))
	}
	if len(errs) > 0 {
		return types.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformed, errors.Join(errs...))
	}

	res := types.AnalysisResult{
		Summary:        *p.Summary,
		SentimentScore: score,
		SentimentLabel: types.SentimentLabel(*p.SentimentLabel),
		ActionItems:    p.ActionItems,
		KeyTopics:      p.KeyTopics,
	}
	if err := res.Validate(); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return res, nil
}
