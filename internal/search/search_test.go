package search_test

import (
	"testing"
	"time"

	"github.com/MrWong99/voxpulse/internal/calls"
	"github.com/MrWong99/voxpulse/internal/search"
	"github.com/MrWong99/voxpulse/pkg/types"
)

var seed = calls.Seed(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

func ids(rs []calls.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestMatcher_Calls(t *testing.T) {
	t.Parallel()
	m := search.New()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query returns all", "  ", []string{"call_x92k20", "call_m192j2", "call_p0291l", "call_f821kk"}},
		{"substring of customer", "freeman", []string{"call_x92k20"}},
		{"case insensitive id", "CALL_P0291L", []string{"call_p0291l"}},
		{"agent name keeps order", "mike", []string{"call_m192j2", "call_f821kk"}},
		{"misspelt customer", "markus chen", []string{"call_m192j2"}},
		{"phone digits ignore punctuation", "987 6543", []string{"call_m192j2"}},
		{"no match", "zzzz", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(m.Calls(tc.query, seed))
			if len(got) != len(tc.want) {
				t.Fatalf("Calls(%q) = %v, want %v", tc.query, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("Calls(%q)[%d] = %s, want %s", tc.query, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestMatcher_KeyTopics(t *testing.T) {
	t.Parallel()
	r := seed[1]
	r.Analysis = calls.Done(types.AnalysisResult{
		Summary:        "Enterprise pricing discussion.",
		SentimentScore: 60,
		SentimentLabel: types.SentimentNeutral,
		ActionItems:    []string{"Send deck"},
		KeyTopics:      []string{"Enterprise Pricing"},
	})

	if !search.New().Match("pricing", r) {
		t.Error("key topics should be searchable")
	}
	if search.New().Match("pricing", seed[1]) {
		t.Error("record without analysis should not match a topic")
	}
}

func TestMatcher_Score(t *testing.T) {
	t.Parallel()
	m := search.New()

	if got := m.Score("", "anything"); got != 1 {
		t.Errorf("empty query score = %f, want 1", got)
	}
	if got := m.Score("chen", "Marcus Chen"); got != 1 {
		t.Errorf("substring score = %f, want 1", got)
	}
	if got := m.Score("markus", "Marcus Chen"); got < 0.7 || got >= 1 {
		t.Errorf("phonetic score = %f, want in [0.7, 1)", got)
	}
	if got := m.Score("hello", "Marcus Chen", "Alice Freeman"); got != 0 {
		t.Errorf("unrelated score = %f, want 0", got)
	}
	if got := m.Score("markus", "", "   "); got != 0 {
		t.Errorf("blank fields score = %f, want 0", got)
	}
}

func TestWithOptions(t *testing.T) {
	t.Parallel()
	strict := search.New(search.WithPhoneticThreshold(0.99), search.WithFuzzyThreshold(0.99))
	if got := strict.Score("markus", "Marcus Chen"); got != 0 {
		t.Errorf("strict score = %f, want 0", got)
	}
	if !strict.Match("freeman", seed[0]) {
		t.Error("substring matches ignore thresholds")
	}
}
