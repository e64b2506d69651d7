// Package search backs the dashboard search box. A query matches a call when
// it is a substring of one of the call's fields, or when it sounds like one
// of them.
//
// Sound-alike matching proceeds in two stages:
//
//  1. Double Metaphone codes are computed for every query token and every
//     field token. A field whose codes overlap the query's is a phonetic
//     candidate and is accepted when its best Jaro-Winkler score reaches the
//     phonetic threshold (default 0.70).
//
//  2. Fields without phonetic overlap are accepted only when their
//     Jaro-Winkler score reaches the stricter fuzzy threshold (default 0.85).
//
// Phone numbers are additionally compared digit by digit, so "987 6543"
// finds "+1 (555) 987-6543".
package search

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voxpulse/internal/calls"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// minPhoneDigits is the shortest digit run compared against phone numbers.
	minPhoneDigits = 3
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching field. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a field with no
// phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher scores queries against call records. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Score returns how well query matches the best of fields, in [0, 1]. A
// case-insensitive substring hit scores 1; no acceptable match scores 0. An
// empty query scores 1 against anything.
func (m *Matcher) Score(query string, fields ...string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 1
	}
	qTokens := tokenize(q)
	qCodes := codesForTokens(qTokens)

	best := 0.0
	for _, f := range fields {
		fl := strings.ToLower(strings.TrimSpace(f))
		if fl == "" {
			continue
		}
		if strings.Contains(fl, q) {
			return 1
		}
		fTokens := tokenize(fl)
		if len(qTokens) == 0 || len(fTokens) == 0 {
			continue
		}
		jw := bestJWScore(qTokens, fTokens, strings.Join(qTokens, " "), strings.Join(fTokens, " "))

		threshold := m.fuzzyThreshold
		if codesOverlap(qCodes, codesForTokens(fTokens)) {
			threshold = m.phoneticThreshold
		}
		if jw >= threshold && jw > best {
			best = jw
		}
	}
	return best
}

// Match reports whether r matches query. Ids and phone numbers match by
// substring only; names, agent type and key topics also match by sound.
func (m *Matcher) Match(query string, r calls.Record) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.ID), q) || strings.Contains(r.CustomerPhone, q) || phoneMatch(q, r.CustomerPhone) {
		return true
	}
	return m.Score(q, textFields(r)...) > 0
}

// Calls returns the records of rs matching query, in their original order.
// An empty query returns rs unchanged.
func (m *Matcher) Calls(query string, rs []calls.Record) []calls.Record {
	if strings.TrimSpace(query) == "" {
		return rs
	}
	out := make([]calls.Record, 0, len(rs))
	for _, r := range rs {
		if m.Match(query, r) {
			out = append(out, r)
		}
	}
	return out
}

// textFields lists the free text of r that is matched by sound.
func textFields(r calls.Record) []string {
	fs := []string{r.CustomerName, r.AgentName, string(r.AgentType)}
	if res, ok := r.Analysis.Result(); ok {
		fs = append(fs, res.KeyTopics...)
	}
	return fs
}

// phoneMatch compares the digits of query against the digits of phone.
func phoneMatch(query, phone string) bool {
	qd := digits(query)
	if len(qd) < minPhoneDigits {
		return false
	}
	return strings.Contains(digits(phone), qd)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenize splits s on everything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity across the full
// strings, the space-stripped strings and every token pair.
func bestJWScore(qTokens, fTokens []string, qFull, fFull string) float64 {
	score := matchr.JaroWinkler(qFull, fFull, false)

	if len(qTokens) > 1 || len(fTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(qTokens, ""), strings.Join(fTokens, ""), false); s > score {
			score = s
		}
	}

	for _, qt := range qTokens {
		for _, ft := range fTokens {
			if s := matchr.JaroWinkler(qt, ft, false); s > score {
				score = s
			}
		}
	}
	return score
}
