package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMinContentLength is the shortest trimmed content, in characters, that
// can pass the relevance gate.
const DefaultMinContentLength = 30

// RelevanceMode combines the fire predicate with the location/structure predicate.
type RelevanceMode string

const (
	ModeAnd RelevanceMode = "and"
	ModeOr  RelevanceMode = "or"
)

// ParseRelevanceMode validates a combinator name.
func ParseRelevanceMode(s string) (RelevanceMode, error) {
	switch m := RelevanceMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAnd, ModeOr:
		return m, nil
	default:
		return "", fmt.Errorf("unknown relevance mode %q", s)
	}
}

// RelevanceFilter is the keyword gate in front of the classifier.
type RelevanceFilter struct {
	mode      RelevanceMode
	minLength int
	fire      []string
	structure []string
	locations []string
}

// NewRelevanceFilter lowers every keyword once and derives state hashtag tokens.
func NewRelevanceFilter(targets Targets, mode RelevanceMode, minLength int) *RelevanceFilter {
	if mode == "" {
		mode = ModeAnd
	}
	f := &RelevanceFilter{
		mode:      mode,
		minLength: minLength,
		fire:      lowerAll(targets.FireKeywords),
		structure: lowerAll(targets.StructureKeywords),
	}

	seen := make(map[string]struct{})
	addLoc := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		f.locations = append(f.locations, s)
	}
	for _, s := range targets.States {
		addLoc(s)
		compact := strings.ReplaceAll(s, " ", "")
		addLoc("#" + compact)
		addLoc("#fire" + compact)
	}
	for _, c := range targets.Cities {
		addLoc(c)
	}
	return f
}

// Relevant reports whether content passes the gate.
func (f *RelevanceFilter) Relevant(content string) bool {
	trimmed := strings.TrimSpace(content)
	if utf8.RuneCountInString(trimmed) < f.minLength {
		return false
	}
	lowered := strings.ToLower(trimmed)
	fire := containsAny(lowered, f.fire)
	place := containsAny(lowered, f.locations) || containsAny(lowered, f.structure)
	if f.mode == ModeOr {
		return fire || place
	}
	return fire && place
}

// Filter returns the records whose content passes the gate.
func (f *RelevanceFilter) Filter(records []RawRecord) []RawRecord {
	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if f.Relevant(r.Content) {
			out = append(out, r)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
