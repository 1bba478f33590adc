package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Tier classifies an alert term
type Tier string

const (
	TierLive Tier = "live"
	TierDev  Tier = "dev"
)

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	return t == TierLive || t == TierDev
}

// Term is a phrase to look for in transcripts
type Term struct {
	Phrase      string `json:"phrase"`
	Tier        Tier   `json:"tier"`
	MaxDistance int    `json:"max_distance"`
}

// Event is a single approximate match of a term. Start and End are rune
// offsets into the lower-cased text, End exclusive.
type Event struct {
	Term        Term      `json:"term"`
	Tier        Tier      `json:"tier"`
	MatchedText string    `json:"matched_text"`
	Start       int       `json:"start"`
	End         int       `json:"end"`
	Distance    int       `json:"distance"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Matcher scans text for a fixed list of terms. It holds no state between
// scans and is safe for concurrent use.
type Matcher struct {
	terms    []Term
	patterns [][]rune
}

// NewMatcher creates a matcher for terms, scanned in the given order
func NewMatcher(terms []Term) (*Matcher, error) {
	m := &Matcher{}
	for _, term := range terms {
		phrase := strings.ToLower(strings.TrimSpace(term.Phrase))
		if phrase == "" {
			return nil, fmt.Errorf("alert term cannot be empty")
		}
		if !term.Tier.Valid() {
			return nil, fmt.Errorf("alert term %q: unknown tier %q", term.Phrase, term.Tier)
		}
		if term.MaxDistance < 0 {
			return nil, fmt.Errorf("alert term %q: max distance cannot be negative", term.Phrase)
		}
		if term.MaxDistance >= utf8.RuneCountInString(phrase) {
			return nil, fmt.Errorf("alert term %q: max distance %d would match any text",
				term.Phrase, term.MaxDistance)
		}
		m.terms = append(m.terms, term)
		m.patterns = append(m.patterns, []rune(phrase))
	}
	return m, nil
}

// Terms returns the configured terms
func (m *Matcher) Terms() []Term {
	return append([]Term(nil), m.terms...)
}

// Scan returns every non-overlapping approximate match of every term in
// text. Events are grouped by term in configuration order and ordered by
// position within a term.
func (m *Matcher) Scan(text string, detectedAt time.Time) []Event {
	lowered := []rune(strings.ToLower(text))

	var events []Event
	for i, term := range m.terms {
		for _, match := range findNearMatches(m.patterns[i], lowered, term.MaxDistance) {
			events = append(events, Event{
				Term:        term,
				Tier:        term.Tier,
				MatchedText: string(lowered[match.start:match.end]),
				Start:       match.start,
				End:         match.end,
				Distance:    match.distance,
				DetectedAt:  detectedAt,
			})
		}
	}
	return events
}

// Hits returns the distinct tiers and terms that occur in events
func Hits(events []Event) (tiers []Tier, terms []Term) {
	seenTier := map[Tier]bool{}
	seenTerm := map[Term]bool{}
	for _, ev := range events {
		if !seenTier[ev.Tier] {
			seenTier[ev.Tier] = true
			tiers = append(tiers, ev.Tier)
		}
		if !seenTerm[ev.Term] {
			seenTerm[ev.Term] = true
			terms = append(terms, ev.Term)
		}
	}
	return tiers, terms
}

type nearMatch struct {
	start, end, distance int
}

// findNearMatches returns non-overlapping substrings of text within maxDist
// edits of pattern, ordered by start. Overlapping candidates are resolved in
// favour of the lowest distance, then the earliest start, then the shortest
// span.
func findNearMatches(pattern, text []rune, maxDist int) []nearMatch {
	candidates := nearMatchEnds(pattern, text, maxDist)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.end-a.start < b.end-b.start
	})

	var accepted []nearMatch
	for _, c := range candidates {
		overlaps := false
		for _, a := range accepted {
			if c.start < a.end && a.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

// nearMatchEnds runs the substring edit-distance recurrence, where a match
// may begin anywhere in text, and reports one candidate per end position
// whose best distance is within maxDist.
func nearMatchEnds(pattern, text []rune, maxDist int) []nearMatch {
	m := len(pattern)
	if m == 0 {
		return nil
	}

	// prev/cur hold one column of the DP table, indexed by pattern position.
	// starts tracks the text offset where the best alignment for each cell begins.
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	prevStart := make([]int, m+1)
	curStart := make([]int, m+1)
	for i := range prev {
		prev[i] = i
	}

	var out []nearMatch
	for j := 1; j <= len(text); j++ {
		cur[0] = 0
		curStart[0] = j
		for i := 1; i <= m; i++ {
			cost := 1
			if pattern[i-1] == text[j-1] {
				cost = 0
			}

			best := prev[i-1] + cost
			start := prevStart[i-1]

			// pattern rune missing from text
			if v := cur[i-1] + 1; v < best || (v == best && curStart[i-1] > start) {
				best, start = v, curStart[i-1]
			}
			// extra rune in text
			if v := prev[i] + 1; v < best {
				best, start = v, prevStart[i]
			}

			cur[i] = best
			curStart[i] = start
		}

		if cur[m] <= maxDist && curStart[m] < j {
			out = append(out, nearMatch{start: curStart[m], end: j, distance: cur[m]})
		}

		prev, cur = cur, prev
		prevStart, curStart = curStart, prevStart
	}
	return out
}
