package alert

import (
	"testing"
	"time"
)

var detectedAt = time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

func defaultTerms() []Term {
	return []Term{
		{Phrase: "Data Science", Tier: TierLive, MaxDistance: 2},
		{Phrase: "Data Engineering", Tier: TierLive, MaxDistance: 2},
		{Phrase: "Data Analytics", Tier: TierDev, MaxDistance: 1},
	}
}

func TestMatcherScan(t *testing.T) {
	m, err := NewMatcher(defaultTerms())
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}

	tests := []struct {
		name      string
		text      string
		wantTerms []string
		wantMatch []string
		wantDist  []int
	}{
		{
			name:      "misspelled live term",
			text:      "We are hiring in Data Sciense",
			wantTerms: []string{"Data Science"},
			wantMatch: []string{"data sciense"},
			wantDist:  []int{1},
		},
		{
			name:      "live term in a sentence, no dev term",
			text:      "we discussed Data Science roadmaps",
			wantTerms: []string{"Data Science"},
			wantMatch: []string{"data science"},
			wantDist:  []int{0},
		},
		{
			name:      "exact dev term",
			text:      "Our DATA ANALYTICS team",
			wantTerms: []string{"Data Analytics"},
			wantMatch: []string{"data analytics"},
			wantDist:  []int{0},
		},
		{
			name:      "dev tolerance is tighter",
			text:      "data analysis",
			wantTerms: nil,
		},
		{
			name:      "missing space",
			text:      "a datascience role",
			wantTerms: []string{"Data Science"},
			wantMatch: []string{"datascience"},
			wantDist:  []int{1},
		},
		{
			name:      "no terms",
			text:      "the weather is fine today",
			wantTerms: nil,
		},
		{
			name:      "empty text",
			text:      "",
			wantTerms: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := m.Scan(tt.text, detectedAt)
			if len(events) != len(tt.wantTerms) {
				t.Fatalf("Expected %d events, got %d: %+v", len(tt.wantTerms), len(events), events)
			}
			for i, ev := range events {
				if ev.Term.Phrase != tt.wantTerms[i] {
					t.Errorf("events[%d].Term = %q, want %q", i, ev.Term.Phrase, tt.wantTerms[i])
				}
				if ev.MatchedText != tt.wantMatch[i] {
					t.Errorf("events[%d].MatchedText = %q, want %q", i, ev.MatchedText, tt.wantMatch[i])
				}
				if ev.Distance != tt.wantDist[i] {
					t.Errorf("events[%d].Distance = %d, want %d", i, ev.Distance, tt.wantDist[i])
				}
				if !ev.DetectedAt.Equal(detectedAt) {
					t.Errorf("events[%d].DetectedAt = %v", i, ev.DetectedAt)
				}
			}
		})
	}
}

func TestMatcherMultipleMatches(t *testing.T) {
	m, err := NewMatcher(defaultTerms()[:1])
	if err != nil {
		t.Fatal(err)
	}

	text := "We are hiring in Data Sciense and more data science!"
	events := m.Scan(text, detectedAt)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}

	want := []struct {
		start, end, dist int
	}{
		{17, 29, 1},
		{39, 51, 0},
	}
	for i, w := range want {
		if events[i].Start != w.start || events[i].End != w.end || events[i].Distance != w.dist {
			t.Errorf("events[%d] = [%d,%d) d=%d, want [%d,%d) d=%d",
				i, events[i].Start, events[i].End, events[i].Distance, w.start, w.end, w.dist)
		}
	}
	if events[0].End > events[1].Start {
		t.Error("Expected non-overlapping matches")
	}
}

func TestMatcherIdempotent(t *testing.T) {
	m, err := NewMatcher(defaultTerms())
	if err != nil {
		t.Fatal(err)
	}

	text := "data engineering and data sciense, also data analytic"
	first := m.Scan(text, detectedAt)
	second := m.Scan(text, detectedAt)
	if len(first) != len(second) {
		t.Fatalf("Scan is not idempotent: %d vs %d events", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("events[%d] differ: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestMatcherMonotonicInDistance(t *testing.T) {
	texts := []string{
		"We are hiring in Data Sciense",
		"dta scence",
		"data",
		"science of data",
		"daat sceince positions open",
	}

	for _, text := range texts {
		found := false
		for d := 0; d <= 4; d++ {
			m, err := NewMatcher([]Term{{Phrase: "data science", Tier: TierLive, MaxDistance: d}})
			if err != nil {
				t.Fatal(err)
			}
			hit := len(m.Scan(text, detectedAt)) > 0
			if found && !hit {
				t.Errorf("%q: match at smaller distance lost at distance %d", text, d)
			}
			found = found || hit
		}
	}
}

func TestNewMatcherValidation(t *testing.T) {
	tests := []struct {
		name string
		term Term
	}{
		{"empty phrase", Term{Phrase: "  ", Tier: TierLive}},
		{"unknown tier", Term{Phrase: "data", Tier: "urgent"}},
		{"negative distance", Term{Phrase: "data", Tier: TierDev, MaxDistance: -1}},
		{"distance covers phrase", Term{Phrase: "ai", Tier: TierDev, MaxDistance: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMatcher([]Term{tt.term}); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestHits(t *testing.T) {
	m, err := NewMatcher(defaultTerms())
	if err != nil {
		t.Fatal(err)
	}

	events := m.Scan("data science, data science and data analytics", detectedAt)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	tiers, terms := Hits(events)
	if len(tiers) != 2 || tiers[0] != TierLive || tiers[1] != TierDev {
		t.Errorf("Unexpected tiers %v", tiers)
	}
	if len(terms) != 2 {
		t.Errorf("Expected 2 distinct terms, got %v", terms)
	}
}
