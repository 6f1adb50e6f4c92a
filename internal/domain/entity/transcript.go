package entity

import (
	"math"
	"sort"
	"strings"
)

// SegmentSource tells consumers whether segment timing was measured by the
// provider or synthesized from text. Approximate timings are a heuristic.
type SegmentSource string

const (
	SegmentSourceProvider    SegmentSource = "provider"
	SegmentSourceApproximate SegmentSource = "approximate"
)

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the canonical, provider-independent transcript stored on a job.
type Transcript struct {
	Text          string        `json:"text"`
	Language      string        `json:"language"`
	Duration      float64       `json:"duration"`
	Segments      []Segment     `json:"segments"`
	SegmentSource SegmentSource `json:"segmentSource,omitempty"`
	Chunks        int           `json:"chunks,omitempty"`
	Confidence    float64       `json:"confidence,omitempty"`
}

// TranscriptionResult is what a provider adapter hands back to the orchestrator.
type TranscriptionResult struct {
	Transcript    *Transcript
	Provider      string
	ProviderJobID string
}

func (t *Transcript) IsBlank() bool {
	return t == nil || strings.TrimSpace(t.Text) == ""
}

// SegmentsOrdered reports whether segments are sorted by start, each has
// end >= start, and no segment starts before the previous one ended.
func (t *Transcript) SegmentsOrdered() bool {
	for i, s := range t.Segments {
		if s.End < s.Start {
			return false
		}
		if i > 0 && s.Start < t.Segments[i-1].End {
			return false
		}
	}
	return true
}

// EnforceSegmentOrder sorts segments by start and clamps them so that the
// sequence is non-decreasing and non-overlapping. Empty-text segments are dropped.
func EnforceSegmentOrder(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	for i := range out {
		if i > 0 && out[i].Start < out[i-1].End {
			out[i].Start = out[i-1].End
		}
		if out[i].End < out[i].Start {
			out[i].End = out[i].Start
		}
	}
	return out
}

// Round1 rounds seconds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
