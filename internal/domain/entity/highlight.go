package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Highlight is one LLM-derived annotation. Fields other than title and
// importance are kept verbatim in Extra so nothing the model returns is lost.
type Highlight struct {
	Title      string
	Importance float64
	Extra      map[string]json.RawMessage
}

func (h Highlight) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Extra)+2)
	for k, v := range h.Extra {
		out[k] = v
	}
	out["title"] = h.Title
	out["importance"] = h.Importance
	return json.Marshal(out)
}

func (h *Highlight) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["title"]; ok {
		if err := json.Unmarshal(v, &h.Title); err != nil {
			return fmt.Errorf("title: %w", err)
		}
		delete(raw, "title")
	}
	if v, ok := raw["importance"]; ok {
		if err := json.Unmarshal(v, &h.Importance); err != nil {
			return fmt.Errorf("importance: %w", err)
		}
		delete(raw, "importance")
	}
	h.Extra = raw
	return nil
}

// HighlightSet is the payload stored in transcript_highlight.
type HighlightSet struct {
	Highlights       []Highlight
	GeneratedAt      time.Time
	TranscriptLength int
	SegmentsAnalyzed int
	Extra            map[string]json.RawMessage
}

// Validate checks the shape the generator promises: a highlights array whose
// entries each have a title and an importance between 1 and 10.
func (s *HighlightSet) Validate() error {
	if s.Highlights == nil {
		return fmt.Errorf("%w: missing highlights array", ErrInvalidHighlightSchema)
	}
	for i, h := range s.Highlights {
		if h.Title == "" {
			return fmt.Errorf("%w: highlight %d has no title", ErrInvalidHighlightSchema, i)
		}
		if h.Importance < 1 || h.Importance > 10 {
			return fmt.Errorf("%w: highlight %d importance %v out of range", ErrInvalidHighlightSchema, i, h.Importance)
		}
	}
	return nil
}

func (s HighlightSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+4)
	for k, v := range s.Extra {
		out[k] = v
	}
	highlights := s.Highlights
	if highlights == nil {
		highlights = []Highlight{}
	}
	out["highlights"] = highlights
	if !s.GeneratedAt.IsZero() {
		out["generatedAt"] = s.GeneratedAt.UTC().Format(time.RFC3339Nano)
	}
	out["transcriptLength"] = s.TranscriptLength
	out["segmentsAnalyzed"] = s.SegmentsAnalyzed
	return json.Marshal(out)
}

func (s *HighlightSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["highlights"]; ok {
		if string(v) != "null" {
			var hs []Highlight
			if err := json.Unmarshal(v, &hs); err != nil {
				return fmt.Errorf("highlights: %w", err)
			}
			if hs == nil {
				hs = []Highlight{}
			}
			s.Highlights = hs
		}
		delete(raw, "highlights")
	}
	if v, ok := raw["generatedAt"]; ok {
		var ts string
		if err := json.Unmarshal(v, &ts); err == nil {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				s.GeneratedAt = parsed
			}
		}
		delete(raw, "generatedAt")
	}
	if v, ok := raw["transcriptLength"]; ok {
		_ = json.Unmarshal(v, &s.TranscriptLength)
		delete(raw, "transcriptLength")
	}
	if v, ok := raw["segmentsAnalyzed"]; ok {
		_ = json.Unmarshal(v, &s.SegmentsAnalyzed)
		delete(raw, "segmentsAnalyzed")
	}
	s.Extra = raw
	return nil
}
