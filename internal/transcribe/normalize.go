package transcribe

import (
	"math"
	"regexp"
	"strings"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

const (
	wordsPerSegment = 20
	bytesPerMB      = 1024 * 1024
	secondsPerMB    = 30
	minEstimate     = 5
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

type timedWord struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// groupWords packs word timings (milliseconds) into segments of up to
// wordsPerSegment words, in seconds rounded to one decimal.
func groupWords(words []timedWord) []entity.Segment {
	segments := make([]entity.Segment, 0, len(words)/wordsPerSegment+1)
	for i := 0; i < len(words); i += wordsPerSegment {
		end := i + wordsPerSegment
		if end > len(words) {
			end = len(words)
		}
		group := words[i:end]

		texts := make([]string, len(group))
		for j, w := range group {
			texts[j] = w.Text
		}
		segments = append(segments, entity.Segment{
			Start: entity.Round1(float64(group[0].Start) / 1000),
			End:   entity.Round1(float64(group[len(group)-1].End) / 1000),
			Text:  strings.TrimSpace(strings.Join(texts, " ")),
		})
	}
	return entity.EnforceSegmentOrder(segments)
}

// EstimateDuration guesses a media duration from its size when nothing better is known.
func EstimateDuration(sizeBytes int64) float64 {
	est := math.Floor(float64(sizeBytes)/bytesPerMB) * secondsPerMB
	return math.Max(minEstimate, est)
}

// ApproximateSegments splits text into sentences and spreads duration over
// them in proportion to sentence length. The result is contiguous from 0 to duration.
func ApproximateSegments(text string, duration float64) []entity.Segment {
	var sentences []string
	total := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sentences = append(sentences, s)
		total += len([]rune(s))
	}
	if len(sentences) == 0 || duration <= 0 {
		return nil
	}

	segments := make([]entity.Segment, 0, len(sentences))
	consumed := 0
	prevEnd := 0.0
	for i, s := range sentences {
		consumed += len([]rune(s))
		end := entity.Round1(duration * float64(consumed) / float64(total))
		if i == len(sentences)-1 {
			end = entity.Round1(duration)
		}
		if end < prevEnd {
			end = prevEnd
		}
		segments = append(segments, entity.Segment{Start: prevEnd, End: end, Text: s})
		prevEnd = end
	}
	return segments
}

// finalize fills in language, ordering and approximate timing so that every
// transcript leaving this package has the same shape.
func finalize(t *entity.Transcript, language string, req port.TranscriptionRequest) {
	if t.Language == "" {
		t.Language = language
	}
	t.Text = strings.TrimSpace(t.Text)
	if len(t.Segments) > 0 {
		t.Segments = entity.EnforceSegmentOrder(t.Segments)
		if t.SegmentSource == "" {
			t.SegmentSource = entity.SegmentSourceProvider
		}
		return
	}
	if t.Text == "" {
		t.Segments = []entity.Segment{}
		return
	}

	duration := t.Duration
	if duration <= 0 {
		duration = req.DurationHint
	}
	if duration <= 0 {
		duration = EstimateDuration(req.SizeHint)
	}
	t.Duration = duration
	t.Segments = ApproximateSegments(t.Text, duration)
	t.SegmentSource = entity.SegmentSourceApproximate
}
