package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnforceSegmentOrder(t *testing.T) {
	in := []Segment{
		{Start: 4, End: 6, Text: "third"},
		{Start: 0, End: 2.5, Text: "first"},
		{Start: 2, End: 4.2, Text: "second"},
		{Start: 7, End: 7, Text: "   "},
	}

	out := EnforceSegmentOrder(in)

	assert.Len(t, out, 3)
	assert.Equal(t, "first", out[0].Text)
	assert.Equal(t, 2.5, out[1].Start, "overlap clamped to previous end")
	assert.Equal(t, 4.2, out[2].Start)
	assert.Equal(t, 6.0, out[2].End)

	tr := Transcript{Segments: out}
	assert.True(t, tr.SegmentsOrdered())
}

func TestSegmentsOrderedDetectsOverlap(t *testing.T) {
	tr := Transcript{Segments: []Segment{{Start: 0, End: 2}, {Start: 1, End: 3}}}
	assert.False(t, tr.SegmentsOrdered())

	tr = Transcript{Segments: []Segment{{Start: 2, End: 1}}}
	assert.False(t, tr.SegmentsOrdered())
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 1.2, Round1(1.234))
	assert.Equal(t, 1.3, Round1(1.25))
	assert.Equal(t, 0.0, Round1(0.04))
}

func TestIsBlank(t *testing.T) {
	var nilTranscript *Transcript
	assert.True(t, nilTranscript.IsBlank())
	assert.True(t, (&Transcript{Text: " \n\t"}).IsBlank())
	assert.False(t, (&Transcript{Text: "hi"}).IsBlank())
}
