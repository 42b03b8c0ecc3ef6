package transcript

import (
	"fmt"
	"sort"

	"call-review/pkg/models"
)

// Index answers "which segment is active at time t" over an ordered,
// non-overlapping segment list. It is immutable; a changed transcript gets a
// new Index.
type Index struct {
	segments []models.Segment
	byID     map[string]int
}

// NewIndex validates and indexes a transcript. Segments must be ordered by
// start time, non-overlapping, with start < end and non-negative times. Gaps
// between segments are allowed.
func NewIndex(segments []models.Segment) (*Index, error) {
	ix := &Index{
		segments: append([]models.Segment(nil), segments...),
		byID:     make(map[string]int, len(segments)),
	}

	for i, seg := range ix.segments {
		if seg.ID == "" {
			return nil, fmt.Errorf("segment %d: missing id", i)
		}
		if seg.Text == "" {
			return nil, fmt.Errorf("segment %s: empty text", seg.ID)
		}
		if seg.StartTime < 0 || seg.StartTime >= seg.EndTime {
			return nil, fmt.Errorf("segment %s: invalid time range [%g, %g]", seg.ID, seg.StartTime, seg.EndTime)
		}
		if i > 0 && seg.StartTime < ix.segments[i-1].EndTime {
			return nil, fmt.Errorf("segment %s: overlaps previous segment %s", seg.ID, ix.segments[i-1].ID)
		}
		if _, dup := ix.byID[seg.ID]; dup {
			return nil, fmt.Errorf("segment %s: duplicate id", seg.ID)
		}
		ix.byID[seg.ID] = i
	}

	return ix, nil
}

func (ix *Index) Len() int {
	return len(ix.segments)
}

// Segments returns a copy of the ordered segment list.
func (ix *Index) Segments() []models.Segment {
	return append([]models.Segment(nil), ix.segments...)
}

func (ix *Index) SegmentByID(id string) (models.Segment, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return models.Segment{}, false
	}
	return ix.segments[i], true
}

// ActiveSegmentAt returns the segment whose range contains t. A time inside a
// gap, or outside the transcript range, has no active segment.
func (ix *Index) ActiveSegmentAt(t float64) (models.Segment, bool) {
	// First segment starting after t; the candidate is the one before it.
	i := sort.Search(len(ix.segments), func(i int) bool {
		return ix.segments[i].StartTime > t
	})
	if i == 0 {
		return models.Segment{}, false
	}
	seg := ix.segments[i-1]
	if t > seg.EndTime {
		return models.Segment{}, false
	}
	return seg, true
}

// NextBoundaryAfter returns the start time of the first segment beginning
// strictly after t, supporting "jump to next utterance".
func (ix *Index) NextBoundaryAfter(t float64) (float64, bool) {
	i := sort.Search(len(ix.segments), func(i int) bool {
		return ix.segments[i].StartTime > t
	})
	if i == len(ix.segments) {
		return 0, false
	}
	return ix.segments[i].StartTime, true
}
