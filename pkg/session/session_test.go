package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"call-review/pkg/models"
	"call-review/pkg/playback"
	"call-review/pkg/scoring"
	"call-review/pkg/storage"
)

// scriptedConfirmer resolves each confirmation immediately with a scripted
// verdict per criterion: nil means echo success, an error means rejection.
type scriptedConfirmer struct {
	mu       sync.Mutex
	failures map[string]error
}

func (c *scriptedConfirmer) fail(criterionID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures == nil {
		c.failures = make(map[string]error)
	}
	c.failures[criterionID] = err
}

func (c *scriptedConfirmer) ConfirmScore(ctx context.Context, analysisID, categoryID, criterionID string, score models.Score, comment *string) (models.Score, *string, error) {
	c.mu.Lock()
	err := c.failures[criterionID]
	c.mu.Unlock()
	if err != nil {
		return models.ScoreUnscored, nil, err
	}
	return score, comment, nil
}

func testInputs() Inputs {
	return Inputs{
		AnalysisID: "analysis-1",
		MediaRef:   "call.mp3",
		Segments: []models.Segment{
			{ID: "s1", Speaker: models.SpeakerOperator, Text: "hello", StartTime: 0, EndTime: 5},
			{ID: "s2", Speaker: models.SpeakerClient, Text: "hi", StartTime: 8, EndTime: 12},
		},
		Categories: []models.Category{
			{
				ID:   "beginning",
				Name: "Beginning",
				Criteria: []models.Criterion{
					{ID: "greeting", CategoryID: "beginning", Text: "greeting", Required: true},
					{ID: "verification", CategoryID: "beginning", Text: "verification", Required: true},
				},
			},
		},
	}
}

type testHarness struct {
	session   *Session
	confirmer *scriptedConfirmer
	results   storage.ResultStore
	feeds     []*playback.ManualTickFeed
}

func newTestSession(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		confirmer: &scriptedConfirmer{},
		results:   storage.NewMemoryStore(),
	}

	newSource := func(inputs Inputs, onAdvance func(pos float64)) playback.MediaSource {
		feed := playback.NewManualTickFeed()
		h.feeds = append(h.feeds, feed)
		src := playback.NewSimulatedSource(feed, func(string) (float64, error) {
			return inputs.Segments[len(inputs.Segments)-1].EndTime, nil
		})
		src.OnAdvance(onAdvance)
		return src
	}

	s, err := New("sess-1", testInputs(), h.confirmer, h.results, newSource)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	h.session = s
	return h
}

// settle waits for all in-flight confirmations to land.
func (h *testHarness) settle(t *testing.T, want models.SessionStatistics) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if h.session.Statistics() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("statistics = %+v, want %+v", h.session.Statistics(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScoreScenario(t *testing.T) {
	h := newTestSession(t)
	ctx := context.Background()

	// greeting passes and is confirmed remotely.
	if err := h.session.SetScore(ctx, "beginning", "greeting", models.ScorePass, nil); err != nil {
		t.Fatalf("SetScore greeting: %v", err)
	}
	h.settle(t, models.SessionStatistics{
		Total: 2, Scored: 1, Passed: 1, ProgressPercent: 50,
	})

	// verification fails remotely and is rolled back.
	h.confirmer.fail("verification", errors.New("rejected"))
	if err := h.session.SetScore(ctx, "beginning", "verification", models.ScoreFail, nil); err != nil {
		t.Fatalf("SetScore verification: %v", err)
	}
	h.settle(t, models.SessionStatistics{
		Total: 2, Scored: 1, Passed: 1, ProgressPercent: 50,
	})

	snap := h.session.Snapshot()
	for _, entry := range snap.Scores {
		if entry.CriterionID == "verification" && entry.Score != models.ScoreUnscored {
			t.Fatalf("verification = %s, want rolled back to unscored", entry.Score)
		}
	}
}

func TestScoreFailureEmitsNotice(t *testing.T) {
	h := newTestSession(t)
	_, events := h.session.Events().Subscribe()

	h.confirmer.fail("greeting", errors.New("backend down"))
	if err := h.session.SetScore(context.Background(), "beginning", "greeting", models.ScorePass, nil); err != nil {
		t.Fatalf("SetScore: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != EventScoreFailed {
				continue
			}
			if ev.Notice == nil || ev.Notice.CriterionID != "greeting" {
				t.Fatalf("score_failed event = %+v", ev)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for score_failed event")
		}
	}
}

func TestConfirmedResultIsPersisted(t *testing.T) {
	h := newTestSession(t)
	if err := h.session.SetScore(context.Background(), "beginning", "greeting", models.ScorePass, nil); err != nil {
		t.Fatalf("SetScore: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		results, err := h.results.GetResults("analysis-1")
		if err != nil {
			t.Fatalf("GetResults: %v", err)
		}
		if len(results) == 1 {
			if results[0].CriterionID != "greeting" || results[0].Score != models.ScorePass {
				t.Fatalf("persisted results = %+v", results)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("confirmed result never persisted: %+v", results)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSeekToSegment(t *testing.T) {
	h := newTestSession(t)
	if err := h.session.SeekToSegment("s2"); err != nil {
		t.Fatalf("SeekToSegment: %v", err)
	}
	state := h.session.PlaybackState()
	if state.CurrentTime != 8 {
		t.Fatalf("currentTime = %g, want 8", state.CurrentTime)
	}
	seg, ok := h.session.ActiveSegment()
	if !ok || seg.ID != "s2" {
		t.Fatalf("active segment = %+v, %v", seg, ok)
	}

	if err := h.session.SeekToSegment("missing"); !errors.Is(err, playback.ErrUnknownSegment) {
		t.Fatalf("error = %v, want ErrUnknownSegment", err)
	}
}

func TestToggleSegmentLoop(t *testing.T) {
	h := newTestSession(t)
	if err := h.session.ToggleSegmentLoop("s1"); err != nil {
		t.Fatalf("ToggleSegmentLoop: %v", err)
	}
	if h.session.PlaybackState().LoopSegmentID != "s1" {
		t.Fatal("loop not engaged")
	}
	// Toggling the same segment releases the loop.
	if err := h.session.ToggleSegmentLoop("s1"); err != nil {
		t.Fatalf("ToggleSegmentLoop: %v", err)
	}
	if h.session.PlaybackState().LoopSegmentID != "" {
		t.Fatal("loop not released")
	}
}

func TestPlaybackTicksFlowThroughSession(t *testing.T) {
	h := newTestSession(t)
	_, events := h.session.Events().Subscribe()

	if err := h.session.TogglePlay(); err != nil {
		t.Fatalf("TogglePlay: %v", err)
	}
	h.feeds[0].Push(9 * time.Second)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != EventPlayback || ev.Playback == nil || ev.Playback.CurrentTime != 9 {
				continue
			}
			seg, ok := h.session.ActiveSegment()
			if !ok || seg.ID != "s2" {
				t.Fatalf("active segment at 9s = %+v, %v", seg, ok)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for playback event")
		}
	}
}

func TestSetCommentRequiresScore(t *testing.T) {
	h := newTestSession(t)
	if err := h.session.SetComment(context.Background(), "beginning", "greeting", "note"); err == nil {
		t.Fatal("comment on unscored criterion must be rejected")
	}

	if err := h.session.SetScore(context.Background(), "beginning", "greeting", models.ScorePass, nil); err != nil {
		t.Fatalf("SetScore: %v", err)
	}
	h.settle(t, models.SessionStatistics{Total: 2, Scored: 1, Passed: 1, ProgressPercent: 50})

	if err := h.session.SetComment(context.Background(), "beginning", "greeting", "note"); err != nil {
		t.Fatalf("SetComment: %v", err)
	}
}

func TestSetScoreUnknownCriterion(t *testing.T) {
	h := newTestSession(t)
	err := h.session.SetScore(context.Background(), "beginning", "bogus", models.ScorePass, nil)
	if !errors.Is(err, scoring.ErrUnknownCriterion) {
		t.Fatalf("error = %v, want ErrUnknownCriterion", err)
	}
}

func TestResetDiscardsState(t *testing.T) {
	h := newTestSession(t)
	ctx := context.Background()

	if err := h.session.SetScore(ctx, "beginning", "greeting", models.ScorePass, nil); err != nil {
		t.Fatalf("SetScore: %v", err)
	}
	h.settle(t, models.SessionStatistics{Total: 2, Scored: 1, Passed: 1, ProgressPercent: 50})
	if err := h.session.ToggleSegmentLoop("s1"); err != nil {
		t.Fatalf("ToggleSegmentLoop: %v", err)
	}

	fresh := testInputs()
	fresh.AnalysisID = "analysis-2"
	fresh.Segments = []models.Segment{
		{ID: "n1", Speaker: models.SpeakerOperator, Text: "new call", StartTime: 0, EndTime: 4},
	}
	if err := h.session.Reset(fresh); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	snap := h.session.Snapshot()
	if snap.AnalysisID != "analysis-2" || len(snap.Segments) != 1 || snap.Segments[0].ID != "n1" {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
	if snap.Statistics.Scored != 0 {
		t.Fatalf("statistics after reset = %+v, want cleared grid", snap.Statistics)
	}
	if snap.Playback.LoopSegmentID != "" {
		t.Fatal("loop binding must be released on reset")
	}
	if snap.Playback.Status != models.StatusPaused || snap.Playback.CurrentTime != 0 {
		t.Fatalf("playback after reset = %+v", snap.Playback)
	}
}

func TestSnapshotShape(t *testing.T) {
	h := newTestSession(t)
	snap := h.session.Snapshot()
	if snap.SessionID != "sess-1" || snap.AnalysisID != "analysis-1" {
		t.Fatalf("snapshot ids = %s/%s", snap.SessionID, snap.AnalysisID)
	}
	if len(snap.Segments) != 2 || len(snap.Categories) != 1 || len(snap.Scores) != 2 {
		t.Fatalf("snapshot sizes: segments=%d categories=%d scores=%d",
			len(snap.Segments), len(snap.Categories), len(snap.Scores))
	}
	if snap.ActiveSegment == nil || snap.ActiveSegment.ID != "s1" {
		t.Fatalf("active segment at t=0 = %+v", snap.ActiveSegment)
	}
	if snap.Statistics.Total != 2 || snap.Statistics.ProgressPercent != 0 {
		t.Fatalf("statistics = %+v", snap.Statistics)
	}
}
