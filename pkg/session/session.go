package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"call-review/pkg/models"
	"call-review/pkg/playback"
	"call-review/pkg/scoring"
	"call-review/pkg/transcript"
)

// Inputs is everything a review session is built from: one call's media
// reference and transcript, the checklist it is scored against, and any
// previously confirmed results to seed the grid.
type Inputs struct {
	AnalysisID string
	MediaRef   string
	Segments   []models.Segment
	Categories []models.Category
	Existing   []models.ScoreResult
}

// ResultSink receives server-confirmed score results for persistence.
type ResultSink interface {
	SaveResult(analysisID string, res models.ScoreResult) error
}

// SourceFactory builds a media source for one session's lifetime. The
// returned source must deliver position updates to the given callback.
type SourceFactory func(inputs Inputs, onAdvance func(pos float64)) playback.MediaSource

// Snapshot is the read-only state the surrounding UI consumes.
type Snapshot struct {
	SessionID     string                   `json:"session_id"`
	AnalysisID    string                   `json:"analysis_id"`
	Playback      models.PlaybackState     `json:"playback"`
	ActiveSegment *models.Segment          `json:"active_segment,omitempty"`
	Segments      []models.Segment         `json:"segments"`
	Categories    []models.Category        `json:"categories"`
	Scores        []models.ScoreEntry      `json:"scores"`
	Statistics    models.SessionStatistics `json:"statistics"`
}

// Session composes the segment index, playback controller, scoring grid and
// update coordinator into the single object the review workspace talks to.
type Session struct {
	ID string

	mu          sync.Mutex
	analysisID  string
	mediaRef    string
	categories  []models.Category
	index       *transcript.Index
	controller  *playback.Controller
	grid        *scoring.Grid
	coordinator *scoring.Coordinator

	confirmer scoring.Confirmer
	results   ResultSink
	newSource SourceFactory
	bus       *Bus
	closed    bool
}

// New builds a session and loads its media. A media load failure is reported
// but does not fail construction: the session exists with playback in the
// error state until Reload is retried, matching the terminal-until-retry
// load semantics.
func New(id string, inputs Inputs, confirmer scoring.Confirmer, results ResultSink, newSource SourceFactory) (*Session, error) {
	s := &Session{
		ID:        id,
		confirmer: confirmer,
		results:   results,
		newSource: newSource,
		bus:       NewBus(),
	}
	if err := s.init(inputs); err != nil {
		return nil, err
	}
	if err := s.controller.Load(inputs.MediaRef); err != nil {
		log.Printf("session %s: media load: %v", id, err)
	}
	return s, nil
}

// init builds the component set from fresh inputs. Caller holds no locks.
func (s *Session) init(inputs Inputs) error {
	index, err := transcript.NewIndex(inputs.Segments)
	if err != nil {
		return fmt.Errorf("transcript: %w", err)
	}

	src := s.newSource(inputs, s.onAdvance)
	grid := scoring.NewGrid(inputs.Categories, inputs.Existing)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysisID = inputs.AnalysisID
	s.mediaRef = inputs.MediaRef
	s.categories = append([]models.Category(nil), inputs.Categories...)
	s.index = index
	s.controller = playback.NewController(src, index)
	s.grid = grid
	s.coordinator = scoring.NewCoordinator(grid, s.confirmer, inputs.AnalysisID, s.onOutcome)
	return nil
}

// Events exposes the change-notification bus.
func (s *Session) Events() *Bus {
	return s.bus
}

// Snapshot assembles the full read-only state. Statistics are derived fresh
// on every call, never cached across grid mutations.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	controller, grid, index := s.controller, s.grid, s.index
	analysisID := s.analysisID
	categories := append([]models.Category(nil), s.categories...)
	s.mu.Unlock()

	state := controller.State()
	snap := Snapshot{
		SessionID:  s.ID,
		AnalysisID: analysisID,
		Playback:   state,
		Segments:   index.Segments(),
		Categories: categories,
		Scores:     grid.Entries(),
		Statistics: grid.Statistics(),
	}
	if seg, ok := index.ActiveSegmentAt(state.CurrentTime); ok {
		snap.ActiveSegment = &seg
	}
	return snap
}

func (s *Session) PlaybackState() models.PlaybackState {
	return s.current().State()
}

func (s *Session) Statistics() models.SessionStatistics {
	s.mu.Lock()
	grid := s.grid
	s.mu.Unlock()
	return grid.Statistics()
}

// ActiveSegment returns the segment under the current playback position.
func (s *Session) ActiveSegment() (models.Segment, bool) {
	return s.current().ActiveSegment()
}

func (s *Session) TogglePlay() error {
	err := s.current().TogglePlay()
	if err == nil {
		s.publishPlayback()
	}
	return err
}

func (s *Session) Seek(t float64) error {
	err := s.current().Seek(t)
	if err == nil {
		s.publishPlayback()
	}
	return err
}

// SeekToSegment jumps to the start of the given segment.
func (s *Session) SeekToSegment(segmentID string) error {
	s.mu.Lock()
	index := s.index
	s.mu.Unlock()
	seg, ok := index.SegmentByID(segmentID)
	if !ok {
		return fmt.Errorf("%w: %s", playback.ErrUnknownSegment, segmentID)
	}
	return s.Seek(seg.StartTime)
}

// ToggleSegmentLoop engages looping over the segment, or releases it when the
// same segment is toggled again.
func (s *Session) ToggleSegmentLoop(segmentID string) error {
	c := s.current()
	if c.State().LoopSegmentID == segmentID {
		segmentID = ""
	}
	err := c.SetLoopSegment(segmentID)
	if err == nil {
		s.publishPlayback()
	}
	return err
}

func (s *Session) SetRate(rate float64) error {
	err := s.current().SetRate(rate)
	if err == nil {
		s.publishPlayback()
	}
	return err
}

func (s *Session) SetVolume(volume int, muted bool) error {
	err := s.current().SetVolume(volume, muted)
	if err == nil {
		s.publishPlayback()
	}
	return err
}

// SetScore applies the edit optimistically and starts the confirmation
// round-trip. The caller observes the change synchronously; a later remote
// failure rolls back and surfaces a notice event.
func (s *Session) SetScore(ctx context.Context, categoryID, criterionID string, score models.Score, comment *string) error {
	s.mu.Lock()
	coordinator, grid := s.coordinator, s.grid
	s.mu.Unlock()

	if err := coordinator.SetScore(ctx, categoryID, criterionID, score, comment); err != nil {
		return err
	}
	stats := grid.Statistics()
	s.bus.Publish(Event{
		Type:        EventScore,
		SessionID:   s.ID,
		CategoryID:  categoryID,
		CriterionID: criterionID,
		Statistics:  &stats,
	})
	return nil
}

// SetComment updates only the comment, keeping the current score. It rides
// the same optimistic confirmation protocol as a score edit.
func (s *Session) SetComment(ctx context.Context, categoryID, criterionID, comment string) error {
	s.mu.Lock()
	grid := s.grid
	s.mu.Unlock()

	entry, err := grid.Entry(categoryID, criterionID)
	if err != nil {
		return err
	}
	if !entry.Score.Scored() {
		return fmt.Errorf("criterion %s/%s has no score to comment on", categoryID, criterionID)
	}
	return s.SetScore(ctx, categoryID, criterionID, entry.Score, &comment)
}

// Reset discards all state and re-initializes from fresh inputs, used when
// the reviewer switches to a different call. The media clock is stopped, all
// in-flight confirmations are marked superseded, and the loop binding is
// released before the new components take over.
func (s *Session) Reset(inputs Inputs) error {
	s.mu.Lock()
	old := s.controller
	oldCoord := s.coordinator
	s.mu.Unlock()

	oldCoord.Close()
	old.Detach()

	if err := s.init(inputs); err != nil {
		return err
	}
	if err := s.controller.Load(inputs.MediaRef); err != nil {
		log.Printf("session %s: media load: %v", s.ID, err)
	}
	s.bus.Publish(Event{Type: EventReset, SessionID: s.ID})
	return nil
}

// Reload retries the media load after a failure, optionally with a new ref.
func (s *Session) Reload(mediaRef string) error {
	s.mu.Lock()
	if mediaRef == "" {
		mediaRef = s.mediaRef
	} else {
		s.mediaRef = mediaRef
	}
	controller := s.controller
	s.mu.Unlock()

	err := controller.Load(mediaRef)
	if err == nil {
		s.publishPlayback()
	}
	return err
}

// Close tears the session down: media clock stopped and detached, in-flight
// requests superseded, subscribers released.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	controller, coordinator := s.controller, s.coordinator
	s.mu.Unlock()

	coordinator.Close()
	controller.Detach()
	s.bus.Publish(Event{Type: EventClosed, SessionID: s.ID})
	s.bus.Close()
}

// onAdvance is the media clock callback: run the tick (with loop correction)
// through the controller, pause at the end of media, notify.
func (s *Session) onAdvance(pos float64) {
	c := s.current()
	state := c.Advance(pos)
	if state.HasDuration() && state.CurrentTime >= state.Duration && state.IsPlaying() {
		if err := c.Pause(); err == nil {
			state = c.State()
		}
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.bus.Publish(Event{Type: EventPlayback, SessionID: s.ID, Playback: &state})
}

// onOutcome handles coordinator completions: persist confirmed results,
// surface rollbacks as notices. Must not call back into the coordinator.
func (s *Session) onOutcome(o scoring.Outcome) {
	s.mu.Lock()
	grid := s.grid
	analysisID := s.analysisID
	s.mu.Unlock()

	stats := grid.Statistics()
	if o.Err != nil {
		notice := models.NewNotice(o.CategoryID, o.CriterionID,
			fmt.Sprintf("score update failed, change reverted: %v", o.Err))
		s.bus.Publish(Event{
			Type:        EventScoreFailed,
			SessionID:   s.ID,
			CategoryID:  o.CategoryID,
			CriterionID: o.CriterionID,
			Statistics:  &stats,
			Notice:      &notice,
		})
		return
	}

	if s.results != nil {
		res := models.ScoreResult{
			CategoryID:  o.CategoryID,
			CriterionID: o.CriterionID,
			Score:       o.Score,
		}
		if o.Comment != nil {
			res.Comment = *o.Comment
		}
		if err := s.results.SaveResult(analysisID, res); err != nil {
			log.Printf("session %s: persist result %s/%s: %v", s.ID, o.CategoryID, o.CriterionID, err)
		}
	}
	s.bus.Publish(Event{
		Type:        EventScore,
		SessionID:   s.ID,
		CategoryID:  o.CategoryID,
		CriterionID: o.CriterionID,
		Statistics:  &stats,
	})
}

func (s *Session) current() *playback.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller
}

func (s *Session) publishPlayback() {
	state := s.current().State()
	s.bus.Publish(Event{Type: EventPlayback, SessionID: s.ID, Playback: &state})
}
