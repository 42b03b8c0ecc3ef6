package playback

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"call-review/pkg/models"
	"call-review/pkg/transcript"
)

var (
	// ErrMediaLoadFailed marks a source that could not be opened. The
	// controller stays in the error state until Load is retried.
	ErrMediaLoadFailed = errors.New("media load failed")

	// ErrNotReady is returned by playback commands while no source is
	// loaded, a load is in progress, or the last load failed.
	ErrNotReady = errors.New("playback not ready")

	ErrUnknownSegment = errors.New("unknown segment")
)

// Controller owns the single source of truth for playback position, state,
// speed, volume and segment looping. Position updates arrive via Advance from
// the media clock; the loop correction is applied there atomically, so no
// caller ever observes a position outside the loop bounds.
type Controller struct {
	mu    sync.Mutex
	src   MediaSource
	index *transcript.Index
	state models.PlaybackState
}

func NewController(src MediaSource, index *transcript.Index) *Controller {
	return &Controller{
		src:   src,
		index: index,
		state: models.PlaybackState{
			Status:   models.StatusIdle,
			Duration: models.DurationUnknown,
			Rate:     1.0,
			Volume:   100,
		},
	}
}

// State returns a snapshot of the playback state.
func (c *Controller) State() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveSegment resolves the segment under the current position.
func (c *Controller) ActiveSegment() (models.Segment, bool) {
	c.mu.Lock()
	t := c.state.CurrentTime
	c.mu.Unlock()
	return c.index.ActiveSegmentAt(t)
}

// Load opens a source and moves the controller to paused at time zero. A
// failed load is terminal for that source: playback commands error with
// ErrNotReady until a later Load succeeds.
func (c *Controller) Load(source string) error {
	c.mu.Lock()
	c.state = models.PlaybackState{
		Status:   models.StatusLoading,
		Duration: models.DurationUnknown,
		Rate:     c.state.Rate,
		Volume:   c.state.Volume,
		Muted:    c.state.Muted,
	}
	c.mu.Unlock()

	dur, err := c.src.Load(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state.Status = models.StatusError
		log.Printf("playback: load %q failed: %v", source, err)
		return fmt.Errorf("%w: %v", ErrMediaLoadFailed, err)
	}
	c.state.Status = models.StatusPaused
	c.state.CurrentTime = 0
	c.state.Duration = dur
	return nil
}

func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status != models.StatusPaused {
		if c.state.Status == models.StatusPlaying {
			return nil
		}
		return ErrNotReady
	}
	if err := c.src.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	c.state.Status = models.StatusPlaying
	return nil
}

func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status != models.StatusPlaying {
		if c.state.Status == models.StatusPaused {
			return nil
		}
		return ErrNotReady
	}
	if err := c.src.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	c.state.Status = models.StatusPaused
	return nil
}

// TogglePlay flips between playing and paused.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	playing := c.state.Status == models.StatusPlaying
	c.mu.Unlock()
	if playing {
		return c.Pause()
	}
	return c.Play()
}

// Seek moves the position, clamping to [0, duration]. An out-of-range time is
// silently corrected, not an error. Playing/paused is unchanged.
func (c *Controller) Seek(t float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready() {
		return ErrNotReady
	}
	t = c.clamp(t)
	if err := c.src.Seek(t); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	c.state.CurrentTime = t
	return nil
}

// SetLoopSegment engages looping over the given segment; an empty id clears
// the loop. The correction itself happens in Advance on every tick.
func (c *Controller) SetLoopSegment(segmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if segmentID == "" {
		c.state.LoopSegmentID = ""
		return nil
	}
	if _, ok := c.index.SegmentByID(segmentID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSegment, segmentID)
	}
	c.state.LoopSegmentID = segmentID
	return nil
}

func (c *Controller) SetRate(rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready() {
		return ErrNotReady
	}
	if rate <= 0 {
		return fmt.Errorf("invalid playback rate %g", rate)
	}
	if err := c.src.SetRate(rate); err != nil {
		return fmt.Errorf("set rate: %w", err)
	}
	c.state.Rate = rate
	return nil
}

func (c *Controller) SetVolume(volume int, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready() {
		return ErrNotReady
	}
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	if err := c.src.SetVolume(volume, muted); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	c.state.Volume = volume
	c.state.Muted = muted
	return nil
}

// Advance records a position update from the media clock. If looping is
// engaged and the new time has crossed the loop segment's end, the corrective
// seek happens here, before the state becomes observable.
func (c *Controller) Advance(t float64) models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready() {
		return c.state
	}
	if c.state.LoopSegmentID != "" {
		if seg, ok := c.index.SegmentByID(c.state.LoopSegmentID); ok && t > seg.EndTime {
			t = seg.StartTime
			if err := c.src.Seek(t); err != nil {
				log.Printf("playback: loop seek failed: %v", err)
			}
		}
	}
	c.state.CurrentTime = c.clamp(t)
	return c.state
}

// Detach releases the underlying source during teardown.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.state.Status = models.StatusIdle
	c.state.LoopSegmentID = ""
	c.mu.Unlock()
	if err := c.src.Close(); err != nil {
		log.Printf("playback: source close: %v", err)
	}
}

func (c *Controller) ready() bool {
	return c.state.Status == models.StatusPaused || c.state.Status == models.StatusPlaying
}

func (c *Controller) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if c.state.HasDuration() && t > c.state.Duration {
		return c.state.Duration
	}
	return t
}
