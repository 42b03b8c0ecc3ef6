package playback

import (
	"fmt"
	"sync"
	"time"
)

// MediaSource is a seekable, time-reporting audio/video resource. Load
// returns the media duration in seconds, or models.DurationUnknown when the
// source cannot report one up front.
type MediaSource interface {
	Load(source string) (float64, error)
	Play() error
	Pause() error
	Seek(pos float64) error
	SetRate(rate float64) error
	SetVolume(volume int, muted bool) error
	Close() error
}

// TickFeed delivers the elapsed-time ticks that drive a simulated media
// clock. It is injected so tests can step the clock deterministically.
type TickFeed interface {
	Ticks() <-chan time.Duration
	Stop()
}

// WallTickFeed emits real-time ticks at a fixed interval.
type WallTickFeed struct {
	interval time.Duration
	out      chan time.Duration
	done     chan struct{}
	once     sync.Once
}

func NewWallTickFeed(interval time.Duration) *WallTickFeed {
	f := &WallTickFeed{
		interval: interval,
		out:      make(chan time.Duration),
		done:     make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *WallTickFeed) run() {
	defer close(f.out)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			select {
			case f.out <- dt:
			case <-f.done:
				return
			}
		case <-f.done:
			return
		}
	}
}

func (f *WallTickFeed) Ticks() <-chan time.Duration { return f.out }

func (f *WallTickFeed) Stop() {
	f.once.Do(func() { close(f.done) })
}

// ManualTickFeed is a test feed stepped explicitly via Push.
type ManualTickFeed struct {
	out  chan time.Duration
	once sync.Once
}

func NewManualTickFeed() *ManualTickFeed {
	return &ManualTickFeed{out: make(chan time.Duration)}
}

func (f *ManualTickFeed) Ticks() <-chan time.Duration { return f.out }

// Push delivers one tick and returns once it has been consumed.
func (f *ManualTickFeed) Push(dt time.Duration) {
	f.out <- dt
}

func (f *ManualTickFeed) Stop() {
	f.once.Do(func() { close(f.out) })
}

// SimulatedSource is a MediaSource backed by a tick feed instead of a real
// player. The API server uses it when no player is attached; tests drive it
// with a ManualTickFeed.
type SimulatedSource struct {
	mu        sync.Mutex
	feed      TickFeed
	resolve   func(source string) (float64, error)
	onAdvance func(pos float64)

	pos      float64
	duration float64
	rate     float64
	playing  bool
	loaded   bool
	closed   bool
}

// NewSimulatedSource builds a source whose duration is resolved by the given
// function (e.g. from the transcript extent). OnAdvance must be set before
// the first tick is pushed.
func NewSimulatedSource(feed TickFeed, resolve func(source string) (float64, error)) *SimulatedSource {
	s := &SimulatedSource{
		feed:     feed,
		resolve:  resolve,
		rate:     1.0,
		duration: -1,
	}
	go s.run()
	return s
}

// OnAdvance registers the position-update callback, invoked outside the
// source lock on every tick while playing.
func (s *SimulatedSource) OnAdvance(fn func(pos float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAdvance = fn
}

func (s *SimulatedSource) run() {
	for dt := range s.feed.Ticks() {
		s.mu.Lock()
		if !s.playing || !s.loaded {
			s.mu.Unlock()
			continue
		}
		s.pos += dt.Seconds() * s.rate
		if s.duration >= 0 && s.pos >= s.duration {
			s.pos = s.duration
			s.playing = false
		}
		pos := s.pos
		fn := s.onAdvance
		s.mu.Unlock()

		if fn != nil {
			fn(pos)
		}
	}
}

func (s *SimulatedSource) Load(source string) (float64, error) {
	dur, err := s.resolve(source)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
	s.duration = dur
	s.playing = false
	s.loaded = true
	return dur, nil
}

func (s *SimulatedSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return fmt.Errorf("simulated source: not loaded")
	}
	s.playing = true
	return nil
}

func (s *SimulatedSource) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

func (s *SimulatedSource) Seek(pos float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return fmt.Errorf("simulated source: not loaded")
	}
	s.pos = pos
	return nil
}

func (s *SimulatedSource) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
	return nil
}

func (s *SimulatedSource) SetVolume(volume int, muted bool) error {
	return nil // no audible output to adjust
}

func (s *SimulatedSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.playing = false
	s.mu.Unlock()
	s.feed.Stop()
	return nil
}
