package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"call-review/pkg/models"
	"call-review/pkg/scoring"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// TranscriptSupplier fetches the ordered segment list for one call.
type TranscriptSupplier interface {
	Transcript(ctx context.Context, analysisID string) ([]models.Segment, error)
}

// ChecklistSupplier fetches the checklist a call is scored against.
type ChecklistSupplier interface {
	Checklist(ctx context.Context, checklistID string) ([]models.Category, error)
}

// ResultStore extends ResultSink with reads used to seed reopened sessions.
type ResultStore interface {
	ResultSink
	GetResults(analysisID string) ([]models.ScoreResult, error)
}

// Manager owns the live review sessions and builds new ones from the
// collaborator suppliers.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	transcripts TranscriptSupplier
	checklists  ChecklistSupplier
	confirmer   scoring.Confirmer
	results     ResultStore
	newSource   SourceFactory
}

func NewManager(transcripts TranscriptSupplier, checklists ChecklistSupplier, confirmer scoring.Confirmer, results ResultStore, newSource SourceFactory) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		transcripts: transcripts,
		checklists:  checklists,
		confirmer:   confirmer,
		results:     results,
		newSource:   newSource,
	}
}

// Open creates a session for one call: transcript and checklist are fetched
// once, and the grid is seeded from previously confirmed results.
func (m *Manager) Open(ctx context.Context, analysisID, checklistID, mediaRef string) (*Session, error) {
	inputs, err := m.buildInputs(ctx, analysisID, checklistID, mediaRef)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	s, err := New(id, inputs, m.confirmer, m.results, m.newSource)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	log.Printf("session %s: opened analysis=%s checklist=%s segments=%d", id, analysisID, checklistID, len(inputs.Segments))
	return s, nil
}

// Switch re-initializes an existing session for a different call, keeping
// its subscribers attached.
func (m *Manager) Switch(ctx context.Context, sessionID, analysisID, checklistID, mediaRef string) (*Session, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	inputs, err := m.buildInputs(ctx, analysisID, checklistID, mediaRef)
	if err != nil {
		return nil, err
	}
	if err := s.Reset(inputs); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	log.Printf("session %s: closed", id)
	return nil
}

// Shutdown tears down every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) buildInputs(ctx context.Context, analysisID, checklistID, mediaRef string) (Inputs, error) {
	segments, err := m.transcripts.Transcript(ctx, analysisID)
	if err != nil {
		return Inputs{}, fmt.Errorf("fetch transcript: %w", err)
	}
	categories, err := m.checklists.Checklist(ctx, checklistID)
	if err != nil {
		return Inputs{}, fmt.Errorf("fetch checklist: %w", err)
	}
	existing, err := m.results.GetResults(analysisID)
	if err != nil {
		log.Printf("session: prior results for %s unavailable: %v", analysisID, err)
		existing = nil
	}
	if mediaRef == "" {
		mediaRef = analysisID
	}
	return Inputs{
		AnalysisID: analysisID,
		MediaRef:   mediaRef,
		Segments:   segments,
		Categories: categories,
		Existing:   existing,
	}, nil
}
