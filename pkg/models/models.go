package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Speaker string

const (
	SpeakerOperator Speaker = "operator"
	SpeakerClient   Speaker = "client"
)

// NormalizeSpeaker maps free-form diarization labels ("Client", "customer",
// "Agent", "manager", ...) onto the two-party enum.
func NormalizeSpeaker(raw string) Speaker {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "client") || strings.HasPrefix(s, "customer") {
		return SpeakerClient
	}
	return SpeakerOperator
}

// Segment is one timed utterance in a transcript. Segments are immutable:
// the full ordered list is built once per session and replaced wholesale on
// reload, never patched.
type Segment struct {
	ID        string  `json:"id"`
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type Category struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Criteria []Criterion `json:"criteria"`
}

type Criterion struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
	Text       string `json:"text"`
	Required   bool   `json:"required"`
}

// Score is the tri-state verdict for one criterion. The zero value means the
// criterion has not been reviewed yet.
type Score string

const (
	ScoreUnscored Score = ""
	ScorePass     Score = "pass"
	ScoreFail     Score = "fail"
	ScoreUnclear  Score = "unclear"
)

func (s Score) Valid() bool {
	switch s {
	case ScoreUnscored, ScorePass, ScoreFail, ScoreUnclear:
		return true
	}
	return false
}

// Scored reports whether the criterion has been reviewed. Unclear counts as
// reviewed even though it is neither pass nor fail.
func (s Score) Scored() bool {
	return s != ScoreUnscored
}

// ScoreEntry is the mutable scoring fact for one (category, criterion) pair.
// OriginalScore/OriginalComment hold the last server-confirmed values and are
// the rollback baseline for optimistic edits.
type ScoreEntry struct {
	CategoryID      string `json:"category_id"`
	CriterionID     string `json:"criterion_id"`
	Score           Score  `json:"score"`
	Confidence      *int   `json:"confidence,omitempty"`
	Comment         string `json:"comment,omitempty"`
	IsEdited        bool   `json:"is_edited"`
	OriginalScore   Score  `json:"original_score"`
	OriginalComment string `json:"original_comment,omitempty"`
}

// ScoreResult is a server-confirmed scoring fact, as seeded from a prior
// analysis or persisted after a confirmation round-trip.
type ScoreResult struct {
	CategoryID  string `json:"category_id"`
	CriterionID string `json:"criterion_id"`
	Score       Score  `json:"score"`
	Comment     string `json:"comment,omitempty"`
	Confidence  *int   `json:"confidence,omitempty"`
}

type PlaybackStatus string

const (
	StatusIdle    PlaybackStatus = "idle"
	StatusLoading PlaybackStatus = "loading"
	StatusPaused  PlaybackStatus = "paused"
	StatusPlaying PlaybackStatus = "playing"
	StatusError   PlaybackStatus = "error"
)

// DurationUnknown marks a media source whose length has not been reported
// yet. It is distinct from a genuinely zero-length source.
const DurationUnknown float64 = -1

type PlaybackState struct {
	Status        PlaybackStatus `json:"status"`
	CurrentTime   float64        `json:"current_time"`
	Duration      float64        `json:"duration"`
	Rate          float64        `json:"rate"`
	Volume        int            `json:"volume"`
	Muted         bool           `json:"muted"`
	LoopSegmentID string         `json:"loop_segment_id,omitempty"`
}

func (p PlaybackState) IsPlaying() bool {
	return p.Status == StatusPlaying
}

func (p PlaybackState) HasDuration() bool {
	return p.Duration >= 0
}

// SessionStatistics is derived from the grid on demand, never stored.
type SessionStatistics struct {
	Total           int `json:"total"`
	Scored          int `json:"scored"`
	Passed          int `json:"passed"`
	Failed          int `json:"failed"`
	Unclear         int `json:"unclear"`
	EditedCount     int `json:"edited_count"`
	ProgressPercent int `json:"progress_percent"`
}

// Progress computes the rounded completion percentage, 0 for an empty grid.
func Progress(scored, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(scored) / float64(total)))
}

// Notice is a transient, dismissible message surfaced to the UI, e.g. when a
// score confirmation fails and the edit is rolled back.
type Notice struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id,omitempty"`
	CriterionID string    `json:"criterion_id,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewNotice(categoryID, criterionID, message string) Notice {
	return Notice{
		ID:          uuid.New().String(),
		CategoryID:  categoryID,
		CriterionID: criterionID,
		Message:     message,
		CreatedAt:   time.Now(),
	}
}
