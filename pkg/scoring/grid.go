package scoring

import (
	"errors"
	"fmt"
	"sync"

	"call-review/pkg/models"
)

// ErrUnknownCriterion is returned when a command references a (category,
// criterion) pair not present in the current checklist. The grid is left
// untouched.
var ErrUnknownCriterion = errors.New("unknown criterion")

type key struct {
	categoryID  string
	criterionID string
}

// Grid is the in-memory category -> criterion -> score matrix. One ScoreEntry
// exists per criterion for the lifetime of a session; entries are mutated
// only through ApplyLocal/Confirm/Rollback and each mutation is atomic.
type Grid struct {
	mu      sync.RWMutex
	entries map[key]*models.ScoreEntry
	order   []key
}

// NewGrid builds one unscored entry per criterion, seeding server-confirmed
// values from existing results where present.
func NewGrid(categories []models.Category, existing []models.ScoreResult) *Grid {
	g := &Grid{entries: make(map[key]*models.ScoreEntry)}

	seeds := make(map[key]models.ScoreResult, len(existing))
	for _, res := range existing {
		seeds[key{res.CategoryID, res.CriterionID}] = res
	}

	for _, cat := range categories {
		for _, crit := range cat.Criteria {
			k := key{cat.ID, crit.ID}
			entry := &models.ScoreEntry{
				CategoryID:  cat.ID,
				CriterionID: crit.ID,
			}
			if res, ok := seeds[k]; ok {
				entry.Score = res.Score
				entry.Comment = res.Comment
				entry.OriginalScore = res.Score
				entry.OriginalComment = res.Comment
				entry.Confidence = clampConfidence(res.Confidence)
			}
			g.entries[k] = entry
			g.order = append(g.order, k)
		}
	}
	return g
}

// Entry returns a copy of the entry for one criterion.
func (g *Grid) Entry(categoryID, criterionID string) (models.ScoreEntry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entry, ok := g.entries[key{categoryID, criterionID}]
	if !ok {
		return models.ScoreEntry{}, fmt.Errorf("%w: %s/%s", ErrUnknownCriterion, categoryID, criterionID)
	}
	return *entry, nil
}

// Entries returns copies of all entries in checklist order.
func (g *Grid) Entries() []models.ScoreEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.ScoreEntry, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, *g.entries[k])
	}
	return out
}

// ApplyLocal records an optimistic edit. The rollback baseline is untouched;
// a nil comment keeps the existing one.
func (g *Grid) ApplyLocal(categoryID, criterionID string, score models.Score, comment *string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.entries[key{categoryID, criterionID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownCriterion, categoryID, criterionID)
	}
	entry.Score = score
	if comment != nil {
		entry.Comment = *comment
	}
	// Manual edits never carry automated confidence.
	entry.Confidence = nil
	recomputeEdited(entry)
	return nil
}

// Confirm moves the rollback baseline to the server-acknowledged values. The
// current local value is preserved: a local edit made after the request was
// sent survives, with IsEdited recomputed against the new baseline.
func (g *Grid) Confirm(categoryID, criterionID string, score models.Score, comment *string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.entries[key{categoryID, criterionID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownCriterion, categoryID, criterionID)
	}
	entry.OriginalScore = score
	if comment != nil {
		entry.OriginalComment = *comment
	}
	recomputeEdited(entry)
	return nil
}

// Rollback restores the last confirmed values after a failed update.
func (g *Grid) Rollback(categoryID, criterionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.entries[key{categoryID, criterionID}]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownCriterion, categoryID, criterionID)
	}
	entry.Score = entry.OriginalScore
	entry.Comment = entry.OriginalComment
	entry.IsEdited = false
	return nil
}

// Statistics folds the grid into derived counts. Unclear counts toward
// scored, never toward passed/failed.
func (g *Grid) Statistics() models.SessionStatistics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	stats := models.SessionStatistics{Total: len(g.entries)}
	for _, entry := range g.entries {
		if entry.Score.Scored() {
			stats.Scored++
		}
		switch entry.Score {
		case models.ScorePass:
			stats.Passed++
		case models.ScoreFail:
			stats.Failed++
		case models.ScoreUnclear:
			stats.Unclear++
		}
		if entry.IsEdited {
			stats.EditedCount++
		}
	}
	stats.ProgressPercent = models.Progress(stats.Scored, stats.Total)
	return stats
}

func recomputeEdited(entry *models.ScoreEntry) {
	entry.IsEdited = entry.Score != entry.OriginalScore || entry.Comment != entry.OriginalComment
}

func clampConfidence(c *int) *int {
	if c == nil {
		return nil
	}
	v := *c
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return &v
}
