package scoring

import (
	"context"
	"errors"
	"log"
	"sync"

	"call-review/pkg/models"
)

// ErrCoordinatorClosed is returned once the session holding the coordinator
// has been torn down.
var ErrCoordinatorClosed = errors.New("coordinator closed")

// Confirmer issues the remote confirmation for one criterion edit. The
// returned score/comment are the values the server acknowledges, which may
// differ from what was sent.
type Confirmer interface {
	ConfirmScore(ctx context.Context, analysisID, categoryID, criterionID string, score models.Score, comment *string) (models.Score, *string, error)
}

// Outcome reports how one SetScore call ended. Err is non-nil when the
// remote confirmation failed and the grid was rolled back.
type Outcome struct {
	CategoryID  string
	CriterionID string
	Score       models.Score
	Comment     *string
	Err         error
}

// Coordinator applies score edits optimistically and reconciles them with
// the remote scoring service. Each criterion carries a generation counter; a
// newer SetScore bumps it, and a completion whose generation is stale is
// discarded so an out-of-order network reply can never overwrite a newer
// local edit.
type Coordinator struct {
	mu         sync.Mutex
	grid       *Grid
	confirmer  Confirmer
	analysisID string
	gen        map[key]uint64
	onOutcome  func(Outcome)
	closed     bool
	wg         sync.WaitGroup
}

func NewCoordinator(grid *Grid, confirmer Confirmer, analysisID string, onOutcome func(Outcome)) *Coordinator {
	return &Coordinator{
		grid:       grid,
		confirmer:  confirmer,
		analysisID: analysisID,
		gen:        make(map[key]uint64),
		onOutcome:  onOutcome,
	}
}

// SetScore applies the edit to the grid immediately and issues the remote
// confirmation in the background. The returned error covers only local
// validation (unknown criterion, closed coordinator); remote failures arrive
// via the outcome callback after rollback.
func (c *Coordinator) SetScore(ctx context.Context, categoryID, criterionID string, score models.Score, comment *string) error {
	// Unscored never crosses the confirmation boundary; entries are
	// cleared only by session reset.
	if !score.Valid() || !score.Scored() {
		return errors.New("invalid score value")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	if err := c.grid.ApplyLocal(categoryID, criterionID, score, comment); err != nil {
		c.mu.Unlock()
		return err
	}
	k := key{categoryID, criterionID}
	c.gen[k]++
	gen := c.gen[k]
	c.wg.Add(1)
	c.mu.Unlock()

	go c.confirm(ctx, k, gen, score, comment)
	return nil
}

func (c *Coordinator) confirm(ctx context.Context, k key, gen uint64, score models.Score, comment *string) {
	defer c.wg.Done()

	confirmed, confirmedComment, err := c.confirmer.ConfirmScore(ctx, c.analysisID, k.categoryID, k.criterionID, score, comment)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen[k] != gen {
		// Superseded by a newer edit (or teardown); this reply must have
		// no effect.
		log.Printf("scoring: discarding stale confirmation for %s/%s", k.categoryID, k.criterionID)
		return
	}

	if err != nil {
		if rbErr := c.grid.Rollback(k.categoryID, k.criterionID); rbErr != nil {
			log.Printf("scoring: rollback %s/%s: %v", k.categoryID, k.criterionID, rbErr)
		}
		c.emit(Outcome{CategoryID: k.categoryID, CriterionID: k.criterionID, Score: score, Comment: comment, Err: err})
		return
	}

	if cfErr := c.grid.Confirm(k.categoryID, k.criterionID, confirmed, confirmedComment); cfErr != nil {
		log.Printf("scoring: confirm %s/%s: %v", k.categoryID, k.criterionID, cfErr)
		return
	}
	c.emit(Outcome{CategoryID: k.categoryID, CriterionID: k.criterionID, Score: confirmed, Comment: confirmedComment})
}

func (c *Coordinator) emit(o Outcome) {
	if c.onOutcome != nil {
		c.onOutcome(o)
	}
}

// Close marks every in-flight request as superseded. Their replies are
// ignored; nothing is retried.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Wait blocks until all spawned confirmations have returned. Test helper.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
