// Package syncengine drives delivery of queued drafts to the remote
// transport and keeps the pending-count indicator accurate.
package syncengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vibework/reportbot/internal/domain/models"
	"github.com/vibework/reportbot/internal/repository/drafts"
	"github.com/vibework/reportbot/internal/service/assembler"
)

// ErrDraftIncomplete indicates a submit was attempted on a draft lacking a
// project, a product or any actions.
var ErrDraftIncomplete = errors.New("draft is missing required fields for submission")

// ErrAlreadyDelivered rejects a submit of a draft that has already reached
// the delivered status. Delivered drafts are never mutated again.
var ErrAlreadyDelivered = errors.New("draft has already been delivered")

// Transport is the single external delivery operation: attempt to durably
// store a report. Anything but a nil return counts as a failed attempt.
type Transport interface {
	Submit(ctx context.Context, report *models.Report) error
}

// DrainResult summarizes one pass over the sync queue.
type DrainResult struct {
	Ran       bool
	Delivered int
	Failed    int
	Pending   int
}

// Engine attempts delivery of ready/failed drafts. Drain passes are
// serialized: a second trigger while one is in flight is a no-op.
type Engine struct {
	store     drafts.Store
	assembler *assembler.Service
	transport Transport
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	online   bool
	draining bool
	pending  int
}

// NewEngine wires a new sync engine. The engine starts in the online state;
// the connectivity probe corrects it on its first pass.
func NewEngine(store drafts.Store, asm *assembler.Service, transport Transport, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		assembler: asm,
		transport: transport,
		logger:    logger,
		now:       time.Now,
		online:    true,
	}
}

// Online reports the current connectivity flag.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// SetOnline updates the connectivity flag. The offline-to-online transition
// is the single trigger for an automatic drain pass; going offline only
// flips the flag and never cancels an attempt already in flight.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	e.mu.Unlock()

	if online && !wasOnline {
		e.logger.Info("connectivity regained, draining sync queue")
		if _, err := e.Drain(ctx); err != nil {
			e.logger.Error("automatic drain failed", zap.Error(err))
		}
	}
}

// PendingCount returns the number of drafts awaiting delivery, refreshed
// from the store.
func (e *Engine) PendingCount(ctx context.Context) (int, error) {
	count, err := drafts.PendingCount(ctx, e.store)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.pending = count
	e.mu.Unlock()
	return count, nil
}

// LastPending returns the pending count observed at the end of the most
// recent drain or count refresh, without touching the store.
func (e *Engine) LastPending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Drain iterates the sync queue in creation order, attempting delivery of
// each draft. One failure never blocks the rest of the queue. When another
// drain is already running the call returns with Ran=false.
func (e *Engine) Drain(ctx context.Context) (DrainResult, error) {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return DrainResult{}, nil
	}
	e.draining = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	queue, err := e.store.ListByStatus(ctx, models.QueuedStatuses...)
	if err != nil {
		return DrainResult{}, err
	}

	result := DrainResult{Ran: true}
	for _, draft := range queue {
		if err := e.deliver(ctx, draft); err != nil {
			result.Failed++
			e.logger.Warn("draft delivery failed",
				zap.String("draft_id", draft.ID),
				zap.Int("retries", draft.RetryCount+1),
				zap.Error(err))
			continue
		}
		result.Delivered++
	}

	pending, err := e.PendingCount(ctx)
	if err != nil {
		return result, err
	}
	result.Pending = pending

	if result.Delivered > 0 || result.Failed > 0 {
		e.logger.Info("sync queue drained",
			zap.Int("delivered", result.Delivered),
			zap.Int("failed", result.Failed),
			zap.Int("pending", result.Pending))
	}
	return result, nil
}

// deliver assembles and submits a single queued draft, transitioning its
// status according to the outcome.
func (e *Engine) deliver(ctx context.Context, draft *models.Draft) error {
	actor := models.Employee{ID: draft.EmployeeID, Name: draft.EmployeeName}

	report, err := e.assembler.Assemble(draft, actor)
	if err == nil {
		err = e.transport.Submit(ctx, report)
	}

	if err != nil {
		if markErr := drafts.MarkFailed(ctx, e.store, draft.ID); markErr != nil {
			e.logger.Error("failed to record delivery failure",
				zap.String("draft_id", draft.ID), zap.Error(markErr))
		}
		return err
	}

	return drafts.MarkSynced(ctx, e.store, draft.ID, e.now().UTC())
}

// SubmitDraft is the interactive send path: it binds the actor to the draft,
// queues it, and immediately drains when online. The returned bool reports
// whether this draft was delivered during the pass; false with a nil error
// means "saved, will send later".
func (e *Engine) SubmitDraft(ctx context.Context, id string, actor models.Employee) (bool, error) {
	draft, err := e.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if draft.Status == models.StatusDelivered {
		return false, ErrAlreadyDelivered
	}
	if !draft.Submittable() {
		return false, ErrDraftIncomplete
	}

	status := models.StatusReadyToSend
	if _, err := e.store.Update(ctx, id, models.DraftPatch{
		Status:       &status,
		EmployeeID:   &actor.ID,
		EmployeeName: &actor.Name,
	}); err != nil {
		return false, err
	}

	if !e.Online() {
		if _, err := e.PendingCount(ctx); err != nil {
			e.logger.Warn("failed to refresh pending count", zap.Error(err))
		}
		return false, nil
	}

	if _, err := e.Drain(ctx); err != nil {
		return false, err
	}

	// The draft may have been delivered by this pass or left queued after a
	// transport failure; its fresh status is the source of truth.
	updated, err := e.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return updated.Status == models.StatusDelivered, nil
}
