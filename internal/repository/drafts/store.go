package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vibework/reportbot/internal/domain/models"
)

// ErrNotFound indicates the requested draft identifier is absent.
var ErrNotFound = errors.New("draft not found")

// Seed carries optional pre-selected fields for a fresh draft, used to speed
// up repeat entry against the same project/product.
type Seed struct {
	ProjectID   string
	ProjectName string
	ProductID   string
	ProductName string
}

// Store is durable CRUD over draft records with status-indexed retrieval.
// Implementations must keep Update atomic with respect to concurrent reads.
type Store interface {
	Create(ctx context.Context, seed Seed) (*models.Draft, error)
	Get(ctx context.Context, id string) (*models.Draft, error)
	Update(ctx context.Context, id string, patch models.DraftPatch) (*models.Draft, error)
	GetCurrent(ctx context.Context) (*models.Draft, error)
	ListByStatus(ctx context.Context, statuses ...models.DraftStatus) ([]*models.Draft, error)
	IncrementRetry(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// NewDraftID generates a device-unique identifier of the persisted-state
// shape draft_<epochMillis>_<randomSuffix>.
func NewDraftID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("draft_%d_%s", now.UnixMilli(), suffix)
}

// MarkPending transitions a draft into the sync queue.
func MarkPending(ctx context.Context, s Store, id string) error {
	status := models.StatusReadyToSend
	_, err := s.Update(ctx, id, models.DraftPatch{Status: &status})
	return err
}

// MarkSynced records durable remote delivery. Delivered drafts are never
// mutated again.
func MarkSynced(ctx context.Context, s Store, id string, deliveredAt time.Time) error {
	status := models.StatusDelivered
	_, err := s.Update(ctx, id, models.DraftPatch{Status: &status, DeliveredAt: &deliveredAt})
	return err
}

// MarkFailed flags a draft whose delivery attempt did not succeed and bumps
// its retry counter.
func MarkFailed(ctx context.Context, s Store, id string) error {
	status := models.StatusSendFailed
	if _, err := s.Update(ctx, id, models.DraftPatch{Status: &status}); err != nil {
		return err
	}
	return s.IncrementRetry(ctx, id)
}

// PendingCount returns the number of drafts awaiting delivery.
func PendingCount(ctx context.Context, s Store) (int, error) {
	queued, err := s.ListByStatus(ctx, models.QueuedStatuses...)
	if err != nil {
		return 0, err
	}
	return len(queued), nil
}
