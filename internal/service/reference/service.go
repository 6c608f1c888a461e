package reference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vibework/reportbot/internal/domain/models"
	repo "github.com/vibework/reportbot/internal/repository/sheets"
)

// ErrSnapshotUnavailable indicates no catalog has ever been fetched or cached.
var ErrSnapshotUnavailable = errors.New("reference snapshot unavailable")

// ErrSnapshotStale indicates the only available catalog is older than the
// operator-configured maximum age.
var ErrSnapshotStale = errors.New("reference snapshot too stale to serve")

// ErrEmployeeNotFound indicates the actor has no row in the Users tab.
var ErrEmployeeNotFound = errors.New("employee not found")

// Cache is the local persistence the service uses to survive restarts while
// offline. Both draft store backends implement it.
type Cache interface {
	SaveSnapshot(ctx context.Context, snapshot *models.ReferenceSnapshot) error
	LoadSnapshot(ctx context.Context) (*models.ReferenceSnapshot, time.Time, error)
}

// Service owns the reference snapshot lifecycle: fetch, normalization,
// in-memory caching and the persisted fallback copy.
type Service struct {
	repo   repo.Repository
	cache  Cache
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *models.ReferenceSnapshot
}

// NewService wires a new reference service instance.
func NewService(repository repo.Repository, cache Cache, maxAge time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repository,
		cache:  cache,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Refresh fetches every reference tab and replaces the snapshot wholesale.
// Any fetch error fails closed: the prior snapshot is retained untouched.
func (s *Service) Refresh(ctx context.Context) error {
	started := s.now()

	tabs := make(map[string][]map[string]string, 7)
	for _, name := range []string{
		repo.SheetProjects, repo.SheetProducts, repo.SheetLabourTypes,
		repo.SheetPaintTypes, repo.SheetPaintMats,
		repo.SheetMaterialTypes, repo.SheetMaterials, repo.SheetEmployees,
	} {
		records, err := s.repo.ReadRecords(ctx, name)
		if err != nil {
			return fmt.Errorf("refresh reference tab %s: %w", name, err)
		}
		tabs[name] = records
	}

	snapshot := &models.ReferenceSnapshot{
		Projects:       normalizeList(tabs[repo.SheetProjects], projectIDKeys, projectNameKeys),
		Products:       normalizeGrouped(tabs[repo.SheetProducts], productIDKeys, productNameKeys, productParentKeys),
		LabourTypes:    normalizeList(tabs[repo.SheetLabourTypes], labourIDKeys, labourNameKeys),
		PaintTypes:     normalizeList(tabs[repo.SheetPaintTypes], typeIDKeys, typeNameKeys),
		PaintMaterials: normalizeGrouped(tabs[repo.SheetPaintMats], materialIDKeys, materialNameKeys, materialParentKeys),
		MaterialTypes:  normalizeList(tabs[repo.SheetMaterialTypes], typeIDKeys, typeNameKeys),
		Materials:      normalizeGrouped(tabs[repo.SheetMaterials], materialIDKeys, materialNameKeys, materialParentKeys),
		Employees:      normalizeEmployees(tabs[repo.SheetEmployees]),
		FetchedAt:      s.now().UTC(),
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveSnapshot(ctx, snapshot); err != nil {
			// Snapshot is live in memory; losing the persisted copy only
			// hurts the next offline restart.
			s.logger.Warn("failed to persist reference snapshot", zap.Error(err))
		}
	}

	s.logger.Info("reference snapshot refreshed",
		zap.Int("projects", len(snapshot.Projects)),
		zap.Int("employees", len(snapshot.Employees)),
		zap.Duration("took", s.now().Sub(started)))
	return nil
}

// Snapshot returns the current catalog. With no live copy it falls back to
// the persisted one; beyond maxAge even the fallback is refused.
func (s *Service) Snapshot(ctx context.Context) (*models.ReferenceSnapshot, error) {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	if snapshot == nil && s.cache != nil {
		cached, updatedAt, err := s.cache.LoadSnapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cached snapshot: %w", err)
		}
		if cached != nil {
			if cached.FetchedAt.IsZero() {
				cached.FetchedAt = updatedAt
			}
			s.mu.Lock()
			if s.snapshot == nil {
				s.snapshot = cached
			}
			snapshot = s.snapshot
			s.mu.Unlock()
			s.logger.Info("serving persisted reference snapshot", zap.Time("fetched_at", cached.FetchedAt))
		}
	}

	if snapshot == nil {
		return nil, ErrSnapshotUnavailable
	}

	if s.maxAge > 0 && snapshot.Age(s.now()) > s.maxAge {
		return nil, fmt.Errorf("%w: fetched %s", ErrSnapshotStale, snapshot.FetchedAt.Format(time.RFC3339))
	}

	return snapshot, nil
}

// Employee resolves an actor by telegram identifier and reports the two
// access gates. A missing row means not registered; an explicit inactive
// flag means registered but blocked.
func (s *Service) Employee(ctx context.Context, telegramID string) (models.Employee, models.ActorGates, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return models.Employee{}, models.ActorGates{}, err
	}

	employee, ok := snapshot.Employees[telegramID]
	if !ok {
		// Older rows sometimes keyed employees by the sheet id column.
		for _, candidate := range snapshot.Employees {
			if candidate.ID == telegramID {
				employee, ok = candidate, true
				break
			}
		}
	}

	if !ok {
		return models.Employee{}, models.ActorGates{}, ErrEmployeeNotFound
	}

	return employee, models.ActorGates{Registered: true, Active: employee.Active}, nil
}

// Register appends a new employee row and makes the actor visible without
// waiting for the next refresh.
func (s *Service) Register(ctx context.Context, telegramID, name string) error {
	if telegramID == "" || name == "" {
		return errors.New("telegram id and name are required")
	}

	if _, _, err := s.Employee(ctx, telegramID); err == nil {
		return fmt.Errorf("employee %s already registered", telegramID)
	}

	row := []interface{}{telegramID, name, "user", "true"}
	if err := s.repo.AppendReferenceRow(ctx, repo.SheetEmployees, row); err != nil {
		return fmt.Errorf("register employee: %w", err)
	}

	// Snapshots are immutable once published; swap in a copy with the new
	// employee instead of mutating the shared map.
	s.mu.Lock()
	if s.snapshot != nil {
		next := *s.snapshot
		next.Employees = make(map[string]models.Employee, len(s.snapshot.Employees)+1)
		for id, emp := range s.snapshot.Employees {
			next.Employees[id] = emp
		}
		next.Employees[telegramID] = models.Employee{
			TelegramID: telegramID,
			ID:         telegramID,
			Name:       name,
			Role:       "user",
			Active:     true,
		}
		s.snapshot = &next
	}
	s.mu.Unlock()

	s.logger.Info("registered new employee", zap.String("telegram_id", telegramID), zap.String("name", name))
	return nil
}
