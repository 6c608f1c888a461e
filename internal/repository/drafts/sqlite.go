package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vibework/reportbot/internal/domain/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	delivered_at INTEGER,
	retry_count  INTEGER NOT NULL DEFAULT 0,
	employee_id  TEXT NOT NULL DEFAULT '',
	employee_name TEXT NOT NULL DEFAULT '',
	project_id   TEXT NOT NULL DEFAULT '',
	project_name TEXT NOT NULL DEFAULT '',
	product_id   TEXT NOT NULL DEFAULT '',
	product_name TEXT NOT NULL DEFAULT '',
	actions      TEXT NOT NULL DEFAULT '[]',
	comment      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status, created_at);
CREATE TABLE IF NOT EXISTS reference_cache (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

const draftColumns = `id, status, created_at, delivered_at, retry_count,
	employee_id, employee_name, project_id, project_name, product_id, product_name,
	actions, comment`

// SnapshotKey is the single well-known reference_cache row key.
const SnapshotKey = "reference"

// SQLiteStore is the default draft store backend: a local database file that
// survives restarts and needs no network connectivity.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the draft database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create draft db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}

	// One logical actor per device; a single connection also keeps every
	// update atomic with respect to concurrent reads.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate draft db: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Create allocates a new identifier, fills lifecycle defaults and persists
// the draft.
func (s *SQLiteStore) Create(ctx context.Context, seed Seed) (*models.Draft, error) {
	now := s.now().UTC()
	draft := &models.Draft{
		ID:          NewDraftID(now),
		Status:      models.StatusEditing,
		CreatedAt:   now,
		ProjectID:   seed.ProjectID,
		ProjectName: seed.ProjectName,
		ProductID:   seed.ProductID,
		ProductName: seed.ProductName,
		Actions:     []models.Action{},
	}

	actions, err := json.Marshal(draft.Actions)
	if err != nil {
		return nil, fmt.Errorf("encode actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, status, created_at, retry_count,
			project_id, project_name, product_id, product_name, actions, comment)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, '')`,
		draft.ID, string(draft.Status), now.UnixMilli(),
		draft.ProjectID, draft.ProjectName, draft.ProductID, draft.ProductName, string(actions))
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}

	return draft, nil
}

// Get returns a single draft by identifier.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id)
	return scanDraft(row)
}

// Update merges the patch into the stored draft and returns the result.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch models.DraftPatch) (*models.Draft, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	draft, err := scanDraft(tx.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	applyPatch(draft, patch)

	actions, err := json.Marshal(draft.Actions)
	if err != nil {
		return nil, fmt.Errorf("encode actions: %w", err)
	}

	var deliveredAt any
	if draft.DeliveredAt != nil {
		deliveredAt = draft.DeliveredAt.UnixMilli()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE drafts SET status = ?, delivered_at = ?, retry_count = ?,
			employee_id = ?, employee_name = ?,
			project_id = ?, project_name = ?, product_id = ?, product_name = ?,
			actions = ?, comment = ?
		 WHERE id = ?`,
		string(draft.Status), deliveredAt, draft.RetryCount,
		draft.EmployeeID, draft.EmployeeName,
		draft.ProjectID, draft.ProjectName, draft.ProductID, draft.ProductName,
		string(actions), draft.Comment, id)
	if err != nil {
		return nil, fmt.Errorf("update draft %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	return draft, nil
}

// GetCurrent returns the most recently created draft still being edited, or
// nil when there is none.
func (s *SQLiteStore) GetCurrent(ctx context.Context) (*models.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts
		 WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(models.StatusEditing))

	draft, err := scanDraft(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return draft, err
}

// ListByStatus returns matching drafts ordered by creation time ascending.
func (s *SQLiteStore) ListByStatus(ctx context.Context, statuses ...models.DraftStatus) ([]*models.Draft, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(statuses)*2)
	args := make([]any, 0, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, string(st))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM drafts
		 WHERE status IN (`+string(placeholders)+`) ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts by status: %w", err)
	}
	defer rows.Close()

	var result []*models.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, draft)
	}
	return result, rows.Err()
}

// IncrementRetry bumps the retry counter of a failed delivery in place.
func (s *SQLiteStore) IncrementRetry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment retry for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment retry for %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("increment retry for %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveSnapshot persists the reference snapshot under the well-known key so a
// restarted process can serve a stale catalog while offline.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *models.ReferenceSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reference_cache (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		SnapshotKey, string(payload), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the locally cached reference snapshot and its
// updatedAt timestamp, or (nil, zero) when none has been saved yet.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*models.ReferenceSnapshot, time.Time, error) {
	var payload string
	var updatedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM reference_cache WHERE key = ?`, SnapshotKey).
		Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", err)
	}

	snapshot := new(models.ReferenceSnapshot)
	if err := json.Unmarshal([]byte(payload), snapshot); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, time.UnixMilli(updatedAt).UTC(), nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var (
		draft       models.Draft
		status      string
		createdAt   int64
		deliveredAt sql.NullInt64
		actions     string
	)

	err := row.Scan(&draft.ID, &status, &createdAt, &deliveredAt, &draft.RetryCount,
		&draft.EmployeeID, &draft.EmployeeName,
		&draft.ProjectID, &draft.ProjectName, &draft.ProductID, &draft.ProductName,
		&actions, &draft.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}

	draft.Status = models.DraftStatus(status)
	draft.CreatedAt = time.UnixMilli(createdAt).UTC()
	if deliveredAt.Valid {
		at := time.UnixMilli(deliveredAt.Int64).UTC()
		draft.DeliveredAt = &at
	}

	if err := json.Unmarshal([]byte(actions), &draft.Actions); err != nil {
		return nil, fmt.Errorf("decode actions for %s: %w", draft.ID, err)
	}
	return &draft, nil
}

func applyPatch(draft *models.Draft, patch models.DraftPatch) {
	if patch.Status != nil {
		draft.Status = *patch.Status
	}
	if patch.DeliveredAt != nil {
		at := patch.DeliveredAt.UTC()
		draft.DeliveredAt = &at
	}
	if patch.RetryCount != nil {
		draft.RetryCount = *patch.RetryCount
	}
	if patch.EmployeeID != nil {
		draft.EmployeeID = *patch.EmployeeID
	}
	if patch.EmployeeName != nil {
		draft.EmployeeName = *patch.EmployeeName
	}
	if patch.ProjectID != nil {
		draft.ProjectID = *patch.ProjectID
	}
	if patch.ProjectName != nil {
		draft.ProjectName = *patch.ProjectName
	}
	if patch.ProductID != nil {
		draft.ProductID = *patch.ProductID
	}
	if patch.ProductName != nil {
		draft.ProductName = *patch.ProductName
	}
	if patch.Actions != nil {
		draft.Actions = append([]models.Action(nil), (*patch.Actions)...)
	}
	if patch.Comment != nil {
		draft.Comment = *patch.Comment
	}
}
