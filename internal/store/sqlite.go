package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/filewise/filewise/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool, so
	// parallel workers marking items complete never hit "database is locked".
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewULID generates a new ULID string.
func NewULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Batches ---

func (s *SQLiteStore) CreateBatch(ctx context.Context, b *models.Batch) error {
	if b.ID == "" {
		b.ID = NewULID()
	}
	if b.Status == "" {
		b.Status = models.BatchStatusActive
	}
	now := time.Now().UTC()
	b.StartedAt = now
	b.LastUpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, directory, status, started_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Directory, string(b.Status), b.StartedAt, b.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	for i, path := range b.Queue {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO batch_items (batch_id, file_path, position, status)
			VALUES (?, ?, ?, ?)`,
			b.ID, path, i, string(models.ItemStatusPending),
		)
		if err != nil {
			return fmt.Errorf("create batch item %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	b := &models.Batch{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, directory, status, started_at, last_updated_at
		FROM batches WHERE id = ?`, id,
	).Scan(&b.ID, &b.Directory, &status, &b.StartedAt, &b.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b.Status = models.BatchStatus(status)

	if err := s.loadQueue(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// loadQueue fills in the batch's immutable queue in original order.
func (s *SQLiteStore) loadQueue(ctx context.Context, b *models.Batch) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path FROM batch_items WHERE batch_id = ? ORDER BY position`, b.ID)
	if err != nil {
		return fmt.Errorf("load batch queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	b.Queue = nil
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return fmt.Errorf("scan queue item: %w", err)
		}
		b.Queue = append(b.Queue, path)
	}
	return rows.Err()
}

func (s *SQLiteStore) SetBatchStatus(ctx context.Context, id string, status models.BatchStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, last_updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set batch status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("batch not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) GetInterruptedBatch(ctx context.Context) (*models.Batch, error) {
	b := &models.Batch{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, directory, status, started_at, last_updated_at
		FROM batches WHERE status IN ('active', 'interrupted')
		ORDER BY started_at DESC LIMIT 1`,
	).Scan(&b.ID, &b.Directory, &status, &b.StartedAt, &b.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interrupted batch: %w", err)
	}
	b.Status = models.BatchStatus(status)

	if err := s.loadQueue(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) DeleteBatch(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM batches WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("batch not found: %s", id)
	}
	return nil
}

// --- Items ---

func (s *SQLiteStore) MarkItemComplete(ctx context.Context, batchID, filePath string, result *models.ProcessResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE batch_items SET status = ?, result = ?, error = '', completed_at = ?
		WHERE batch_id = ? AND file_path = ?`,
		string(models.ItemStatusComplete), string(resultJSON), now, batchID, filePath,
	)
	if err != nil {
		return fmt.Errorf("mark item complete: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("batch item not found: %s/%s", batchID, filePath)
	}

	return s.touchBatch(ctx, batchID)
}

func (s *SQLiteStore) MarkItemFailed(ctx context.Context, batchID, filePath, errMsg string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE batch_items SET status = ?, error = ?, completed_at = ?
		WHERE batch_id = ? AND file_path = ?`,
		string(models.ItemStatusFailed), errMsg, now, batchID, filePath,
	)
	if err != nil {
		return fmt.Errorf("mark item failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("batch item not found: %s/%s", batchID, filePath)
	}

	return s.touchBatch(ctx, batchID)
}

func (s *SQLiteStore) touchBatch(ctx context.Context, batchID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batches SET last_updated_at = ? WHERE id = ?`, time.Now().UTC(), batchID)
	if err != nil {
		return fmt.Errorf("touch batch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetPendingItems(ctx context.Context, batchID string) ([]string, error) {
	// Pending is derived as queue minus (complete union failed), never a
	// separately tracked cursor, so a crash between dispatch and completion
	// bookkeeping cannot cause drift.
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path FROM batch_items
		WHERE batch_id = ? AND status NOT IN ('complete', 'failed')
		ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("get pending items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan pending item: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *SQLiteStore) GetItems(ctx context.Context, batchID string) ([]*models.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, file_path, status, error, result, completed_at
		FROM batch_items WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) GetLatestResult(ctx context.Context, filePath string) (*models.QueueItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT batch_id, file_path, status, error, result, completed_at
		FROM batch_items
		WHERE file_path = ? AND status = 'complete'
		ORDER BY completed_at DESC LIMIT 1`, filePath)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.QueueItem, error) {
	item := &models.QueueItem{}
	var status string
	var resultJSON sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&item.BatchID, &item.FilePath, &status, &item.Error, &resultJSON, &completedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch item: %w", err)
	}

	item.Status = models.ItemStatus(status)
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}
	if resultJSON.Valid && resultJSON.String != "" {
		result := &models.ProcessResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), result); err != nil {
			return nil, fmt.Errorf("unmarshal item result: %w", err)
		}
		item.Result = result
	}
	return item, nil
}

func (s *SQLiteStore) Progress(ctx context.Context, batchID string) (models.BatchProgress, error) {
	var p models.BatchProgress
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM batch_items WHERE batch_id = ? GROUP BY status`, batchID)
	if err != nil {
		return p, fmt.Errorf("batch progress: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return p, fmt.Errorf("scan progress: %w", err)
		}
		p.Total += count
		switch models.ItemStatus(status) {
		case models.ItemStatusComplete:
			p.Completed += count
		case models.ItemStatusFailed:
			p.Failed += count
		default:
			p.Pending += count
		}
	}
	return p, rows.Err()
}

// --- Feedback ---

func (s *SQLiteStore) CreateFeedback(ctx context.Context, rec *models.FeedbackRecord) error {
	if rec.ID == "" {
		rec.ID = NewULID()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	var editDistance any
	if rec.EditDistance != nil {
		editDistance = *rec.EditDistance
	}
	synthetic := 0
	if rec.Synthetic {
		synthetic = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, file_path, category, ai_suggested_name, action, final_name, edit_distance, synthetic, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FilePath, rec.Category, rec.AISuggestedName,
		string(rec.Action), rec.FinalName, editDistance, synthetic, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetFeedback(ctx context.Context, filePath string) ([]*models.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, category, ai_suggested_name, action, final_name, edit_distance, synthetic, recorded_at
		FROM feedback WHERE file_path = ? ORDER BY recorded_at DESC`, filePath)
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFeedback(rows)
}

func (s *SQLiteStore) GetEffectiveness(ctx context.Context, since time.Time) ([]*models.CategoryEffectiveness, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category,
			SUM(CASE WHEN action = 'accepted' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'edited' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'rejected' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'skipped' THEN 1 ELSE 0 END),
			COALESCE(AVG(CASE WHEN action = 'edited' THEN edit_distance END), 0)
		FROM feedback WHERE recorded_at >= ?
		GROUP BY category ORDER BY category`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("get effectiveness: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []*models.CategoryEffectiveness
	for rows.Next() {
		e := &models.CategoryEffectiveness{}
		if err := rows.Scan(&e.Category, &e.Accepted, &e.Edited, &e.Rejected, &e.Skipped, &e.AvgEditDistance); err != nil {
			return nil, fmt.Errorf("scan effectiveness: %w", err)
		}
		if total := e.Total(); total > 0 {
			rate := float64(e.Accepted) / float64(total) * 100
			e.AcceptanceRate = &rate
		}
		stats = append(stats, e)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) GetRecentRejections(ctx context.Context, limit int, since time.Time) ([]*models.FeedbackRecord, error) {
	query := `SELECT id, file_path, category, ai_suggested_name, action, final_name, edit_distance, synthetic, recorded_at
		FROM feedback WHERE action = 'rejected' AND recorded_at >= ?
		ORDER BY recorded_at DESC`
	args := []any{since.UTC()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recent rejections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFeedback(rows)
}

func scanFeedback(rows *sql.Rows) ([]*models.FeedbackRecord, error) {
	var records []*models.FeedbackRecord
	for rows.Next() {
		rec := &models.FeedbackRecord{}
		var action string
		var editDistance sql.NullInt64
		var synthetic int

		if err := rows.Scan(&rec.ID, &rec.FilePath, &rec.Category, &rec.AISuggestedName,
			&action, &rec.FinalName, &editDistance, &synthetic, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}

		rec.Action = models.FeedbackAction(action)
		rec.Synthetic = synthetic != 0
		if editDistance.Valid {
			d := int(editDistance.Int64)
			rec.EditDistance = &d
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) PruneFeedback(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM feedback WHERE recorded_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune feedback: %w", err)
	}
	return res.RowsAffected()
}
