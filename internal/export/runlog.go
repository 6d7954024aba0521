package export

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/tsfwatch/internal/domain"
)

// ExportRun is the persisted summary of one ExportAll call.
type ExportRun struct {
	ID        uuid.UUID             `json:"id"`
	Folder    string                `json:"folder"`
	FileCount int                   `json:"fileCount"`
	TotalSize int64                 `json:"totalSize"`
	Formats   []domain.ExportFormat `json:"formats"`
	CreatedAt time.Time             `json:"createdAt"`
}

// RunLog records export runs.
//
// Implementations:
// - MemoryRunLog: process-local
// - PostgresRunLog: export_runs table managed by goose migrations
type RunLog interface {
	Record(ctx context.Context, result *domain.ExportResult) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]ExportRun, error)
}

func runFromResult(r *domain.ExportResult) ExportRun {
	return ExportRun{
		ID:        r.RunID,
		Folder:    r.Folder,
		FileCount: r.FileCount(),
		TotalSize: r.TotalSize,
		Formats:   append([]domain.ExportFormat(nil), r.Formats...),
		CreatedAt: r.CreatedAt,
	}
}

// =============================================================================
// MemoryRunLog
// =============================================================================

// MemoryRunLog keeps runs in a slice guarded by a mutex.
type MemoryRunLog struct {
	mu   sync.Mutex
	runs []ExportRun
}

// NewMemoryRunLog creates an empty log.
func NewMemoryRunLog() *MemoryRunLog {
	return &MemoryRunLog{}
}

func (l *MemoryRunLog) Record(ctx context.Context, result *domain.ExportResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, runFromResult(result))
	return nil
}

func (l *MemoryRunLog) Recent(ctx context.Context, limit int) ([]ExportRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ExportRun, 0, min(limit, len(l.runs)))
	for i := len(l.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.runs[i])
	}
	return out, nil
}

// =============================================================================
// PostgresRunLog
// =============================================================================

// PostgresRunLog stores runs in the export_runs table.
type PostgresRunLog struct {
	db *sql.DB
}

// NewPostgresRunLog wraps an open database handle.
func NewPostgresRunLog(db *sql.DB) *PostgresRunLog {
	return &PostgresRunLog{db: db}
}

func (l *PostgresRunLog) Record(ctx context.Context, result *domain.ExportResult) error {
	run := runFromResult(result)
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO export_runs (id, folder, file_count, total_size, formats, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID,
		run.Folder,
		run.FileCount,
		run.TotalSize,
		joinFormats(run.Formats),
		run.CreatedAt,
	)
	return err
}

func (l *PostgresRunLog) Recent(ctx context.Context, limit int) ([]ExportRun, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, folder, file_count, total_size, formats, created_at
		 FROM export_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRun
	for rows.Next() {
		var (
			run     ExportRun
			formats string
		)
		if err := rows.Scan(&run.ID, &run.Folder, &run.FileCount, &run.TotalSize, &formats, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Formats = splitFormats(formats)
		out = append(out, run)
	}
	return out, rows.Err()
}

func joinFormats(formats []domain.ExportFormat) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func splitFormats(s string) []domain.ExportFormat {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.ExportFormat, len(parts))
	for i, p := range parts {
		out[i] = domain.ExportFormat(p)
	}
	return out
}
