package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/events"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
	"github.com/DukeRupert/tsfwatch/internal/storage"
)

// Source supplies the data an export run serializes.
type Source interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Exporter runs generators against a Source and persists their output.
type Exporter struct {
	source     Source
	store      storage.Storage
	publisher  events.Publisher
	runs       RunLog
	logger     *slog.Logger
	now        func() time.Time
	generators []Generator
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithPublisher sets where export.completed events go.
func WithPublisher(p events.Publisher) Option {
	return func(e *Exporter) { e.publisher = p }
}

// WithRunLog sets where ExportAll records completed runs.
func WithRunLog(l RunLog) Option {
	return func(e *Exporter) { e.runs = l }
}

// WithClock overrides time.Now for folder names and GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// NewExporter creates an Exporter writing every supported format.
func NewExporter(source Source, store storage.Storage, logger *slog.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		source:    source,
		store:     store,
		publisher: events.Nop{},
		runs:      NewMemoryRunLog(),
		logger:    logger.With("component", "exporter"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	data := []Generator{
		GeoJSONGenerator{},
		CSVGenerator{},
		KMLGenerator{},
		XLSXGenerator{},
		TextReportGenerator{},
		NewPDFReportGenerator(),
	}
	names := make([]string, 0, len(data))
	for _, g := range data {
		names = append(names, g.FileName())
	}
	e.generators = append(data, MetadataGenerator{Files: names})

	return e
}

// Generators returns the generators ExportAll runs, in output order.
func (e *Exporter) Generators() []Generator {
	return e.generators
}

// ExportAll writes every format into a fresh TSF_MapData_<stamp>/ folder.
// Generators run concurrently; the first failure cancels the rest and is
// returned.
func (e *Exporter) ExportAll(ctx context.Context) (*domain.ExportResult, error) {
	const op = "Exporter.ExportAll"

	snap, err := e.snapshot(ctx, op)
	if err != nil {
		return nil, err
	}

	folder := storage.ExportFolder(snap.GeneratedAt)
	files, err := e.write(ctx, snap, e.generators, func(g Generator) string {
		return storage.ExportKey(folder, g.FileName())
	})
	if err != nil {
		return nil, domain.Wrap(err, domain.EINTERNAL, op, "Failed to write export files")
	}

	result := &domain.ExportResult{
		RunID:     uuid.New(),
		Folder:    folder,
		Files:     files,
		CreatedAt: snap.GeneratedAt,
	}
	for _, f := range files {
		result.Formats = append(result.Formats, f.Format)
		result.TotalSize += f.Size
	}

	e.logger.Info("export completed",
		"folder", folder,
		"files", result.FileCount(),
		"total_size", result.TotalSize,
	)
	if err := e.runs.Record(ctx, result); err != nil {
		e.logger.Warn("failed to record export run", "folder", folder, "error", err)
	}
	events.PublishJSON(ctx, e.publisher, e.logger, events.TypeExportCompleted, result)

	return result, nil
}

// GenerateReport writes the narrative report as reports/TSF_Report_<stamp>
// in text and PDF form.
func (e *Exporter) GenerateReport(ctx context.Context) (*domain.ReportResult, error) {
	const op = "Exporter.GenerateReport"

	snap, err := e.snapshot(ctx, op)
	if err != nil {
		return nil, err
	}

	name := storage.ReportName(snap.GeneratedAt)
	generators := []Generator{TextReportGenerator{}, NewPDFReportGenerator()}
	files, err := e.write(ctx, snap, generators, func(g Generator) string {
		return storage.ReportKey(name, g.Format().FileExtension())
	})
	if err != nil {
		return nil, domain.Wrap(err, domain.EINTERNAL, op, "Failed to write report")
	}

	result := &domain.ReportResult{
		Name:      name,
		Files:     files,
		PageCount: PageCount(NarrativeReport(snap)),
		CreatedAt: snap.GeneratedAt,
	}

	e.logger.Info("report generated", "name", name, "pages", result.PageCount)
	return result, nil
}

// List returns stored export and report files under prefix.
func (e *Exporter) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	const op = "Exporter.List"

	objects, err := e.store.List(ctx, prefix)
	if err != nil {
		if storage.IsInvalidKey(err) {
			return nil, domain.Invalid(op, "Invalid export path")
		}
		return nil, domain.Internal(err, op, "Failed to list exports")
	}
	return objects, nil
}

// Runs returns up to limit recent export runs, newest first.
func (e *Exporter) Runs(ctx context.Context, limit int) ([]ExportRun, error) {
	const op = "Exporter.Runs"

	if limit <= 0 {
		return nil, domain.Invalid(op, "Limit must be positive")
	}
	runs, err := e.runs.Recent(ctx, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list export runs")
	}
	return runs, nil
}

// Open returns a reader for a stored export file. The caller must close it.
func (e *Exporter) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	const op = "Exporter.Open"

	if strings.HasPrefix(key, "/") {
		return nil, storage.ObjectInfo{}, domain.Invalid(op, "Invalid export path")
	}

	rc, info, err := e.store.Get(ctx, key)
	switch {
	case storage.IsNotFound(err):
		return nil, storage.ObjectInfo{}, domain.NotFound(op, "export file", key)
	case storage.IsInvalidKey(err):
		return nil, storage.ObjectInfo{}, domain.Invalid(op, "Invalid export path")
	case err != nil:
		return nil, storage.ObjectInfo{}, domain.Internal(err, op, "Failed to open export")
	}
	return rc, info, nil
}

// Link returns a URL for a stored export file that stays valid for
// expires. S3 links are presigned; local links point at the download route.
func (e *Exporter) Link(ctx context.Context, key string, expires time.Duration) (string, error) {
	const op = "Exporter.Link"

	if strings.HasPrefix(key, "/") {
		return "", domain.Invalid(op, "Invalid export path")
	}

	ok, err := e.store.Exists(ctx, key)
	switch {
	case storage.IsInvalidKey(err):
		return "", domain.Invalid(op, "Invalid export path")
	case err != nil:
		return "", domain.Internal(err, op, "Failed to look up export")
	case !ok:
		return "", domain.NotFound(op, "export file", key)
	}

	u, err := e.store.URL(ctx, key, expires)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to create export link")
	}
	return u, nil
}

// Prune deletes stored export and report files last modified more than
// retention ago. It returns the number of files removed.
func (e *Exporter) Prune(ctx context.Context, retention time.Duration) (int, error) {
	const op = "Exporter.Prune"

	if retention <= 0 {
		return 0, domain.Invalid(op, "Retention must be positive")
	}

	objects, err := e.store.List(ctx, "")
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to list exports")
	}

	cutoff := e.now().Add(-retention)
	removed := 0
	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := e.store.Delete(ctx, obj.Key); err != nil {
			return removed, domain.Internal(err, op, "Failed to delete expired export")
		}
		removed++
	}

	if removed > 0 {
		e.logger.Info("pruned expired exports", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

func (e *Exporter) snapshot(ctx context.Context, op string) (*domain.Snapshot, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to collect export data")
	}
	snap.GeneratedAt = e.now().UTC()
	return snap, nil
}

// write runs each generator into a buffer and stores it under keyFor(g).
// Results keep the generator order.
func (e *Exporter) write(ctx context.Context, snap *domain.Snapshot, generators []Generator, keyFor func(Generator) string) ([]domain.ExportFile, error) {
	files := make([]domain.ExportFile, len(generators))

	g, gctx := errgroup.WithContext(ctx)
	for i, gen := range generators {
		g.Go(func() error {
			var buf bytes.Buffer
			size, err := gen.Generate(gctx, snap, &buf)
			if err != nil {
				return err
			}

			key := keyFor(gen)
			err = e.store.Put(gctx, key, &buf, storage.PutOptions{
				ContentType: gen.Format().ContentType(),
				Overwrite:   true,
			})
			if err != nil {
				return err
			}

			metrics.ExportGenerated(gen.Format())
			files[i] = domain.ExportFile{
				Name:   key[strings.LastIndex(key, "/")+1:],
				Key:    key,
				Format: gen.Format(),
				Size:   size,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
