package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// DefaultArchiveBatch is the number of snapshots written per archive object.
const DefaultArchiveBatch = 5000

// snapshotSource is the slice of domain.SnapshotStore the archiver needs.
type snapshotSource interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.PnLSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time, maxID int64) (int64, error)
}

// existsChecker is the slice of domain.BlobReader the archiver needs.
type existsChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver implements domain.SnapshotArchiver. Snapshots older than the
// cutoff are written to JSONL objects under archive/snapshots/ and removed
// from the database only after their object is uploaded.
type Archiver struct {
	writer    domain.BlobWriter
	reader    existsChecker
	snapshots snapshotSource
	audit     domain.AuditStore
	batch     int
	logger    *slog.Logger
}

var _ domain.SnapshotArchiver = (*Archiver)(nil)

// NewArchiver creates an Archiver. A batch below 1 uses DefaultArchiveBatch.
func NewArchiver(
	writer domain.BlobWriter,
	reader existsChecker,
	snapshots snapshotSource,
	audit domain.AuditStore,
	batch int,
	logger *slog.Logger,
) *Archiver {
	if batch < 1 {
		batch = DefaultArchiveBatch
	}
	return &Archiver{
		writer:    writer,
		reader:    reader,
		snapshots: snapshots,
		audit:     audit,
		batch:     batch,
		logger:    logger.With(slog.String("component", "snapshot_archiver")),
	}
}

// ArchiveSnapshots moves every snapshot older than before to object storage
// and returns how many rows were removed from the database.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	part := 1

	for {
		snaps, err := a.snapshots.ListBefore(ctx, before, a.batch)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots query: %w", err)
		}
		if len(snaps) == 0 {
			break
		}

		buf, err := marshalJSONL(snaps)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
		}

		path, next, err := a.freePath(ctx, before, part)
		if err != nil {
			return total, err
		}
		part = next

		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
		}

		maxID := snaps[len(snaps)-1].ID
		deleted, err := a.snapshots.DeleteBefore(ctx, before, maxID)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots delete: %w", err)
		}
		total += deleted

		a.logger.InfoContext(ctx, "snapshot batch archived",
			slog.String("path", path),
			slog.Int("count", len(snaps)),
			slog.Int64("deleted", deleted),
		)

		if err := a.audit.Log(ctx, "archive.snapshots", map[string]any{
			"path":   path,
			"count":  len(snaps),
			"max_id": maxID,
			"before": before.UTC().Format(time.RFC3339),
		}); err != nil {
			return total, fmt.Errorf("s3blob: archive snapshots audit log: %w", err)
		}

		if len(snaps) < a.batch {
			break
		}
	}

	return total, nil
}

// freePath returns the first archive path at or after part that is not
// already taken, plus the part number to try next.
func (a *Archiver) freePath(ctx context.Context, before time.Time, part int) (string, int, error) {
	for {
		path := archivePath("snapshots", before, part)
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return "", part, fmt.Errorf("s3blob: archive snapshots: %w", err)
		}
		if !exists {
			return path, part + 1, nil
		}
		part++
	}
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff:
//
//	archive/snapshots/2026-01.jsonl
//	archive/snapshots/2026-01.part2.jsonl
func archivePath(kind string, before time.Time, part int) string {
	month := before.UTC().Format("2006-01")
	if part <= 1 {
		return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
	}
	return fmt.Sprintf("archive/%s/%s.part%d.jsonl", kind, month, part)
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
