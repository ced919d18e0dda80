package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfold/sibyl/internal/domain"
)

// Archiver drains aged activity entries and cycle audit records to
// month-partitioned JSONL objects, then prunes the archived activity rows
// from the primary store. Cycle audit rows are archived but kept in the
// database: they are small and the status surface reads them.
type Archiver struct {
	writer   *Writer
	activity domain.ActivityStore
	cycles   domain.CycleStore
	logger   *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer *Writer, activity domain.ActivityStore, cycles domain.CycleStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		activity: activity,
		cycles:   cycles,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveActivity uploads all activity entries older than the cutoff and
// deletes them from the store once the upload succeeded. Returns the number
// of archived entries.
func (a *Archiver) ArchiveActivity(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.activity.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive activity query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive activity marshal: %w", err)
	}

	key := archiveKey("activity", before)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive activity upload: %w", err)
	}

	pruned, err := a.activity.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(entries)), fmt.Errorf("s3blob: prune archived activity: %w", err)
	}

	a.logger.InfoContext(ctx, "activity archived",
		slog.String("key", key),
		slog.Int("entries", len(entries)),
		slog.Int64("pruned", pruned),
	)
	return int64(len(entries)), nil
}

// ArchiveCycles uploads the most recent cycle audit records for the month
// of the cutoff.
func (a *Archiver) ArchiveCycles(ctx context.Context, before time.Time) (int64, error) {
	reports, err := a.cycles.ListCycles(ctx, domain.ListOpts{Limit: 10_000})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycles query: %w", err)
	}

	var aged []domain.CycleReport
	for _, r := range reports {
		if r.FinishedAt.Before(before) {
			aged = append(aged, r)
		}
	}
	if len(aged) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(aged)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive cycles marshal: %w", err)
	}

	key := archiveKey("cycles", before)
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive cycles upload: %w", err)
	}

	a.logger.InfoContext(ctx, "cycle audits archived",
		slog.String("key", key),
		slog.Int("reports", len(aged)),
	)
	return int64(len(aged)), nil
}

// archiveKey builds the object key, partitioned by the cutoff's year-month:
//
//	archive/activity/2026-08.jsonl
//	archive/cycles/2026-08.jsonl
func archiveKey(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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
