package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
)

// EvaluationArchiveStore is the narrow read surface the archiver needs from
// the screening history store.
type EvaluationArchiveStore interface {
	// ListBefore returns all evaluations recorded strictly before the given
	// cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.EvalResult, error)
}

// ArchiveImpl implements domain.Archiver by querying the evaluation store
// for old records, serializing them to JSONL, and uploading the result to
// S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here; that is a separate, explicit step to be executed after
// the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	evals  EvaluationArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, evals EvaluationArchiveStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		evals:  evals,
		audit:  audit,
	}
}

// ArchiveEvaluations queries all evaluations before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at
// archive/evaluations/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveEvaluations(ctx context.Context, before time.Time) (int64, error) {
	evals, err := a.evals.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive evaluations query: %w", err)
	}
	if len(evals) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(evals)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive evaluations marshal: %w", err)
	}

	path := archivePath("evaluations", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive evaluations upload: %w", err)
	}

	count := int64(len(evals))

	if err := a.audit.Log(ctx, "archive.evaluations", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive evaluations audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/evaluations/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
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
