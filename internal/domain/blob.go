package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter stores an object in blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
}

// Archiver moves aged screening history out of the primary store into blob
// storage. It returns the number of archived records; deleting the archived
// rows is a separate, explicit step performed by the caller after the upload
// has succeeded.
type Archiver interface {
	ArchiveEvaluations(ctx context.Context, before time.Time) (int64, error)
}
