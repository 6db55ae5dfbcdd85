package archive

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
)

// Service archives raw document text in a GCS bucket so the original
// upload survives chunking and can be re-driven by reconciliation.
// Callers hold a nil *Service when no bucket is configured.
type Service struct {
	bucket *storage.BucketHandle
	name   string
}

// New creates an archive over the named GCS bucket
func New(ctx context.Context, bucketName string) (*Service, error) {
	if bucketName == "" {
		return nil, goerr.New("archive bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &Service{
		bucket: client.Bucket(bucketName),
		name:   bucketName,
	}, nil
}

// objectName is the bucket layout: one text object per document
func objectName(id model.DocumentID) string {
	return fmt.Sprintf("documents/%s.txt", id)
}

// Put stores the raw text of a document, replacing any previous copy
func (s *Service) Put(ctx context.Context, id model.DocumentID, rawText string) error {
	if s == nil {
		return nil
	}

	w := s.bucket.Object(objectName(id)).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := io.WriteString(w, rawText); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to write archive object",
			goerr.V("bucket", s.name), goerr.V("documentID", id))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize archive object",
			goerr.V("bucket", s.name), goerr.V("documentID", id))
	}

	return nil
}

// Get retrieves the archived raw text of a document
func (s *Service) Get(ctx context.Context, id model.DocumentID) (string, error) {
	if s == nil {
		return "", goerr.New("archive is not configured")
	}

	r, err := s.bucket.Object(objectName(id)).NewReader(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open archive object",
			goerr.V("bucket", s.name), goerr.V("documentID", id))
	}
	defer safe.Close(ctx, r)

	data, err := io.ReadAll(r)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read archive object",
			goerr.V("bucket", s.name), goerr.V("documentID", id))
	}

	return string(data), nil
}

// Enabled reports whether an archive bucket is configured
func (s *Service) Enabled() bool {
	return s != nil
}
