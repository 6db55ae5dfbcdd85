package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
)

type Firestore struct {
	client      *firestore.Client
	document    *documentRepository
	chunk       *chunkRepository
	correlation *correlationRepository
	audit       *auditRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.document.collectionPrefix = prefix
		f.chunk.collectionPrefix = prefix
		f.correlation.collectionPrefix = prefix
		f.audit.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	client, err := newClient(ctx, projectID, databaseID)
	if err != nil {
		return nil, err
	}

	f := &Firestore{
		client:      client,
		document:    newDocumentRepository(client),
		chunk:       newChunkRepository(client),
		correlation: newCorrelationRepository(client),
		audit:       newAuditRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func newClient(ctx context.Context, projectID, databaseID string) (*firestore.Client, error) {
	if databaseID != "" {
		client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create firestore client",
				goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
		}
		return client, nil
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}
	return client, nil
}

func (f *Firestore) Document() interfaces.DocumentRepository {
	return f.document
}

func (f *Firestore) Chunk() interfaces.ChunkRepository {
	return f.chunk
}

func (f *Firestore) Correlation() interfaces.CorrelationRepository {
	return f.correlation
}

func (f *Firestore) Audit() interfaces.AuditRepository {
	return f.audit
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
