package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// chunkDoc is the Firestore representation of a chunk row. The embedding
// rides along so reconciliation can restore a lost vector without calling
// the embedder again; nearest-neighbor search still runs on the vectors
// collection only.
type chunkDoc struct {
	ID                 string            `firestore:"id"`
	DocumentID         string            `firestore:"document_id"`
	Text               string            `firestore:"text"`
	Position           int               `firestore:"position"`
	TokenCount         int               `firestore:"token_count"`
	SessionID          string            `firestore:"session_id"`
	PrivacyLevel       string            `firestore:"privacy_level"`
	PartiallyShareable bool              `firestore:"partially_shareable"`
	QualityScore       float64           `firestore:"quality_score"`
	Embedding          []float32         `firestore:"embedding,omitempty"`
	Metadata           map[string]string `firestore:"metadata,omitempty"`
	CreatedAt          time.Time         `firestore:"created_at"`
}

func chunkToDoc(c *model.Chunk) *chunkDoc {
	return &chunkDoc{
		ID:                 string(c.ID),
		DocumentID:         string(c.DocumentID),
		Text:               c.Text,
		Position:           c.Position,
		TokenCount:         c.TokenCount,
		SessionID:          string(c.SessionID),
		PrivacyLevel:       string(c.PrivacyLevel),
		PartiallyShareable: c.PartiallyShareable,
		QualityScore:       c.QualityScore,
		Embedding:          c.Embedding,
		Metadata:           c.Metadata,
		CreatedAt:          c.CreatedAt,
	}
}

func chunkToModel(doc *chunkDoc) *model.Chunk {
	return &model.Chunk{
		ID:                 model.ChunkID(doc.ID),
		DocumentID:         model.DocumentID(doc.DocumentID),
		Text:               doc.Text,
		Position:           doc.Position,
		TokenCount:         doc.TokenCount,
		SessionID:          model.SessionID(doc.SessionID),
		PrivacyLevel:       types.PrivacyTier(doc.PrivacyLevel),
		PartiallyShareable: doc.PartiallyShareable,
		QualityScore:       doc.QualityScore,
		Embedding:          doc.Embedding,
		Metadata:           doc.Metadata,
		CreatedAt:          doc.CreatedAt,
	}
}

type chunkRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newChunkRepository(client *firestore.Client) *chunkRepository {
	return &chunkRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *chunkRepository) chunksCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_chunks"
	}
	return "chunks"
}

func (r *chunkRepository) PutBatch(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		docRef := r.client.Collection(r.chunksCollection()).Doc(string(c.ID))
		if _, err := bulkWriter.Set(docRef, chunkToDoc(c)); err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("chunkID", c.ID))
		}
	}

	bulkWriter.Flush()

	return nil
}

func (r *chunkRepository) Get(ctx context.Context, id model.ChunkID) (*model.Chunk, error) {
	docRef := r.client.Collection(r.chunksCollection()).Doc(string(id))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "chunk not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get chunk", goerr.V("id", id))
	}

	var d chunkDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal chunk", goerr.V("id", id))
	}

	return chunkToModel(&d), nil
}

func (r *chunkRepository) GetBatch(ctx context.Context, ids []model.ChunkID) ([]*model.Chunk, error) {
	if len(ids) == 0 {
		return []*model.Chunk{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection(r.chunksCollection()).Doc(string(id)))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get chunks")
	}

	result := make([]*model.Chunk, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var d chunkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chunk", goerr.V("id", doc.Ref.ID))
		}
		result = append(result, chunkToModel(&d))
	}

	return result, nil
}

func (r *chunkRepository) ListByDocument(ctx context.Context, docID model.DocumentID) ([]*model.Chunk, error) {
	iter := r.client.Collection(r.chunksCollection()).
		Where("document_id", "==", string(docID)).
		OrderBy("position", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var chunks []*model.Chunk
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chunks", goerr.V("documentID", docID))
		}

		var d chunkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chunk")
		}

		chunks = append(chunks, chunkToModel(&d))
	}

	return chunks, nil
}

func (r *chunkRepository) ListBySession(ctx context.Context, session model.SessionID, limit int) ([]*model.Chunk, error) {
	query := r.client.Collection(r.chunksCollection()).
		Where("session_id", "==", string(session)).
		OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var chunks []*model.Chunk
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chunks", goerr.V("session", session))
		}

		var d chunkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chunk")
		}

		chunks = append(chunks, chunkToModel(&d))
	}

	return chunks, nil
}

func (r *chunkRepository) DeleteByDocument(ctx context.Context, docID model.DocumentID) ([]model.ChunkID, error) {
	iter := r.client.Collection(r.chunksCollection()).
		Where("document_id", "==", string(docID)).
		Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	var deleted []model.ChunkID
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chunks for deletion", goerr.V("documentID", docID))
		}
		refs = append(refs, doc.Ref)
		deleted = append(deleted, model.ChunkID(doc.Ref.ID))
	}

	if len(refs) == 0 {
		return nil, nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, ref := range refs {
		if _, err := bulkWriter.Delete(ref); err != nil {
			return nil, goerr.Wrap(err, "failed to add Delete operation to bulk writer")
		}
	}

	bulkWriter.Flush()

	return deleted, nil
}
