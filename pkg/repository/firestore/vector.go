package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// vectorDoc is the Firestore representation of a vector index entry.
// Embedding is stored as firestore.Vector32 so that FindNearest works.
type vectorDoc struct {
	ChunkID   string             `firestore:"chunk_id"`
	Embedding firestore.Vector32 `firestore:"embedding"`
	SessionID string             `firestore:"session_id"`
	Track     string             `firestore:"track,omitempty"`
	CreatedAt time.Time          `firestore:"created_at"`
}

func vectorEntryToDoc(e *model.VectorEntry) *vectorDoc {
	return &vectorDoc{
		ChunkID:   string(e.ChunkID),
		Embedding: firestore.Vector32(e.Embedding),
		SessionID: string(e.SessionID),
		Track:     e.Track,
		CreatedAt: e.CreatedAt,
	}
}

func vectorDocToEntry(doc *vectorDoc) *model.VectorEntry {
	e := &model.VectorEntry{
		ChunkID:   model.ChunkID(doc.ChunkID),
		SessionID: model.SessionID(doc.SessionID),
		Track:     doc.Track,
		CreatedAt: doc.CreatedAt,
	}
	if len(doc.Embedding) > 0 {
		e.Embedding = []float32(doc.Embedding)
	}
	return e
}

// VectorIndex is the Firestore nearest-neighbor backend. Entries live in
// their own collection so that the index can be swapped for pgvector
// without touching chunk metadata.
type VectorIndex struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.VectorIndex = &VectorIndex{}

func NewVectorIndex(ctx context.Context, projectID, databaseID, collectionPrefix string) (*VectorIndex, error) {
	client, err := newClient(ctx, projectID, databaseID)
	if err != nil {
		return nil, err
	}

	return &VectorIndex{
		client:           client,
		collectionPrefix: collectionPrefix,
	}, nil
}

func (x *VectorIndex) vectorsCollection() string {
	if x.collectionPrefix != "" {
		return x.collectionPrefix + "_vectors"
	}
	return "vectors"
}

func (x *VectorIndex) Upsert(ctx context.Context, entries []*model.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now().UTC()
	bulkWriter := x.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		docRef := x.client.Collection(x.vectorsCollection()).Doc(string(e.ChunkID))
		if _, err := bulkWriter.Set(docRef, vectorEntryToDoc(e)); err != nil {
			return goerr.Wrap(err, "failed to add Set operation to bulk writer", goerr.V("chunkID", e.ChunkID))
		}
	}

	bulkWriter.Flush()

	return nil
}

// Search pushes session and track down as equality filters. KNN queries
// take no range clauses, so time bounds are applied locally after the
// fetch. Similarity is recomputed from the returned embeddings, which
// keeps the [0,1] contract independent of backend distance conventions.
func (x *VectorIndex) Search(ctx context.Context, vector []float32, limit int, filter *model.VectorFilter) ([]*model.VectorMatch, error) {
	query := x.client.Collection(x.vectorsCollection()).Query
	if filter != nil {
		if filter.SessionID != "" {
			query = query.Where("session_id", "==", string(filter.SessionID))
		}
		if filter.Track != "" {
			query = query.Where("track", "==", filter.Track)
		}
	}

	vq := query.FindNearest("embedding", firestore.Vector32(vector), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	matches := make([]*model.VectorMatch, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results")
		}

		var d vectorDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal vector entry")
		}

		entry := vectorDocToEntry(&d)
		if !filter.Matches(entry) {
			continue
		}

		matches = append(matches, &model.VectorMatch{
			ChunkID:    entry.ChunkID,
			Similarity: model.ClampSimilarity(model.CosineSimilarity(vector, entry.Embedding)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	return matches, nil
}

func (x *VectorIndex) Fetch(ctx context.Context, ids []model.ChunkID) ([]*model.VectorEntry, error) {
	if len(ids) == 0 {
		return []*model.VectorEntry{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, x.client.Collection(x.vectorsCollection()).Doc(string(id)))
	}

	docs, err := x.client.GetAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get vector entries")
	}

	result := make([]*model.VectorEntry, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var d vectorDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal vector entry", goerr.V("id", doc.Ref.ID))
		}
		result = append(result, vectorDocToEntry(&d))
	}

	return result, nil
}

func (x *VectorIndex) Delete(ctx context.Context, ids []model.ChunkID) error {
	if len(ids) == 0 {
		return nil
	}

	bulkWriter := x.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, id := range ids {
		docRef := x.client.Collection(x.vectorsCollection()).Doc(string(id))
		if _, err := bulkWriter.Delete(docRef); err != nil {
			return goerr.Wrap(err, "failed to add Delete operation to bulk writer")
		}
	}

	bulkWriter.Flush()

	return nil
}

func (x *VectorIndex) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}
