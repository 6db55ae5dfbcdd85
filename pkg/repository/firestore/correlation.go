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

// arrayContainsAnyLimit is the Firestore cap on values per
// array-contains-any clause.
const arrayContainsAnyLimit = 30

type correlationEdgeDoc struct {
	SourceChunkID string  `firestore:"source_chunk_id"`
	TargetChunkID string  `firestore:"target_chunk_id"`
	RelationType  string  `firestore:"relation_type"`
	Confidence    float64 `firestore:"confidence"`
	SessionA      string  `firestore:"session_a"`
	SessionB      string  `firestore:"session_b"`
}

type correlationSetDoc struct {
	Key       string               `firestore:"key"`
	Edges     []correlationEdgeDoc `firestore:"edges"`
	ChunkIDs  []string             `firestore:"chunk_ids"`
	CreatedAt time.Time            `firestore:"created_at"`
}

func correlationSetToDoc(s *model.CorrelationSet) *correlationSetDoc {
	doc := &correlationSetDoc{
		Key:       string(s.Key),
		CreatedAt: s.CreatedAt,
	}
	for _, e := range s.Edges {
		doc.Edges = append(doc.Edges, correlationEdgeDoc{
			SourceChunkID: string(e.SourceChunkID),
			TargetChunkID: string(e.TargetChunkID),
			RelationType:  string(e.RelationType),
			Confidence:    e.Confidence,
			SessionA:      string(e.SessionPair[0]),
			SessionB:      string(e.SessionPair[1]),
		})
	}
	for _, id := range s.ChunkIDs {
		doc.ChunkIDs = append(doc.ChunkIDs, string(id))
	}
	return doc
}

func correlationSetToModel(doc *correlationSetDoc) *model.CorrelationSet {
	set := &model.CorrelationSet{
		Key:       model.CorrelationKey(doc.Key),
		CreatedAt: doc.CreatedAt,
	}
	for _, e := range doc.Edges {
		set.Edges = append(set.Edges, model.CorrelationEdge{
			SourceChunkID: model.ChunkID(e.SourceChunkID),
			TargetChunkID: model.ChunkID(e.TargetChunkID),
			RelationType:  types.RelationType(e.RelationType),
			Confidence:    e.Confidence,
			SessionPair:   [2]model.SessionID{model.SessionID(e.SessionA), model.SessionID(e.SessionB)},
		})
	}
	for _, id := range doc.ChunkIDs {
		set.ChunkIDs = append(set.ChunkIDs, model.ChunkID(id))
	}
	return set
}

type correlationRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newCorrelationRepository(client *firestore.Client) *correlationRepository {
	return &correlationRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *correlationRepository) correlationsCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_correlations"
	}
	return "correlations"
}

func (r *correlationRepository) GetSet(ctx context.Context, key model.CorrelationKey) (*model.CorrelationSet, error) {
	docRef := r.client.Collection(r.correlationsCollection()).Doc(string(key))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "correlation set not found", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to get correlation set", goerr.V("key", key))
	}

	var d correlationSetDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal correlation set", goerr.V("key", key))
	}

	return correlationSetToModel(&d), nil
}

func (r *correlationRepository) PutSet(ctx context.Context, set *model.CorrelationSet) error {
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	docRef := r.client.Collection(r.correlationsCollection()).Doc(string(set.Key))
	if _, err := docRef.Set(ctx, correlationSetToDoc(set)); err != nil {
		return goerr.Wrap(err, "failed to put correlation set", goerr.V("key", set.Key))
	}

	return nil
}

func (r *correlationRepository) InvalidateByChunks(ctx context.Context, ids []model.ChunkID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, string(id))
	}

	// array-contains-any caps the value list, so probe in slices and
	// dedupe sets matched by more than one slice.
	stale := make(map[string]*firestore.DocumentRef)
	for start := 0; start < len(values); start += arrayContainsAnyLimit {
		end := start + arrayContainsAnyLimit
		if end > len(values) {
			end = len(values)
		}

		iter := r.client.Collection(r.correlationsCollection()).
			Where("chunk_ids", "array-contains-any", values[start:end]).
			Documents(ctx)

		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return 0, goerr.Wrap(err, "failed to query stale correlation sets")
			}
			stale[doc.Ref.ID] = doc.Ref
		}
		iter.Stop()
	}

	if len(stale) == 0 {
		return 0, nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	for _, ref := range stale {
		if _, err := bulkWriter.Delete(ref); err != nil {
			return 0, goerr.Wrap(err, "failed to add Delete operation to bulk writer")
		}
	}

	bulkWriter.Flush()

	return len(stale), nil
}
