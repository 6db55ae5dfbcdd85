package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

type auditDoc struct {
	ID            string    `firestore:"id"`
	QueryID       string    `firestore:"query_id"`
	ChunkID       string    `firestore:"chunk_id"`
	RequesterTier string    `firestore:"requester_tier"`
	Decision      string    `firestore:"decision"`
	At            time.Time `firestore:"at"`
}

type auditRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAuditRepository(client *firestore.Client) *auditRepository {
	return &auditRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *auditRepository) auditsCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_audits"
	}
	return "audits"
}

func (r *auditRepository) Put(ctx context.Context, record *model.AuditRecord) error {
	if record.ID == "" {
		record.ID = model.NewAuditID()
	}
	if record.At.IsZero() {
		record.At = time.Now().UTC()
	}

	doc := &auditDoc{
		ID:            string(record.ID),
		QueryID:       record.QueryID,
		ChunkID:       string(record.ChunkID),
		RequesterTier: string(record.RequesterTier),
		Decision:      string(record.Decision),
		At:            record.At,
	}

	docRef := r.client.Collection(r.auditsCollection()).Doc(string(record.ID))
	if _, err := docRef.Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put audit record", goerr.V("id", record.ID))
	}

	return nil
}

func (r *auditRepository) ListByChunk(ctx context.Context, chunkID model.ChunkID, limit int) ([]*model.AuditRecord, error) {
	query := r.client.Collection(r.auditsCollection()).
		Where("chunk_id", "==", string(chunkID)).
		OrderBy("at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []*model.AuditRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate audit records", goerr.V("chunkID", chunkID))
		}

		var d auditDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal audit record")
		}

		records = append(records, &model.AuditRecord{
			ID:            model.AuditID(d.ID),
			QueryID:       d.QueryID,
			ChunkID:       model.ChunkID(d.ChunkID),
			RequesterTier: types.PrivacyTier(d.RequesterTier),
			Decision:      types.PrivacyDecision(d.Decision),
			At:            d.At,
		})
	}

	return records, nil
}
