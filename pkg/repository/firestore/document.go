package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type documentDoc struct {
	ID                 string    `firestore:"id"`
	SourceType         string    `firestore:"source_type"`
	Title              string    `firestore:"title"`
	RawText            string    `firestore:"raw_text"`
	SessionID          string    `firestore:"session_id"`
	Track              string    `firestore:"track,omitempty"`
	AuthorHash         string    `firestore:"author_hash,omitempty"`
	Topics             []string  `firestore:"topics,omitempty"`
	PrivacyLevel       string    `firestore:"privacy_level"`
	PartiallyShareable bool      `firestore:"partially_shareable"`
	QualityScore       float64   `firestore:"quality_score"`
	Status             string    `firestore:"status"`
	StatusDetail       string    `firestore:"status_detail,omitempty"`
	ChunkCount         int       `firestore:"chunk_count"`
	CreatedAt          time.Time `firestore:"created_at"`
	IndexedAt          time.Time `firestore:"indexed_at,omitempty"`
}

func documentToDoc(d *model.Document) *documentDoc {
	return &documentDoc{
		ID:                 string(d.ID),
		SourceType:         string(d.SourceType),
		Title:              d.Title,
		RawText:            d.RawText,
		SessionID:          string(d.SessionID),
		Track:              d.Track,
		AuthorHash:         d.AuthorHash,
		Topics:             d.Topics,
		PrivacyLevel:       string(d.PrivacyLevel),
		PartiallyShareable: d.PartiallyShareable,
		QualityScore:       d.QualityScore,
		Status:             string(d.Status),
		StatusDetail:       d.StatusDetail,
		ChunkCount:         d.ChunkCount,
		CreatedAt:          d.CreatedAt,
		IndexedAt:          d.IndexedAt,
	}
}

func documentToModel(doc *documentDoc) *model.Document {
	return &model.Document{
		ID:                 model.DocumentID(doc.ID),
		SourceType:         types.SourceType(doc.SourceType),
		Title:              doc.Title,
		RawText:            doc.RawText,
		SessionID:          model.SessionID(doc.SessionID),
		Track:              doc.Track,
		AuthorHash:         doc.AuthorHash,
		Topics:             doc.Topics,
		PrivacyLevel:       types.PrivacyTier(doc.PrivacyLevel),
		PartiallyShareable: doc.PartiallyShareable,
		QualityScore:       doc.QualityScore,
		Status:             types.DocumentStatus(doc.Status),
		StatusDetail:       doc.StatusDetail,
		ChunkCount:         doc.ChunkCount,
		CreatedAt:          doc.CreatedAt,
		IndexedAt:          doc.IndexedAt,
	}
}

type documentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newDocumentRepository(client *firestore.Client) *documentRepository {
	return &documentRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *documentRepository) documentsCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_documents"
	}
	return "documents"
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if doc.ID == "" {
		doc.ID = model.NewDocumentID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	docRef := r.client.Collection(r.documentsCollection()).Doc(string(doc.ID))
	stored := documentToDoc(doc)
	if _, err := docRef.Set(ctx, stored); err != nil {
		return nil, goerr.Wrap(err, "failed to create document", goerr.V("id", doc.ID))
	}

	return documentToModel(stored), nil
}

func (r *documentRepository) Get(ctx context.Context, id model.DocumentID) (*model.Document, error) {
	docRef := r.client.Collection(r.documentsCollection()).Doc(string(id))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}

	var d documentDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal document", goerr.V("id", id))
	}

	return documentToModel(&d), nil
}

func (r *documentRepository) ListBySession(ctx context.Context, session model.SessionID) ([]*model.Document, error) {
	iter := r.client.Collection(r.documentsCollection()).
		Where("session_id", "==", string(session)).
		OrderBy("created_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var documents []*model.Document
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("session", session))
		}

		var d documentDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document")
		}

		documents = append(documents, documentToModel(&d))
	}

	return documents, nil
}

func (r *documentRepository) ListByStatus(ctx context.Context, st types.DocumentStatus) ([]*model.Document, error) {
	iter := r.client.Collection(r.documentsCollection()).
		Where("status", "==", string(st)).
		Documents(ctx)
	defer iter.Stop()

	var documents []*model.Document
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("status", st))
		}

		var d documentDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document")
		}

		documents = append(documents, documentToModel(&d))
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].CreatedAt.After(documents[j].CreatedAt)
	})

	return documents, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id model.DocumentID, st types.DocumentStatus, detail string) error {
	docRef := r.client.Collection(r.documentsCollection()).Doc(string(id))

	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
		{Path: "status_detail", Value: detail},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to update document status", goerr.V("id", id))
	}

	return nil
}

func (r *documentRepository) MarkIndexed(ctx context.Context, id model.DocumentID, chunkCount int) error {
	docRef := r.client.Collection(r.documentsCollection()).Doc(string(id))

	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "status", Value: string(types.DocumentStatusIndexed)},
		{Path: "status_detail", Value: ""},
		{Path: "chunk_count", Value: chunkCount},
		{Path: "indexed_at", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to mark document indexed", goerr.V("id", id))
	}

	return nil
}

func (r *documentRepository) Delete(ctx context.Context, id model.DocumentID) error {
	docRef := r.client.Collection(r.documentsCollection()).Doc(string(id))

	_, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "document not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("id", id))
	}

	return nil
}

func (r *documentRepository) ListSessions(ctx context.Context) ([]model.SessionID, error) {
	iter := r.client.Collection(r.documentsCollection()).
		Select("session_id").
		Documents(ctx)
	defer iter.Stop()

	seen := make(map[model.SessionID]bool)
	var sessions []model.SessionID
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sessions")
		}

		var d documentDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document")
		}

		session := model.SessionID(d.SessionID)
		if session == "" || seen[session] {
			continue
		}
		seen[session] = true
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i] < sessions[j]
	})

	return sessions, nil
}
