package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/model/auth"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
	"github.com/govern-lab/mnemosyne/pkg/utils/errutil"
	"github.com/m-mizutani/goerr/v2"
)

// statusForError maps the pipeline error taxonomy onto HTTP status codes.
// Unclassified errors are internal failures.
func statusForError(err error) (int, string) {
	code := model.ErrorCode(err)
	switch code {
	case "invalid_filter":
		return http.StatusBadRequest, code
	case "rejected_low_quality":
		return http.StatusUnprocessableEntity, code
	case "embedding_failed", "synthesis_unavailable":
		return http.StatusBadGateway, code
	case "provider_timeout":
		return http.StatusGatewayTimeout, code
	case "privacy_denied":
		return http.StatusForbidden, code
	}
	return http.StatusInternalServerError, code
}

type queryRequest struct {
	Query        string    `json:"query"`
	SessionID    string    `json:"sessionId,omitempty"`
	Sessions     []string  `json:"sessions,omitempty"`
	CrossSession bool      `json:"crossSession,omitempty"`
	Track        string    `json:"track,omitempty"`
	Since        time.Time `json:"since,omitempty"`
	Until        time.Time `json:"until,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	TopK         int       `json:"topK,omitempty"`
}

type resultResponse struct {
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId"`
	SessionID  string  `json:"sessionId"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
	Decision   string  `json:"decision"`
}

type queryResponse struct {
	QueryID             string           `json:"queryId"`
	Answer              string           `json:"answer,omitempty"`
	Citations           []model.Citation `json:"citations,omitempty"`
	Confidence          float64          `json:"confidence,omitempty"`
	Provider            string           `json:"provider,omitempty"`
	Mode                string           `json:"mode,omitempty"`
	Redacted            bool             `json:"redacted,omitempty"`
	Results             []resultResponse `json:"results"`
	CandidateCount      int              `json:"candidateCount"`
	DeniedCount         int              `json:"deniedCount"`
	NoAccessibleResults bool             `json:"noAccessibleResults,omitempty"`
	Message             string           `json:"message,omitempty"`
}

// queryHandler runs retrieval+synthesis for the authenticated requester.
// A query where the privacy filter denied every candidate is a successful
// response with an explicit no-accessible-results payload, not an error.
func queryHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := auth.RequesterFromContext(r.Context())
		if !ok {
			errutil.HandleHTTP(r.Context(), w, goerr.New("requester identity missing"), http.StatusUnauthorized, "")
			return
		}

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest, "")
			return
		}
		if req.Query == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("query text is required"), http.StatusBadRequest, "")
			return
		}
		mode := types.SynthesisMode(req.Mode).Normalize()
		if !mode.IsValid() {
			errutil.HandleHTTP(r.Context(), w, goerr.New("invalid synthesis mode", goerr.V("mode", req.Mode)), http.StatusBadRequest, "")
			return
		}

		queryReq := &model.QueryRequest{
			Query:         req.Query,
			RequesterTier: requester.Tier,
			SessionID:     model.SessionID(req.SessionID),
			CrossSession:  req.CrossSession,
			Mode:          mode,
			TopK:          req.TopK,
		}
		if len(req.Sessions) > 0 || req.Track != "" || !req.Since.IsZero() || !req.Until.IsZero() {
			filters := &model.RetrievalFilters{
				Track: req.Track,
				Since: req.Since,
				Until: req.Until,
			}
			for _, session := range req.Sessions {
				filters.Sessions = append(filters.Sessions, model.SessionID(session))
			}
			queryReq.Filters = filters
		}

		out, err := uc.Query.Query(r.Context(), queryReq)
		if err != nil && !errors.Is(err, model.ErrPrivacyDenied) {
			status, code := statusForError(err)
			errutil.HandleHTTP(r.Context(), w, err, status, code)
			return
		}

		resp := queryResponse{
			QueryID:        out.QueryID,
			Results:        make([]resultResponse, 0, len(out.Results)),
			CandidateCount: out.CandidateCount,
			DeniedCount:    out.DeniedCount,
		}
		if out.NoAccessibleResults {
			resp.NoAccessibleResults = true
			resp.Message = "no accessible results for your privacy tier"
		}
		for _, result := range out.Results {
			resp.Results = append(resp.Results, resultResponse{
				ChunkID:    string(result.Chunk.ID),
				DocumentID: string(result.Chunk.DocumentID),
				SessionID:  result.OriginSession.String(),
				Text:       result.DisplayText(),
				Similarity: result.SimilarityScore,
				Score:      result.WeightedScore,
				Decision:   result.Decision.String(),
			})
		}
		if out.Answer != nil {
			resp.Answer = out.Answer.Text
			resp.Citations = out.Answer.Citations
			resp.Confidence = out.Answer.Confidence
			resp.Provider = out.Answer.Provider
			resp.Mode = out.Answer.Mode.String()
			resp.Redacted = out.Answer.Redacted
		}

		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

type ingestRequest struct {
	Title              string   `json:"title,omitempty"`
	Text               string   `json:"text"`
	SessionID          string   `json:"sessionId"`
	Track              string   `json:"track,omitempty"`
	Author             string   `json:"author,omitempty"`
	Topics             []string `json:"topics,omitempty"`
	PrivacyLevel       string   `json:"privacyLevel,omitempty"`
	PartiallyShareable bool     `json:"partiallyShareable,omitempty"`
}

type documentResponse struct {
	ID                 string     `json:"id"`
	SourceType         string     `json:"sourceType"`
	Title              string     `json:"title,omitempty"`
	SessionID          string     `json:"sessionId"`
	Track              string     `json:"track,omitempty"`
	AuthorHash         string     `json:"authorHash,omitempty"`
	Topics             []string   `json:"topics,omitempty"`
	PrivacyLevel       string     `json:"privacyLevel"`
	PartiallyShareable bool       `json:"partiallyShareable"`
	QualityScore       float64    `json:"qualityScore"`
	Status             string     `json:"status"`
	StatusDetail       string     `json:"statusDetail,omitempty"`
	ChunkCount         int        `json:"chunkCount"`
	CreatedAt          time.Time  `json:"createdAt"`
	IndexedAt          *time.Time `json:"indexedAt,omitempty"`
}

// toDocumentResponse maps a document to its wire form. The raw text never
// leaves through the API; retrieval is the only read path for content and
// it runs through the privacy filter.
func toDocumentResponse(doc *model.Document) documentResponse {
	resp := documentResponse{
		ID:                 string(doc.ID),
		SourceType:         doc.SourceType.String(),
		Title:              doc.Title,
		SessionID:          doc.SessionID.String(),
		Track:              doc.Track,
		AuthorHash:         doc.AuthorHash,
		Topics:             doc.Topics,
		PrivacyLevel:       doc.PrivacyLevel.String(),
		PartiallyShareable: doc.PartiallyShareable,
		QualityScore:       doc.QualityScore,
		Status:             doc.Status.String(),
		StatusDetail:       doc.StatusDetail,
		ChunkCount:         doc.ChunkCount,
		CreatedAt:          doc.CreatedAt,
	}
	if !doc.IndexedAt.IsZero() {
		indexedAt := doc.IndexedAt
		resp.IndexedAt = &indexedAt
	}
	return resp
}

type ingestResponse struct {
	Document   documentResponse `json:"document"`
	ChunkCount int              `json:"chunkCount"`
	Code       string           `json:"code,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// ingestHandler accepts a document for the full ingestion pipeline. A
// quality rejection still stores the document; the response reports it
// with the rejection reason instead of a bare error.
func ingestHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest, "")
			return
		}
		if req.Text == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("document text is required"), http.StatusBadRequest, "")
			return
		}
		if req.SessionID == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("session ID is required"), http.StatusBadRequest, "")
			return
		}
		if req.PrivacyLevel != "" {
			if _, err := types.ParsePrivacyTier(req.PrivacyLevel); err != nil {
				errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest, "")
				return
			}
		}

		input := usecase.IngestInput{
			Title:              req.Title,
			Text:               req.Text,
			SourceType:         types.SourceTypeUpload,
			SessionID:          model.SessionID(req.SessionID),
			Track:              req.Track,
			Author:             req.Author,
			Topics:             req.Topics,
			PrivacyLevel:       types.PrivacyTier(req.PrivacyLevel),
			PartiallyShareable: req.PartiallyShareable,
		}

		result, err := uc.Ingest.Ingest(r.Context(), input)
		if err != nil {
			if errors.Is(err, model.ErrRejectedLowQuality) && result != nil {
				writeJSON(r.Context(), w, http.StatusUnprocessableEntity, ingestResponse{
					Document: toDocumentResponse(result.Document),
					Code:     model.ErrorCode(err),
					Reason:   result.RejectedReason,
				})
				return
			}
			status, code := statusForError(err)
			errutil.HandleHTTP(r.Context(), w, err, status, code)
			return
		}

		writeJSON(r.Context(), w, http.StatusCreated, ingestResponse{
			Document:   toDocumentResponse(result.Document),
			ChunkCount: result.ChunkCount,
		})
	}
}

// getDocumentHandler returns document metadata by ID
func getDocumentHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "documentID")
		doc, err := uc.Ingest.GetDocument(r.Context(), model.DocumentID(id))
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound, "")
				return
			}
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError, "")
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, toDocumentResponse(doc))
	}
}

// deleteDocumentHandler removes a document with its chunks and vectors
func deleteDocumentHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "documentID")
		if err := uc.Ingest.DeleteDocument(r.Context(), model.DocumentID(id)); err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				errutil.HandleHTTP(r.Context(), w, err, http.StatusNotFound, "")
				return
			}
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError, "")
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
	}
}

type correlateRequest struct {
	SessionA       string `json:"sessionA"`
	SessionB       string `json:"sessionB"`
	TopKPerSession int    `json:"topKPerSession,omitempty"`
}

type edgeResponse struct {
	SourceChunkID string  `json:"sourceChunkId"`
	TargetChunkID string  `json:"targetChunkId"`
	RelationType  string  `json:"relationType"`
	Confidence    float64 `json:"confidence"`
}

type correlateResponse struct {
	SessionA    string         `json:"sessionA"`
	SessionB    string         `json:"sessionB"`
	ChunkCountA int            `json:"chunkCountA"`
	ChunkCountB int            `json:"chunkCountB"`
	Edges       []edgeResponse `json:"edges"`
}

// correlateHandler relates the knowledge of two research sessions
func correlateHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req correlateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest, "")
			return
		}

		out, err := uc.Correlate.CorrelateSessions(r.Context(),
			model.SessionID(req.SessionA), model.SessionID(req.SessionB), req.TopKPerSession)
		if err != nil {
			status, code := statusForError(err)
			errutil.HandleHTTP(r.Context(), w, err, status, code)
			return
		}

		resp := correlateResponse{
			SessionA:    out.SessionA.String(),
			SessionB:    out.SessionB.String(),
			ChunkCountA: out.ChunkCountA,
			ChunkCountB: out.ChunkCountB,
			Edges:       make([]edgeResponse, 0, len(out.Edges)),
		}
		for _, edge := range out.Edges {
			resp.Edges = append(resp.Edges, edgeResponse{
				SourceChunkID: string(edge.SourceChunkID),
				TargetChunkID: string(edge.TargetChunkID),
				RelationType:  edge.RelationType.String(),
				Confidence:    edge.Confidence,
			})
		}

		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}
