package model

import (
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// RetrievalFilters narrows a retrieval to sessions, a track, or a date
// range. An empty filter matches everything the requester may see.
type RetrievalFilters struct {
	Sessions []SessionID
	Track    string
	Since    time.Time
	Until    time.Time
}

// Validate checks filter consistency. Violations are structural and are
// never retried.
func (f *RetrievalFilters) Validate() error {
	if f == nil {
		return nil
	}
	for _, session := range f.Sessions {
		if session == "" {
			return goerr.Wrap(ErrInvalidFilter, "session ID must not be empty")
		}
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Since.After(f.Until) {
		return goerr.Wrap(ErrInvalidFilter, "date range is reversed",
			goerr.V("since", f.Since), goerr.V("until", f.Until))
	}
	return nil
}

// VectorFilter projects the retrieval filters onto a single session scope
// for one index search.
func (f *RetrievalFilters) VectorFilter(session SessionID) *VectorFilter {
	vf := &VectorFilter{SessionID: session}
	if f != nil {
		vf.Track = f.Track
		vf.Since = f.Since
		vf.Until = f.Until
	}
	return vf
}

// QueryRequest is the input of the retrieval+synthesis entry point
type QueryRequest struct {
	Query         string
	RequesterTier types.PrivacyTier
	SessionID     SessionID
	// CrossSession widens retrieval to every indexed session when the
	// filters do not name sessions explicitly.
	CrossSession bool
	Filters      *RetrievalFilters
	Mode         types.SynthesisMode
	TopK         int
}

// DefaultTopK is applied when a query does not specify a result count
const DefaultTopK = 10

// Normalize fills defaults in place
func (q *QueryRequest) Normalize() {
	q.Mode = q.Mode.Normalize()
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
}

// Validate checks the request after normalization
func (q *QueryRequest) Validate() error {
	if q.Query == "" {
		return goerr.New("query text is required")
	}
	if !q.RequesterTier.IsValid() {
		return goerr.New("invalid requester tier", goerr.V("tier", q.RequesterTier))
	}
	if !q.Mode.IsValid() {
		return goerr.New("invalid synthesis mode", goerr.V("mode", q.Mode))
	}
	return q.Filters.Validate()
}

// Sessions resolves the session scopes of the query: explicit filter
// sessions win, then the requesting session, then nothing (meaning the
// caller resolves all sessions for cross-session mode).
func (q *QueryRequest) Sessions() []SessionID {
	if q.Filters != nil && len(q.Filters.Sessions) > 0 {
		return q.Filters.Sessions
	}
	if q.CrossSession {
		return nil
	}
	if q.SessionID != "" {
		return []SessionID{q.SessionID}
	}
	return nil
}

// RetrievalResult is one ranked, privacy-filtered retrieval hit. It is
// transient and never persisted.
type RetrievalResult struct {
	Chunk           *Chunk
	SimilarityScore float64
	Recency         float64
	WeightedScore   float64
	Decision        types.PrivacyDecision
	// SanitizedText carries the redacted copy when Decision is redact
	SanitizedText string
	OriginSession SessionID
}

// DisplayText returns the text a requester at the filtered tier may see
func (r *RetrievalResult) DisplayText() string {
	if r.Decision == types.PrivacyDecisionRedact {
		return r.SanitizedText
	}
	return r.Chunk.Text
}
