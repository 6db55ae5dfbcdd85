package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Pipeline error taxonomy. Callers branch with errors.Is; the HTTP layer
// and CLI map each sentinel to a stable code via ErrorCode.
var (
	// ErrRejectedLowQuality marks documents whose quality score fell
	// below the ingest threshold. Structural, never retried.
	ErrRejectedLowQuality = goerr.New("document rejected for low quality")

	// ErrEmbeddingFailed marks a chunk batch whose embedding calls
	// exhausted their retries.
	ErrEmbeddingFailed = goerr.New("embedding generation failed")

	// ErrPartiallyIndexed marks a document whose flush landed on only
	// one side (vectors or metadata) and whose rollback also failed.
	// Always surfaced to the reconciliation path, never dropped.
	ErrPartiallyIndexed = goerr.New("document partially indexed")

	// ErrPrivacyDenied means no retrieval result survived the privacy
	// filter. Distinct from degradation so callers can tell "nothing
	// you may see" from "system broken".
	ErrPrivacyDenied = goerr.New("no results eligible under privacy tier")

	// ErrSynthesisUnavailable means every configured generation provider
	// failed. No partial answer is ever returned alongside it.
	ErrSynthesisUnavailable = goerr.New("answer synthesis unavailable")

	// ErrProviderTimeout marks a provider call that exceeded its
	// deadline. Transient, retried with bounded backoff before
	// surfacing.
	ErrProviderTimeout = goerr.New("provider call timed out")

	// ErrInvalidFilter marks retrieval filters that can never match:
	// reversed date ranges, empty session IDs. Surfaced immediately,
	// never retried.
	ErrInvalidFilter = goerr.New("invalid retrieval filter")
)

// errorCodes maps taxonomy sentinels to their wire codes
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRejectedLowQuality, "rejected_low_quality"},
	{ErrEmbeddingFailed, "embedding_failed"},
	{ErrPartiallyIndexed, "partially_indexed"},
	{ErrPrivacyDenied, "privacy_denied"},
	{ErrSynthesisUnavailable, "synthesis_unavailable"},
	{ErrProviderTimeout, "provider_timeout"},
	{ErrInvalidFilter, "invalid_filter"},
}

// ErrorCode resolves the taxonomy code for an error chain. Unclassified
// errors yield an empty string.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}

// Context keys for error values
const (
	DocumentIDKey = "document_id"
	ChunkIDKey    = "chunk_id"
	SessionIDKey  = "session_id"
	QueryIDKey    = "query_id"
)
