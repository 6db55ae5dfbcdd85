package privacy

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/validator"
	"github.com/govern-lab/mnemosyne/pkg/utils/async"
)

// DefaultSummaryLength is the redaction truncation length in runes.
// Redacted text is cut, not masked, so its length carries no information
// about the original.
const DefaultSummaryLength = 100

// Decide applies the tier rule to one chunk classification. Allow when
// the requester covers the classification; redact when the classification
// sits exactly one level above a requester and the chunk is flagged
// partially shareable; deny otherwise. Invalid tiers on either side
// always deny.
func Decide(requester, classification types.PrivacyTier, partiallyShareable bool) types.PrivacyDecision {
	if !requester.IsValid() || !classification.IsValid() {
		return types.PrivacyDecisionDeny
	}
	if requester.Covers(classification) {
		return types.PrivacyDecisionAllow
	}
	if partiallyShareable && classification.Level()-requester.Level() == 1 {
		return types.PrivacyDecisionRedact
	}
	return types.PrivacyDecisionDeny
}

// Filter gates retrieval results by privacy tier and records every
// decision to the audit store.
type Filter struct {
	audit      interfaces.AuditRepository
	summaryLen int
}

// Option is a functional option for Filter configuration
type Option func(*Filter)

// WithSummaryLength overrides the redaction truncation length
func WithSummaryLength(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.summaryLen = n
		}
	}
}

// New creates a Filter. A nil audit repository disables the audit trail,
// which only tests should do.
func New(audit interfaces.AuditRepository, opts ...Option) *Filter {
	f := &Filter{
		audit:      audit,
		summaryLen: DefaultSummaryLength,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply decides access for one retrieval result, fills the decision and
// any sanitized text in place, and dispatches the audit record. The
// audit write never blocks this path.
func (f *Filter) Apply(ctx context.Context, queryID string, result *model.RetrievalResult, requester types.PrivacyTier) types.PrivacyDecision {
	chunk := result.Chunk
	decision := Decide(requester, chunk.PrivacyLevel, chunk.PartiallyShareable)

	result.Decision = decision
	if decision == types.PrivacyDecisionRedact {
		result.SanitizedText = f.Redact(chunk.Text)
	}

	f.auditDecision(ctx, queryID, chunk.ID, requester, decision)
	return decision
}

// Redact strips PII substrings and truncates to the summary length
func (f *Filter) Redact(text string) string {
	stripped := validator.StripPII(text)
	runes := []rune(stripped)
	if len(runes) > f.summaryLen {
		return string(runes[:f.summaryLen])
	}
	return stripped
}

func (f *Filter) auditDecision(ctx context.Context, queryID string, chunkID model.ChunkID, requester types.PrivacyTier, decision types.PrivacyDecision) {
	if f.audit == nil {
		return
	}

	record := &model.AuditRecord{
		QueryID:       queryID,
		ChunkID:       chunkID,
		RequesterTier: requester,
		Decision:      decision,
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		return f.audit.Put(ctx, record)
	})
}
