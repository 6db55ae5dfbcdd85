package privacy_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/gt"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/repository/memory"
	"github.com/govern-lab/mnemosyne/pkg/service/privacy"
)

func TestDecide(t *testing.T) {
	t.Run("tier matrix", func(t *testing.T) {
		for _, requester := range types.AllPrivacyTiers() {
			for _, classification := range types.AllPrivacyTiers() {
				gap := classification.Level() - requester.Level()

				got := privacy.Decide(requester, classification, false)
				if gap <= 0 {
					gt.Value(t, got).Equal(types.PrivacyDecisionAllow)
				} else {
					gt.Value(t, got).Equal(types.PrivacyDecisionDeny)
				}

				got = privacy.Decide(requester, classification, true)
				switch {
				case gap <= 0:
					gt.Value(t, got).Equal(types.PrivacyDecisionAllow)
				case gap == 1:
					gt.Value(t, got).Equal(types.PrivacyDecisionRedact)
				default:
					gt.Value(t, got).Equal(types.PrivacyDecisionDeny)
				}
			}
		}
	})

	t.Run("invalid tiers always deny", func(t *testing.T) {
		got := privacy.Decide(types.PrivacyTier("root"), types.PrivacyTierMinimal, true)
		gt.Value(t, got).Equal(types.PrivacyDecisionDeny)

		got = privacy.Decide(types.PrivacyTierMaximum, types.PrivacyTier(""), true)
		gt.Value(t, got).Equal(types.PrivacyDecisionDeny)
	})
}

func newResult(tier types.PrivacyTier, partiallyShareable bool, text string) *model.RetrievalResult {
	return &model.RetrievalResult{
		Chunk: &model.Chunk{
			ID:                 model.NewChunkID(text),
			Text:               text,
			SessionID:          "session-privacy",
			PrivacyLevel:       tier,
			PartiallyShareable: partiallyShareable,
		},
		SimilarityScore: 0.9,
	}
}

func waitForAudit(t *testing.T, repo *memory.Memory, chunkID model.ChunkID) *model.AuditRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		records, err := repo.Audit().ListByChunk(context.Background(), chunkID, 10)
		gt.NoError(t, err).Required()
		if len(records) > 0 {
			return records[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("audit record never arrived")
	return nil
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed result keeps its text", func(t *testing.T) {
		repo := memory.New()
		f := privacy.New(repo.Audit())
		result := newResult(types.PrivacyTierSelective, false, "the budget line was approved")

		decision := f.Apply(ctx, "query-1", result, types.PrivacyTierHigh)
		gt.Value(t, decision).Equal(types.PrivacyDecisionAllow)
		gt.Value(t, result.Decision).Equal(types.PrivacyDecisionAllow)
		gt.S(t, result.DisplayText()).Equal("the budget line was approved")
	})

	t.Run("one level above with partial sharing redacts", func(t *testing.T) {
		repo := memory.New()
		f := privacy.New(repo.Audit())
		longText := "The delegate asked the secretariat to contact chair@example.org about the revised allocation " +
			strings.Repeat("and the follow-up schedule for member review ", 4)
		result := newResult(types.PrivacyTierHigh, true, longText)

		decision := f.Apply(ctx, "query-2", result, types.PrivacyTierSelective)
		gt.Value(t, decision).Equal(types.PrivacyDecisionRedact)
		gt.Number(t, utf8.RuneCountInString(result.SanitizedText)).LessOrEqual(privacy.DefaultSummaryLength)
		gt.Bool(t, strings.Contains(result.SanitizedText, "@")).False()
		gt.S(t, result.DisplayText()).Equal(result.SanitizedText)
	})

	t.Run("more than one level above denies", func(t *testing.T) {
		repo := memory.New()
		f := privacy.New(repo.Audit())
		result := newResult(types.PrivacyTierMaximum, true, "closed-door remarks")

		decision := f.Apply(ctx, "query-3", result, types.PrivacyTierSelective)
		gt.Value(t, decision).Equal(types.PrivacyDecisionDeny)
		gt.S(t, result.SanitizedText).Equal("")
	})

	t.Run("every decision lands in the audit store", func(t *testing.T) {
		repo := memory.New()
		f := privacy.New(repo.Audit())
		result := newResult(types.PrivacyTierMaximum, false, "restricted minutes")

		f.Apply(ctx, "query-4", result, types.PrivacyTierMinimal)

		record := waitForAudit(t, repo, result.Chunk.ID)
		gt.Value(t, record.QueryID).Equal("query-4")
		gt.Value(t, record.RequesterTier).Equal(types.PrivacyTierMinimal)
		gt.Value(t, record.Decision).Equal(types.PrivacyDecisionDeny)
	})

	t.Run("missing audit store does not block filtering", func(t *testing.T) {
		f := privacy.New(nil)
		result := newResult(types.PrivacyTierMinimal, false, "open notes")

		decision := f.Apply(ctx, "query-5", result, types.PrivacyTierMinimal)
		gt.Value(t, decision).Equal(types.PrivacyDecisionAllow)
	})
}

func TestRedact(t *testing.T) {
	f := privacy.New(nil, privacy.WithSummaryLength(20))

	t.Run("strips PII before truncating", func(t *testing.T) {
		out := f.Redact("call 555-123-4567 now")
		gt.Bool(t, strings.Contains(out, "4567")).False()
		gt.Bool(t, strings.Contains(out, "[REDACTED]")).True()
	})

	t.Run("short clean text passes through", func(t *testing.T) {
		gt.S(t, f.Redact("brief note")).Equal("brief note")
	})

	t.Run("truncation counts runes", func(t *testing.T) {
		out := f.Redact(strings.Repeat("議", 40))
		gt.Value(t, utf8.RuneCountInString(out)).Equal(20)
	})
}
