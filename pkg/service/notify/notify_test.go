package notify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/service/notify"
	"github.com/m-mizutani/gt"
)

func TestNilService(t *testing.T) {
	ctx := context.Background()
	var svc *notify.Service

	gt.Bool(t, svc.Enabled()).False()
	gt.NoError(t, svc.NotifyPartiallyIndexed(ctx, &model.Document{ID: "doc-1"}, 2, 5))
	gt.NoError(t, svc.NotifyReconcileOutcome(ctx, 10, 3, 1, 0))
}

func TestNewValidation(t *testing.T) {
	_, err := notify.New("", "#governance-ops")
	gt.Error(t, err)

	_, err = notify.New("xoxb-token", "")
	gt.Error(t, err)

	svc, err := notify.New("xoxb-token", "#governance-ops")
	gt.NoError(t, err).Required()
	gt.Bool(t, svc.Enabled()).True()
}

func TestPartiallyIndexedMessage(t *testing.T) {
	doc := &model.Document{
		ID:           "doc-42",
		Title:        "Assembly minutes",
		SessionID:    "session-7",
		StatusDetail: "vector flush interrupted",
	}

	msg := notify.PartiallyIndexedMessage(doc, 3, 8)

	gt.Value(t, strings.Contains(msg, "doc-42")).Equal(true)
	gt.Value(t, strings.Contains(msg, "Assembly minutes")).Equal(true)
	gt.Value(t, strings.Contains(msg, "session-7")).Equal(true)
	gt.Value(t, strings.Contains(msg, "3 of 8")).Equal(true)
	gt.Value(t, strings.Contains(msg, "vector flush interrupted")).Equal(true)
	gt.Value(t, strings.Contains(msg, "reconciliation")).Equal(true)
}

func TestPartiallyIndexedMessageWithoutOptionalFields(t *testing.T) {
	doc := &model.Document{ID: "doc-9", SessionID: "session-1"}

	msg := notify.PartiallyIndexedMessage(doc, 0, 4)

	gt.Value(t, strings.Contains(msg, "doc-9")).Equal(true)
	gt.Value(t, strings.Contains(msg, "Detail:")).Equal(false)
}

func TestReconcileOutcomeMessage(t *testing.T) {
	clean := notify.ReconcileOutcomeMessage(10, 2, 1, 0)
	gt.Value(t, strings.Contains(clean, ":white_check_mark:")).Equal(true)
	gt.Value(t, strings.Contains(clean, "scanned: 10")).Equal(true)
	gt.Value(t, strings.Contains(clean, "Recovered: 2")).Equal(true)

	failing := notify.ReconcileOutcomeMessage(10, 2, 1, 3)
	gt.Value(t, strings.Contains(failing, ":warning:")).Equal(true)
	gt.Value(t, strings.Contains(failing, "Failed: 3")).Equal(true)
}
