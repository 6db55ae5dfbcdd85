package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

// Service posts operator-facing notifications to a Slack channel. A nil
// *Service is a no-op, for deployments without Slack configured.
type Service struct {
	api     *slack.Client
	channel string
}

// New creates a new notifier with the provided bot token and channel
func New(token, channel string) (*Service, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	if channel == "" {
		return nil, goerr.New("Slack channel is required")
	}

	return &Service{
		api:     slack.New(token),
		channel: channel,
	}, nil
}

// Enabled reports whether a Slack destination is configured
func (s *Service) Enabled() bool {
	return s != nil
}

// NotifyPartiallyIndexed reports a document whose vectors landed only
// partially, so an operator sees it before reconciliation retries.
func (s *Service) NotifyPartiallyIndexed(ctx context.Context, doc *model.Document, indexed, expected int) error {
	if s == nil {
		return nil
	}

	return s.post(ctx, PartiallyIndexedMessage(doc, indexed, expected))
}

// NotifyReconcileOutcome reports the result of one reconciliation sweep
func (s *Service) NotifyReconcileOutcome(ctx context.Context, scanned, recovered, rolledBack, failed int) error {
	if s == nil {
		return nil
	}

	return s.post(ctx, ReconcileOutcomeMessage(scanned, recovered, rolledBack, failed))
}

func (s *Service) post(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post Slack message",
			goerr.V("channel", s.channel))
	}
	return nil
}

// PartiallyIndexedMessage builds the mrkdwn body for a partial-index alert
func PartiallyIndexedMessage(doc *model.Document, indexed, expected int) string {
	var sb strings.Builder

	sb.WriteString(":warning: *Document partially indexed*\n")
	fmt.Fprintf(&sb, "• Document: `%s`", doc.ID)
	if doc.Title != "" {
		fmt.Fprintf(&sb, " (%s)", doc.Title)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "• Session: `%s`\n", doc.SessionID)
	fmt.Fprintf(&sb, "• Chunks indexed: %d of %d\n", indexed, expected)
	if doc.StatusDetail != "" {
		fmt.Fprintf(&sb, "• Detail: %s\n", doc.StatusDetail)
	}
	sb.WriteString("The reconciliation worker will retry the missing chunks.")

	return sb.String()
}

// ReconcileOutcomeMessage builds the mrkdwn body for a sweep summary
func ReconcileOutcomeMessage(scanned, recovered, rolledBack, failed int) string {
	var sb strings.Builder

	if failed > 0 {
		sb.WriteString(":warning: *Reconciliation sweep finished with failures*\n")
	} else {
		sb.WriteString(":white_check_mark: *Reconciliation sweep finished*\n")
	}
	fmt.Fprintf(&sb, "• Documents scanned: %d\n", scanned)
	fmt.Fprintf(&sb, "• Recovered: %d\n", recovered)
	fmt.Fprintf(&sb, "• Rolled back: %d\n", rolledBack)
	fmt.Fprintf(&sb, "• Failed: %d", failed)

	return sb.String()
}
