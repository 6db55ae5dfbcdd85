package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/forum"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ErrForumNotConfigured is returned when the forum connector is not configured
var ErrForumNotConfigured = goerr.New("forum connector is not configured")

// SyncUseCase pulls forum discussions and runs each through the standard
// ingest path
type SyncUseCase struct {
	forum  forum.Service
	ingest *IngestUseCase
}

// NewSyncUseCase creates a new SyncUseCase instance
func NewSyncUseCase(forumService forum.Service, ingest *IngestUseCase) *SyncUseCase {
	return &SyncUseCase{
		forum:  forumService,
		ingest: ingest,
	}
}

// SyncInput represents input for one forum sync run
type SyncInput struct {
	Owner string
	Repo  string
	// Since bounds the pull to discussions created at or after this time
	Since              time.Time
	SessionID          model.SessionID
	Track              string
	PrivacyLevel       types.PrivacyTier
	PartiallyShareable bool
}

// SyncReport totals one sync run. Per-item failures are counted, not
// fatal; the run keeps going.
type SyncReport struct {
	Fetched  int
	Ingested int
	Rejected int
	Failed   int
}

// SyncForum pulls every discussion since the cutoff and ingests each as a
// document. The report is returned even when the pull aborts midway so
// callers see what landed before the failure.
func (uc *SyncUseCase) SyncForum(ctx context.Context, input SyncInput) (*SyncReport, error) {
	report := &SyncReport{}

	if uc.forum == nil {
		return report, ErrForumNotConfigured
	}
	if input.Owner == "" || input.Repo == "" {
		return report, goerr.New("repository owner and name are required")
	}
	if input.SessionID == "" {
		return report, goerr.New("session ID is required")
	}

	validation, err := uc.forum.ValidateRepository(ctx, input.Owner, input.Repo)
	if err != nil {
		return report, goerr.Wrap(err, "failed to validate repository",
			goerr.V("owner", input.Owner), goerr.V("repo", input.Repo))
	}
	if !validation.Valid {
		return report, goerr.New("repository is not accessible",
			goerr.V("repo", validation.FullName),
			goerr.V("reason", validation.ErrorMessage))
	}
	if !validation.DiscussionsEnabled {
		return report, goerr.New("repository has discussions disabled",
			goerr.V("repo", validation.FullName))
	}

	logger := logging.From(ctx)
	logger.Info("forum sync started",
		"repo", validation.FullName,
		"since", input.Since,
		model.SessionIDKey, input.SessionID)

	for discussion, err := range uc.forum.FetchDiscussions(ctx, input.Owner, input.Repo, input.Since) {
		if err != nil {
			return report, goerr.Wrap(err, "discussion fetch aborted",
				goerr.V("fetched", report.Fetched),
				goerr.V("ingested", report.Ingested))
		}
		report.Fetched++

		var topics []string
		if discussion.Category != "" {
			topics = []string{discussion.Category}
		}

		_, ingestErr := uc.ingest.Ingest(ctx, IngestInput{
			Title:              discussion.Title,
			Text:               discussion.ContentText(),
			SourceType:         types.SourceTypeForumSync,
			SessionID:          input.SessionID,
			Track:              input.Track,
			Author:             discussion.Author,
			Topics:             topics,
			PrivacyLevel:       input.PrivacyLevel,
			PartiallyShareable: input.PartiallyShareable,
		})
		switch {
		case ingestErr == nil:
			report.Ingested++
		case errors.Is(ingestErr, model.ErrRejectedLowQuality):
			report.Rejected++
			logger.Info("discussion rejected for low quality",
				"discussion", discussion.Number,
				"title", discussion.Title)
		default:
			report.Failed++
			logger.Error("discussion ingest failed",
				"discussion", discussion.Number,
				"title", discussion.Title,
				logging.ErrAttr(ingestErr))
		}
	}

	logger.Info("forum sync completed",
		"fetched", report.Fetched,
		"ingested", report.Ingested,
		"rejected", report.Rejected,
		"failed", report.Failed)
	return report, nil
}
