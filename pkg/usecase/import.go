package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/service/notion"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotionNotConfigured is returned when the Notion service is not configured
var ErrNotionNotConfigured = goerr.New("Notion service is not configured")

// ImportUseCase brings Notion pages into the knowledge base through the
// standard ingest path
type ImportUseCase struct {
	notion notion.Service
	ingest *IngestUseCase
}

// NewImportUseCase creates a new ImportUseCase instance
func NewImportUseCase(notionService notion.Service, ingest *IngestUseCase) *ImportUseCase {
	return &ImportUseCase{
		notion: notionService,
		ingest: ingest,
	}
}

// ImportInput carries the ingest classification applied to imported pages
type ImportInput struct {
	SessionID          model.SessionID
	Track              string
	PrivacyLevel       types.PrivacyTier
	PartiallyShareable bool
}

func (in *ImportInput) validate() error {
	if in.SessionID == "" {
		return goerr.New("session ID is required")
	}
	return nil
}

// ImportPage fetches one Notion page and ingests its text as a document
func (uc *ImportUseCase) ImportPage(ctx context.Context, pageID string, input ImportInput) (*ProcessingResult, error) {
	if uc.notion == nil {
		return nil, ErrNotionNotConfigured
	}
	if pageID == "" {
		return nil, goerr.New("page ID is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	page, err := uc.notion.FetchPage(ctx, pageID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch Notion page",
			goerr.V("page_id", pageID))
	}

	return uc.ingest.Ingest(ctx, IngestInput{
		Title:              page.Title,
		Text:               page.ContentText(),
		SourceType:         types.SourceTypeManual,
		SessionID:          input.SessionID,
		Track:              input.Track,
		PrivacyLevel:       input.PrivacyLevel,
		PartiallyShareable: input.PartiallyShareable,
	})
}

// ImportReport totals one database import run
type ImportReport struct {
	Fetched  int
	Ingested int
	Rejected int
	Failed   int
}

// ImportDatabase ingests every page of a Notion database edited at or
// after the cutoff. Per-page failures are counted and the run continues.
func (uc *ImportUseCase) ImportDatabase(ctx context.Context, databaseID string, since time.Time, input ImportInput) (*ImportReport, error) {
	report := &ImportReport{}

	if uc.notion == nil {
		return report, ErrNotionNotConfigured
	}
	if databaseID == "" {
		return report, goerr.New("database ID is required")
	}
	if err := input.validate(); err != nil {
		return report, err
	}

	logger := logging.From(ctx)
	logger.Info("Notion database import started",
		"database_id", databaseID,
		"since", since,
		model.SessionIDKey, input.SessionID)

	for page, err := range uc.notion.QueryUpdatedPages(ctx, databaseID, since) {
		if err != nil {
			report.Failed++
			logger.Error("Notion page fetch failed",
				logging.ErrAttr(err))
			continue
		}
		report.Fetched++

		_, ingestErr := uc.ingest.Ingest(ctx, IngestInput{
			Title:              page.Title,
			Text:               page.ContentText(),
			SourceType:         types.SourceTypeManual,
			SessionID:          input.SessionID,
			Track:              input.Track,
			PrivacyLevel:       input.PrivacyLevel,
			PartiallyShareable: input.PartiallyShareable,
		})
		switch {
		case ingestErr == nil:
			report.Ingested++
		case errors.Is(ingestErr, model.ErrRejectedLowQuality):
			report.Rejected++
			logger.Info("Notion page rejected for low quality",
				"page_id", page.ID,
				"title", page.Title)
		default:
			report.Failed++
			logger.Error("Notion page ingest failed",
				"page_id", page.ID,
				"title", page.Title,
				logging.ErrAttr(ingestErr))
		}
	}

	logger.Info("Notion database import completed",
		"fetched", report.Fetched,
		"ingested", report.Ingested,
		"rejected", report.Rejected,
		"failed", report.Failed)
	return report, nil
}
