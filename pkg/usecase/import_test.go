package usecase_test

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/repository/memory"
	"github.com/govern-lab/mnemosyne/pkg/service/notion"
	"github.com/govern-lab/mnemosyne/pkg/usecase"
)

type mockNotionService struct {
	fetchPageFn func(ctx context.Context, pageID string) (*notion.Page, error)
	queryFn     func(ctx context.Context, dbID string, since time.Time) iter.Seq2[*notion.Page, error]
}

func (m *mockNotionService) FetchPage(ctx context.Context, pageID string) (*notion.Page, error) {
	if m.fetchPageFn != nil {
		return m.fetchPageFn(ctx, pageID)
	}
	return nil, errors.New("no page configured")
}

func (m *mockNotionService) QueryUpdatedPages(ctx context.Context, dbID string, since time.Time) iter.Seq2[*notion.Page, error] {
	if m.queryFn != nil {
		return m.queryFn(ctx, dbID, since)
	}
	return func(yield func(*notion.Page, error) bool) {}
}

func notionPage(id, title, text string) *notion.Page {
	return &notion.Page{
		ID:     id,
		Title:  title,
		Blocks: notion.Blocks{{ID: id + "-b1", Type: "paragraph", Text: text}},
	}
}

func TestImportPage(t *testing.T) {
	ctx := context.Background()

	t.Run("page text runs through the ingest path", func(t *testing.T) {
		repo := memory.New()
		notionSvc := &mockNotionService{
			fetchPageFn: func(_ context.Context, pageID string) (*notion.Page, error) {
				gt.Value(t, pageID).Equal("page-1")
				return notionPage("page-1", "Delegation review", ingestDocText), nil
			},
		}
		uc := newUseCases(t, repo, memory.NewVectorIndex(), &stubEmbedClient{}, nil, usecase.WithNotion(notionSvc))

		result, err := uc.Import.ImportPage(ctx, "page-1", usecase.ImportInput{SessionID: testSessionID})
		gt.NoError(t, err).Required()
		gt.Value(t, result.Document.Status).Equal(types.DocumentStatusIndexed)
		gt.Value(t, result.Document.SourceType).Equal(types.SourceTypeManual)
		gt.Value(t, result.Document.Title).Equal("Delegation review")
	})

	t.Run("fetch failure is wrapped with the page ID", func(t *testing.T) {
		notionSvc := &mockNotionService{
			fetchPageFn: func(_ context.Context, _ string) (*notion.Page, error) {
				return nil, errors.New("unauthorized")
			},
		}
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil, usecase.WithNotion(notionSvc))

		_, err := uc.Import.ImportPage(ctx, "page-1", usecase.ImportInput{SessionID: testSessionID})
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("failed to fetch Notion page")
	})

	t.Run("unconfigured service and missing input are rejected", func(t *testing.T) {
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil)

		_, err := uc.Import.ImportPage(ctx, "page-1", usecase.ImportInput{SessionID: testSessionID})
		gt.Value(t, errors.Is(err, usecase.ErrNotionNotConfigured)).Equal(true)

		withSvc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil, usecase.WithNotion(&mockNotionService{}))

		_, err = withSvc.Import.ImportPage(ctx, "", usecase.ImportInput{SessionID: testSessionID})
		gt.Error(t, err)

		_, err = withSvc.Import.ImportPage(ctx, "page-1", usecase.ImportInput{})
		gt.Error(t, err)
	})
}

func TestImportDatabase(t *testing.T) {
	ctx := context.Background()

	t.Run("page failures are counted and the run continues", func(t *testing.T) {
		repo := memory.New()
		client := &stubEmbedClient{
			embedFn: func(_ context.Context, dimension int, input []string) ([][]float64, error) {
				out := make([][]float64, len(input))
				for i, text := range input {
					if strings.Contains(text, "poisoned") {
						return nil, errors.New("refused input")
					}
					vec := make([]float64, dimension)
					vec[len(text)%dimension] = 1
					out[i] = vec
				}
				return out, nil
			},
		}
		notionSvc := &mockNotionService{
			queryFn: func(_ context.Context, dbID string, _ time.Time) iter.Seq2[*notion.Page, error] {
				gt.Value(t, dbID).Equal("db-1")
				return func(yield func(*notion.Page, error) bool) {
					if !yield(notionPage("page-1", "Delegation review", ingestDocText), nil) {
						return
					}
					// A mid-stream fetch error must not end the run.
					if !yield(nil, errors.New("block fetch failed")) {
						return
					}
					if !yield(notionPage("page-2", "Spam", strings.Repeat("spam ", 40)), nil) {
						return
					}
					yield(notionPage("page-3", "Hearing log", failMarkedDocText), nil)
				}
			},
		}
		uc := newUseCases(t, repo, memory.NewVectorIndex(), client, nil, usecase.WithNotion(notionSvc))

		report, err := uc.Import.ImportDatabase(ctx, "db-1", time.Time{}, usecase.ImportInput{SessionID: testSessionID})
		gt.NoError(t, err).Required()
		gt.Value(t, report.Fetched).Equal(3)
		gt.Value(t, report.Ingested).Equal(1)
		gt.Value(t, report.Rejected).Equal(1)
		gt.Value(t, report.Failed).Equal(2)

		docs, err := repo.Document().ListByStatus(ctx, types.DocumentStatusIndexed)
		gt.NoError(t, err).Required()
		gt.Array(t, docs).Length(1).Required()
		gt.Value(t, docs[0].Title).Equal("Delegation review")
	})

	t.Run("unconfigured service returns the sentinel", func(t *testing.T) {
		uc := newUseCases(t, memory.New(), memory.NewVectorIndex(), &stubEmbedClient{}, nil)

		report, err := uc.Import.ImportDatabase(ctx, "db-1", time.Time{}, usecase.ImportInput{SessionID: testSessionID})
		gt.Value(t, errors.Is(err, usecase.ErrNotionNotConfigured)).Equal(true)
		gt.Value(t, report.Fetched).Equal(0)
	})
}
