package usecase

import (
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/service/archive"
	"github.com/govern-lab/mnemosyne/pkg/service/chunker"
	"github.com/govern-lab/mnemosyne/pkg/service/correlator"
	"github.com/govern-lab/mnemosyne/pkg/service/embedding"
	"github.com/govern-lab/mnemosyne/pkg/service/forum"
	"github.com/govern-lab/mnemosyne/pkg/service/notify"
	"github.com/govern-lab/mnemosyne/pkg/service/notion"
	"github.com/govern-lab/mnemosyne/pkg/service/retrieval"
	"github.com/govern-lab/mnemosyne/pkg/service/synthesis"
	"github.com/govern-lab/mnemosyne/pkg/service/validator"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// Services bundles the domain services the usecases orchestrate. Embedder,
// Retrieval, Synthesis and Correlator are required; Validator and Chunker
// fall back to defaults.
type Services struct {
	Embedder   *embedding.Adapter
	Chunker    *chunker.Chunker
	Validator  *validator.Validator
	Retrieval  *retrieval.Engine
	Synthesis  *synthesis.Engine
	Correlator *correlator.Engine
}

// UseCases aggregates the application use cases over one repository and
// vector index pair.
type UseCases struct {
	repo  interfaces.Repository
	index interfaces.VectorIndex

	archiveService *archive.Service
	notifyService  *notify.Service
	forumService   forum.Service
	notionService  notion.Service
	llmClient      gollem.LLMClient

	qualityThreshold float64
	staleThreshold   time.Duration
	topKPerSession   int

	Ingest    *IngestUseCase
	Query     *QueryUseCase
	Correlate *CorrelateUseCase
	Sync      *SyncUseCase
	Import    *ImportUseCase
	Reconcile *ReconcileUseCase
	Assist    *AssistUseCase
}

type Option func(*UseCases)

// WithArchive enables raw-text archival on ingest
func WithArchive(svc *archive.Service) Option {
	return func(uc *UseCases) {
		uc.archiveService = svc
	}
}

// WithNotifier enables operator notifications for degraded documents
func WithNotifier(svc *notify.Service) Option {
	return func(uc *UseCases) {
		uc.notifyService = svc
	}
}

// WithForum enables the discussion forum sync source
func WithForum(svc forum.Service) Option {
	return func(uc *UseCases) {
		uc.forumService = svc
	}
}

// WithNotion enables the Notion import source
func WithNotion(svc notion.Service) Option {
	return func(uc *UseCases) {
		uc.notionService = svc
	}
}

// WithLLM attaches the generation client the assist agent runs on
func WithLLM(client gollem.LLMClient) Option {
	return func(uc *UseCases) {
		uc.llmClient = client
	}
}

// WithQualityThreshold overrides the ingest rejection threshold
func WithQualityThreshold(threshold float64) Option {
	return func(uc *UseCases) {
		uc.qualityThreshold = threshold
	}
}

// WithStaleThreshold overrides how old an ingesting document must be
// before reconciliation treats it as abandoned
func WithStaleThreshold(d time.Duration) Option {
	return func(uc *UseCases) {
		if d > 0 {
			uc.staleThreshold = d
		}
	}
}

// WithTopKPerSession overrides how many chunks per session feed the
// session correlation
func WithTopKPerSession(n int) Option {
	return func(uc *UseCases) {
		if n > 0 {
			uc.topKPerSession = n
		}
	}
}

// New creates the use case aggregate
func New(repo interfaces.Repository, index interfaces.VectorIndex, svc *Services, opts ...Option) (*UseCases, error) {
	if repo == nil {
		return nil, goerr.New("repository is required")
	}
	if index == nil {
		return nil, goerr.New("vector index is required")
	}
	if svc == nil || svc.Embedder == nil || svc.Retrieval == nil || svc.Synthesis == nil || svc.Correlator == nil {
		return nil, goerr.New("embedder, retrieval, synthesis and correlator services are required")
	}

	if svc.Validator == nil {
		svc.Validator = validator.New()
	}
	if svc.Chunker == nil {
		defaultChunker, err := chunker.New(chunker.NewWordTokenizer(), chunker.Config{})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build default chunker")
		}
		svc.Chunker = defaultChunker
	}

	uc := &UseCases{
		repo:             repo,
		index:            index,
		qualityThreshold: validator.DefaultQualityThreshold,
		staleThreshold:   DefaultStaleThreshold,
		topKPerSession:   DefaultTopKPerSession,
	}
	for _, opt := range opts {
		opt(uc)
	}

	uc.Ingest = NewIngestUseCase(repo, index, svc, uc.archiveService, uc.notifyService, uc.qualityThreshold)
	uc.Query = NewQueryUseCase(svc.Retrieval, svc.Synthesis)
	uc.Correlate = NewCorrelateUseCase(repo, svc.Correlator, uc.topKPerSession)
	uc.Sync = NewSyncUseCase(uc.forumService, uc.Ingest)
	uc.Import = NewImportUseCase(uc.notionService, uc.Ingest)
	uc.Reconcile = NewReconcileUseCase(repo, index, svc, uc.notifyService, uc.staleThreshold)
	uc.Assist = NewAssistUseCase(repo, uc.llmClient, svc.Retrieval, svc.Correlator, uc.Ingest)

	return uc, nil
}
