package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/govern-lab/mnemosyne/pkg/repository/firestore"
	"github.com/govern-lab/mnemosyne/pkg/repository/memory"
	"github.com/govern-lab/mnemosyne/pkg/repository/pgvector"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

// Repository holds CLI flags for the metadata store and vector index
// backends
type Repository struct {
	backend       string
	vectorBackend string
	projectID     string
	databaseID    string
	prefix        string
	pgDSN         string
	pgTable       string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Metadata store backend (firestore or memory)",
			Category:    "Storage",
			Value:       "firestore",
			Sources:     cli.EnvVars("MNEMOSYNE_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "vector-backend",
			Usage:       "Vector index backend (firestore, pgvector or memory; defaults to the metadata backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_VECTOR_BACKEND"),
			Destination: &r.vectorBackend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix for Firestore collection names",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.prefix,
		},
		&cli.StringFlag{
			Name:        "pgvector-dsn",
			Usage:       "PostgreSQL DSN (required when using pgvector backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_PGVECTOR_DSN"),
			Destination: &r.pgDSN,
		},
		&cli.StringFlag{
			Name:        "pgvector-table",
			Usage:       "PostgreSQL table for vector entries",
			Category:    "Storage",
			Sources:     cli.EnvVars("MNEMOSYNE_PGVECTOR_TABLE"),
			Destination: &r.pgTable,
		},
	}
}

// Backend returns the configured metadata backend
func (r *Repository) Backend() string {
	return r.backend
}

// VectorBackend returns the vector index backend, following the
// metadata backend when none is set explicitly
func (r *Repository) VectorBackend() string {
	if r.vectorBackend == "" {
		return r.backend
	}
	return r.vectorBackend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// CollectionPrefix returns the Firestore collection prefix
func (r *Repository) CollectionPrefix() string {
	return r.prefix
}

// DSN returns the PostgreSQL DSN
func (r *Repository) DSN() string {
	return r.pgDSN
}

// Table returns the PostgreSQL vector table name, empty for the default
func (r *Repository) Table() string {
	return r.pgTable
}

// Configure initializes the metadata store and the vector index. The
// dimension fixes the vector column width for backends that enforce it.
// The caller is responsible for closing both.
func (r *Repository) Configure(ctx context.Context, dimension int) (interfaces.Repository, interfaces.VectorIndex, error) {
	repo, err := r.configureMetadata(ctx)
	if err != nil {
		return nil, nil, err
	}

	index, err := r.configureVector(ctx, dimension)
	if err != nil {
		if closeErr := repo.Close(); closeErr != nil {
			logging.Default().Error("failed to close repository", "error", closeErr.Error())
		}
		return nil, nil, err
	}

	return repo, index, nil
}

func (r *Repository) configureMetadata(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.New("firestore-project-id is required when using firestore backend")
		}
		var opts []firestore.Option
		if r.prefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.prefix))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.New("invalid repository backend", goerr.V("backend", r.backend))
	}
}

func (r *Repository) configureVector(ctx context.Context, dimension int) (interfaces.VectorIndex, error) {
	switch r.VectorBackend() {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.New("firestore-project-id is required when using firestore vector backend")
		}
		index, err := firestore.NewVectorIndex(ctx, r.projectID, r.databaseID, r.prefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore vector index")
		}
		logging.Default().Info("Using Firestore vector index",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return index, nil

	case "pgvector":
		if r.pgDSN == "" {
			return nil, goerr.New("pgvector-dsn is required when using pgvector backend")
		}
		var opts []pgvector.Option
		if r.pgTable != "" {
			opts = append(opts, pgvector.WithTable(r.pgTable))
		}
		index, err := pgvector.New(ctx, r.pgDSN, dimension, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize pgvector index")
		}
		logging.Default().Info("Using pgvector index", "dimension", dimension)
		return index, nil

	case "memory":
		logging.Default().Info("Using in-memory vector index (development mode)")
		return memory.NewVectorIndex(), nil

	default:
		return nil, goerr.New("invalid vector backend", goerr.V("backend", r.VectorBackend()))
	}
}
