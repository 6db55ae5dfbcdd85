package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/govern-lab/mnemosyne/pkg/cli/config"
	"github.com/govern-lab/mnemosyne/pkg/repository/pgvector"
	"github.com/govern-lab/mnemosyne/pkg/utils/logging"
)

func cmdMigrate() *cli.Command {
	var dryRun bool
	var repoCfg config.Repository
	var policyCfg config.PolicyConfig

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate storage backend indexes and schemas",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			policy, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load policy")
			}
			dimension := policy.Providers.EmbeddingDimension

			migrated := false

			if repoCfg.Backend() == "firestore" || repoCfg.VectorBackend() == "firestore" {
				if err := migrateFirestore(ctx, &repoCfg, dimension, dryRun); err != nil {
					return err
				}
				migrated = true
			}

			if repoCfg.VectorBackend() == "pgvector" {
				if err := migratePgvector(ctx, &repoCfg, dimension, dryRun); err != nil {
					return err
				}
				migrated = true
			}

			if !migrated {
				logging.Default().Info("Selected backends need no migration",
					"repository", repoCfg.Backend(),
					"vector", repoCfg.VectorBackend())
			}

			return nil
		},
	}
}

func migrateFirestore(ctx context.Context, repoCfg *config.Repository, dimension int, dryRun bool) error {
	logger := logging.Default()

	if repoCfg.ProjectID() == "" {
		return goerr.New("firestore-project-id is required for firestore migration")
	}

	logger.Info("Migrating Firestore indexes",
		"projectID", repoCfg.ProjectID(),
		"databaseID", repoCfg.DatabaseID(),
		"dimension", dimension,
		"dryRun", dryRun)

	indexConfig := firestoreIndexConfig(repoCfg.CollectionPrefix(), dimension)

	databaseID := repoCfg.DatabaseID()
	if databaseID == "" {
		databaseID = "(default)"
	}
	client, err := fireconf.New(ctx, repoCfg.ProjectID(), databaseID, indexConfig,
		fireconf.WithLogger(logger))
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		names := make([]string, 0, len(indexConfig.Collections))
		for _, col := range indexConfig.Collections {
			names = append(names, col.Name)
		}
		current, err := client.Import(ctx, names...)
		if err != nil {
			return goerr.Wrap(err, "failed to read current Firestore configuration")
		}
		diff, err := client.DiffConfigs(current)
		if err != nil {
			return goerr.Wrap(err, "failed to diff Firestore configurations")
		}

		if len(diff.Collections) == 0 {
			logger.Info("No Firestore changes required")
			return nil
		}

		for _, col := range diff.Collections {
			logger.Info("Planned change",
				"collection", col.Name,
				"action", col.Action,
				"indexesToAdd", len(col.IndexesToAdd),
				"indexesToDelete", len(col.IndexesToDelete))
		}
		return nil
	}

	if err := client.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to apply Firestore migrations")
	}
	logger.Info("Firestore migrations applied successfully")
	return nil
}

func migratePgvector(ctx context.Context, repoCfg *config.Repository, dimension int, dryRun bool) error {
	logger := logging.Default()

	if repoCfg.DSN() == "" {
		return goerr.New("pgvector-dsn is required for pgvector migration")
	}

	var opts []pgvector.Option
	if repoCfg.Table() != "" {
		opts = append(opts, pgvector.WithTable(repoCfg.Table()))
	}
	index, err := pgvector.New(ctx, repoCfg.DSN(), dimension, opts...)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to pgvector backend")
	}
	defer func() {
		if err := index.Close(); err != nil {
			logger.Error("failed to close pgvector index", "error", err.Error())
		}
	}()

	if dryRun {
		for _, stmt := range index.Schema() {
			logger.Info("Schema statement", "sql", stmt)
		}
		return nil
	}

	if err := index.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to apply pgvector schema")
	}
	logger.Info("pgvector schema applied successfully", "dimension", dimension)
	return nil
}

// firestoreIndexConfig returns the composite and vector indexes the
// repository queries rely on
func firestoreIndexConfig(prefix string, dimension int) *fireconf.Config {
	name := func(base string) string {
		if prefix != "" {
			return prefix + "_" + base
		}
		return base
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: name("documents"),
				Indexes: []fireconf.Index{
					// ListBySession: session_id ASC, created_at DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "session_id", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderDescending},
						},
					},
					// ListByStatus: status ASC, created_at ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "status", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: name("chunks"),
				Indexes: []fireconf.Index{
					// ListByDocument: document_id ASC, position ASC
					{
						Fields: []fireconf.IndexField{
							{Path: "document_id", Order: fireconf.OrderAscending},
							{Path: "position", Order: fireconf.OrderAscending},
						},
					},
					// ListBySession: session_id ASC, created_at DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "session_id", Order: fireconf.OrderAscending},
							{Path: "created_at", Order: fireconf.OrderDescending},
						},
					},
				},
			},
			{
				Name: name("vectors"),
				Indexes: []fireconf.Index{
					// Session-scoped nearest neighbor search
					{
						Fields: []fireconf.IndexField{
							{Path: "session_id", Order: fireconf.OrderAscending},
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
					// Cross-session nearest neighbor search
					{
						Fields: []fireconf.IndexField{
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: dimension,
								},
							},
						},
					},
				},
			},
		},
	}
}
