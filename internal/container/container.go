package container

import (
	"context"
	"fmt"

	"dataportal/adapters/excel"
	"dataportal/adapters/postgres"
	"dataportal/adapters/sqlstore"
	"dataportal/adapters/storage"
	"dataportal/domain/table"
	"dataportal/internal/config"
	"dataportal/internal/documents"
	"dataportal/internal/export"
	"dataportal/internal/ingest"
	"dataportal/internal/logging"
	"dataportal/internal/migration"
	"dataportal/internal/query"
	"dataportal/internal/schema"
	"dataportal/ports"

	"go.uber.org/zap"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	Store *sqlstore.Store
	Files ports.FileStorage

	// Repositories (data access layer)
	DocumentRepo  ports.DocumentRepository
	ImportRunRepo ports.ImportRunRepository

	// Spreadsheet components
	Parser *excel.Parser
	Writer *excel.Writer
	Schema *schema.Manager

	// Services
	Ingest    *ingest.Coordinator
	Query     *query.Service
	Export    *export.Composer
	Documents *documents.Service
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: logging.OrNop(logger),
	}

	return c, nil
}

// Connect opens the configured database, migrates it and initializes every
// component on top of it
func (c *Container) Connect(ctx context.Context) error {
	store, err := sqlstore.Connect(c.Config.Database.Driver, c.Config.Database.URL,
		sqlstore.WithBatchSize(c.Config.Ingest.BatchSize))
	if err != nil {
		return err
	}
	if err := c.InitWithDatabase(ctx, store); err != nil {
		store.Close()
		return err
	}
	return nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(ctx context.Context, store *sqlstore.Store) error {
	if store == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.Store = store

	// Test database connection
	if err := store.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dialect, err := sqlstore.DialectFor(store.Dialect())
	if err != nil {
		return err
	}
	if err := migration.NewRunner().Run(ctx, store.DB(), dialect); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.initRepositories()

	if err := c.initStorage(ctx); err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	c.Logger.Info("container initialized",
		zap.String("dialect", store.Dialect()),
		zap.String("storage", c.Config.Storage.Driver))
	return nil
}

// initRepositories initializes data access repositories
func (c *Container) initRepositories() {
	c.DocumentRepo = postgres.NewDocumentRepository(c.Store.DB())
	c.ImportRunRepo = postgres.NewImportRunRepository(c.Store.DB())
}

func (c *Container) initStorage(ctx context.Context) error {
	cfg := c.Config.Storage
	if cfg.Driver == "minio" {
		files, err := storage.NewMinioFileStorage(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		c.Files = files
		return nil
	}
	c.Files = storage.NewLocalFileStorage(cfg.Path)
	return nil
}

func (c *Container) initServices() error {
	style, err := excel.LoadStyle(c.Config.Export.StyleFile)
	if err != nil {
		return err
	}

	policy := schema.DefaultReserved(c.Config.Ingest.ReservedTables...)
	c.Parser = excel.NewParser(
		excel.WithSoffice(c.Config.Ingest.SofficeBin),
		excel.WithLogger(c.Logger),
	)
	c.Writer = excel.NewWriter(style)
	c.Schema = schema.NewManager(policy, c.Logger)

	c.Ingest = ingest.NewCoordinator(c.Store, c.Parser, c.Schema, c.ImportRunRepo, ingest.Config{
		MaxPositionalCols: c.Config.Ingest.MaxPositionalCols,
		Lookahead:         c.Config.Ingest.Lookahead,
		EmptyHeaders:      table.EmptyHeaderPolicy(c.Config.Ingest.EmptyHeaderPolicy),
		MaxUploadBytes:    c.Config.Ingest.MaxUploadBytes,
	}, c.Logger)
	c.Query = query.NewService(c.Store, policy, c.Logger)
	c.Export = export.NewComposer(c.Store, c.Writer, policy, export.Options{
		MoneyColumns:   style.MoneyColumns,
		CurrencyFormat: style.CurrencyFormat,
		NumericMoney:   c.Config.Export.NumericMoney,
	}, c.Logger)
	c.Documents = documents.NewService(c.DocumentRepo, c.Files, documents.Limits{
		InternalMaxBytes: c.Config.Documents.InternalMaxBytes,
		ExternalMaxBytes: c.Config.Documents.ExternalMaxBytes,
	}, c.Logger)
	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
