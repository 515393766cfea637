package cli

import (
	"context"

	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/repository"
	"github.com/m-mizutani/fennec/pkg/service/extract"
	"github.com/m-mizutani/fennec/pkg/service/mcp"
	"github.com/m-mizutani/fennec/pkg/tool"
	"github.com/m-mizutani/fennec/pkg/tool/docs"
	"github.com/m-mizutani/fennec/pkg/tool/email"
	"github.com/m-mizutani/fennec/pkg/usecase/agent"
	"github.com/m-mizutani/fennec/pkg/usecase/ingest"
	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/fennec/pkg/utils/synccache"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	logLevel string

	// Drive
	rootFolderID string
	rootName     string
	maxFolders   int64

	// Gemini
	geminiProject  string
	geminiLocation string
	generativeModel string
	embeddingModel  string

	// Vector store
	vectorBackend    string
	qdrantHost       string
	qdrantPort       int64
	qdrantAPIKey     string
	qdrantTLS        bool
	qdrantCollection string

	// Search behavior
	distanceCutoff float64

	// SMTP
	smtpHost string
	smtpPort int64
	smtpUser string
	smtpPass string
	smtpFrom string

	// Misc
	syncCachePath string
	mcpConfigPath string
	archiveBucket string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("FENNEC_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "drive-folder-id",
			Usage:       "Google Drive root folder ID",
			Sources:     cli.EnvVars("GOOGLE_DRIVE_FOLDER_ID"),
			Destination: &cfg.rootFolderID,
		},
		&cli.StringFlag{
			Name:        "drive-root-name",
			Usage:       "Display name of the drive root, prepended to result paths",
			Sources:     cli.EnvVars("GOOGLE_DRIVE_FOLDER_ROOT_NAME"),
			Destination: &cfg.rootName,
		},
		&cli.IntFlag{
			Name:        "max-folders",
			Usage:       "Upper bound on folders visited during drive traversal",
			Value:       adapter.DefaultMaxFolders,
			Sources:     cli.EnvVars("FENNEC_MAX_FOLDERS"),
			Destination: &cfg.maxFolders,
		},
		&cli.StringFlag{
			Name:        "vector-backend",
			Usage:       "Vector store backend (qdrant, memory)",
			Value:       "qdrant",
			Sources:     cli.EnvVars("FENNEC_VECTOR_BACKEND"),
			Destination: &cfg.vectorBackend,
		},
		&cli.StringFlag{
			Name:        "qdrant-host",
			Usage:       "Qdrant server host",
			Value:       "localhost",
			Sources:     cli.EnvVars("FENNEC_QDRANT_HOST"),
			Destination: &cfg.qdrantHost,
		},
		&cli.IntFlag{
			Name:        "qdrant-port",
			Usage:       "Qdrant gRPC port",
			Value:       6334,
			Sources:     cli.EnvVars("FENNEC_QDRANT_PORT"),
			Destination: &cfg.qdrantPort,
		},
		&cli.StringFlag{
			Name:        "qdrant-api-key",
			Usage:       "Qdrant API key",
			Sources:     cli.EnvVars("FENNEC_QDRANT_API_KEY"),
			Destination: &cfg.qdrantAPIKey,
		},
		&cli.BoolFlag{
			Name:        "qdrant-tls",
			Usage:       "Use TLS for the Qdrant connection",
			Sources:     cli.EnvVars("FENNEC_QDRANT_TLS"),
			Destination: &cfg.qdrantTLS,
		},
		&cli.StringFlag{
			Name:        "qdrant-collection",
			Usage:       "Qdrant collection name",
			Value:       "documents",
			Sources:     cli.EnvVars("FENNEC_QDRANT_COLLECTION"),
			Destination: &cfg.qdrantCollection,
		},
		&cli.StringFlag{
			Name:        "sync-cache-path",
			Usage:       "Path of the sync cache file",
			Value:       "sync-cache.json",
			Sources:     cli.EnvVars("FENNEC_SYNC_CACHE_PATH"),
			Destination: &cfg.syncCachePath,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("FENNEC_GEMINI_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Embedding model name",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("FENNEC_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
	}
}

// agentFlags returns flags used by the agent commands with destination config
func agentFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "search-distance-cutoff",
			Usage:       "Drop search results with a distance above this value (negative: no cutoff)",
			Value:       -1,
			Sources:     cli.EnvVars("FENNEC_SEARCH_DISTANCE_CUTOFF"),
			Destination: &cfg.distanceCutoff,
		},
		&cli.StringFlag{
			Name:        "smtp-host",
			Usage:       "SMTP host for the sendEmail tool (empty disables the tool)",
			Sources:     cli.EnvVars("FENNEC_SMTP_HOST"),
			Destination: &cfg.smtpHost,
		},
		&cli.IntFlag{
			Name:        "smtp-port",
			Usage:       "SMTP port",
			Value:       587,
			Sources:     cli.EnvVars("FENNEC_SMTP_PORT"),
			Destination: &cfg.smtpPort,
		},
		&cli.StringFlag{
			Name:        "smtp-user",
			Usage:       "SMTP user",
			Sources:     cli.EnvVars("FENNEC_SMTP_USER"),
			Destination: &cfg.smtpUser,
		},
		&cli.StringFlag{
			Name:        "smtp-pass",
			Usage:       "SMTP password",
			Sources:     cli.EnvVars("FENNEC_SMTP_PASS"),
			Destination: &cfg.smtpPass,
		},
		&cli.StringFlag{
			Name:        "smtp-from",
			Usage:       "From address (defaults to the SMTP user)",
			Sources:     cli.EnvVars("FENNEC_SMTP_FROM"),
			Destination: &cfg.smtpFrom,
		},
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "YAML file listing external MCP tool servers",
			Sources:     cli.EnvVars("FENNEC_MCP_CONFIG"),
			Destination: &cfg.mcpConfigPath,
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket for task record archiving (empty disables)",
			Sources:     cli.EnvVars("FENNEC_ARCHIVE_BUCKET"),
			Destination: &cfg.archiveBucket,
		},
	}
}

// setupLogging installs a logger at the configured level into the context.
func (cfg *config) setupLogging(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, nil)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
		adapter.WithGenerativeModel(cfg.generativeModel),
		adapter.WithEmbeddingModel(cfg.embeddingModel),
	)
}

// newStore creates the vector store facade for the configured backend
func (cfg *config) newStore(ctx context.Context, gemini adapter.Gemini) (repository.Repository, error) {
	switch cfg.vectorBackend {
	case "memory":
		return repository.NewMemory(gemini, cfg.qdrantCollection, cfg.rootName), nil
	case "qdrant":
		return repository.NewQdrant(ctx, gemini, &repository.QdrantConfig{
			Host:       cfg.qdrantHost,
			Port:       int(cfg.qdrantPort),
			Collection: cfg.qdrantCollection,
			APIKey:     cfg.qdrantAPIKey,
			UseTLS:     cfg.qdrantTLS,
		}, cfg.rootName)
	}
	return nil, goerr.New("unknown vector backend", goerr.V("backend", cfg.vectorBackend))
}

// newMail creates the mail adapter, or nil when SMTP is not configured
func (cfg *config) newMail() (adapter.Mail, error) {
	if cfg.smtpHost == "" {
		return nil, nil
	}

	opts := []adapter.MailOption{}
	if cfg.smtpFrom != "" {
		opts = append(opts, adapter.WithMailFrom(cfg.smtpFrom))
	}
	return adapter.NewMail(cfg.smtpHost, int(cfg.smtpPort), cfg.smtpUser, cfg.smtpPass, opts...)
}

// cutoff returns the configured distance cutoff, or nil when unset
func (cfg *config) cutoff() *float64 {
	if cfg.distanceCutoff < 0 {
		return nil
	}
	v := cfg.distanceCutoff
	return &v
}

// newOrchestrator wires the full agent: store, tools, registry, archive.
func (cfg *config) newOrchestrator(ctx context.Context) (*agent.Orchestrator, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	store, err := cfg.newStore(ctx, gemini)
	if err != nil {
		return nil, err
	}

	mail, err := cfg.newMail()
	if err != nil {
		return nil, err
	}

	tools := []tool.Tool{docs.New(), email.New()}

	// Remote MCP tools must not shadow the built-in function names.
	var reserved []string
	for _, t := range tools {
		if spec := t.Spec(); spec != nil {
			for _, fd := range spec.FunctionDeclarations {
				reserved = append(reserved, fd.Name)
			}
		}
	}

	mcpProvider, err := mcp.LoadAndConnect(ctx, cfg.mcpConfigPath, reserved...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to set up MCP tools")
	}
	if mcpProvider != nil {
		tools = append(tools, mcpProvider)
	}

	registry := tool.New(tools...)
	if err := registry.Init(ctx, &tool.Client{
		Store:          store,
		Gemini:         gemini,
		Mail:           mail,
		RootName:       cfg.rootName,
		DistanceCutoff: cfg.cutoff(),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize tool registry")
	}

	var opts []agent.Option
	if cfg.archiveBucket != "" {
		archive, err := adapter.NewStorage(ctx, cfg.archiveBucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create archive storage")
		}
		opts = append(opts, agent.WithArchive(archive))
	}

	return agent.New(gemini, registry, opts...), nil
}

// newPipeline wires the ingestion pipeline.
func (cfg *config) newPipeline(ctx context.Context) (*ingest.Pipeline, error) {
	if cfg.rootFolderID == "" {
		return nil, goerr.New("drive-folder-id is required for sync")
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}

	store, err := cfg.newStore(ctx, gemini)
	if err != nil {
		return nil, err
	}

	drive, err := adapter.NewDrive(ctx)
	if err != nil {
		return nil, err
	}

	return ingest.New(ingest.Config{
		Drive:        drive,
		Store:        store,
		Extractor:    extract.New(),
		Cache:        synccache.New(cfg.syncCachePath),
		RootFolderID: cfg.rootFolderID,
		MaxFolders:   int(cfg.maxFolders),
	})
}
