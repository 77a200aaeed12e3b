package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/davidemeka/ingesta/internal/config"
	"github.com/davidemeka/ingesta/internal/core"
	db "github.com/davidemeka/ingesta/internal/core/database"
	"github.com/davidemeka/ingesta/internal/core/extraction"
	"github.com/davidemeka/ingesta/internal/core/ingest"
	"github.com/davidemeka/ingesta/internal/core/llm"
	"github.com/davidemeka/ingesta/internal/core/objectclient"
	"github.com/davidemeka/ingesta/internal/core/search"
)

type App struct {
	DBClient     db.DbClient
	ObjectClient core.ObjectClient
	Arbiter      *extraction.Arbiter
	Pipeline     *ingest.Pipeline
	Fuser        *search.Fuser
	Server       *Server

	embedder *llm.GeminiEmbedder
	llm      *llm.GeminiLLM
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	logger := slog.Default()

	dbClient, err := db.NewPostgresClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	// Object storage and the AI gateway are optional: without them ingestion
	// still runs, archiving nothing and storing vectorless chunks.
	var objClient core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		objClient, err = objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		log.Println("Object client initialized and ready.")
	} else {
		log.Println("AWS credentials not set; document archival disabled.")
	}

	var embedder *llm.GeminiEmbedder
	var llmProvider *llm.GeminiLLM
	if cfg.AIAPIKey != "" {
		embedder, err = llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim, cfg.EmbedTimeout)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
		}
		llmProvider, err = llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
		}
	} else {
		log.Println("GEMINI_API_KEY not set; retrieval is keyword-only and /ask is disabled.")
	}

	useReadability := false
	arbiter, err := extraction.NewArbiter(logger,
		extraction.NewDocconvStrategy(useReadability),
		extraction.NewPDFTextStrategy(),
		extraction.NewPDFLayoutStrategy(),
		extraction.NewPlainTextStrategy(),
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the extraction arbiter, %w", err)
	}

	ingCfg := ingest.Config{
		TargetSize:   cfg.ChunkTargetSize,
		Overlap:      cfg.ChunkOverlap,
		BatchSize:    cfg.EmbedBatchSize,
		MinTextChars: cfg.MinTextChars,
	}

	pipelineOpts := []ingest.Option{ingest.WithLogger(logger)}
	if objClient != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithObjectStorage(objClient, cfg.BucketName))
	}

	var embProvider core.EmbeddingProvider
	if embedder != nil {
		embProvider = embedder
	}
	pipeline, err := ingest.NewPipeline(dbClient, embProvider, arbiter, ingCfg, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	fuser, err := search.NewFuser(dbClient, embProvider, search.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var llmForServer core.LLMProvider
	if llmProvider != nil {
		llmForServer = llmProvider
	}
	server := NewServer(cfg, dbClient, objClient, pipeline, fuser, llmForServer)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Arbiter:      arbiter,
		Pipeline:     pipeline,
		Fuser:        fuser,
		Server:       server,
		embedder:     embedder,
		llm:          llmProvider,
	}, nil
}

func (a *App) Close() {
	if a.Arbiter != nil {
		a.Arbiter.Release()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
