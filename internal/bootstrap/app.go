package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"paperal-backend/internal/analyses"
	"paperal-backend/internal/llm"
	"paperal-backend/internal/llm/bedrock"
	"paperal-backend/internal/papers"
	"paperal-backend/internal/queue"
	"paperal-backend/internal/reports"
	"paperal-backend/internal/shared/config"
	"paperal-backend/internal/shared/server"
	"paperal-backend/internal/shared/storage/db"
	"paperal-backend/internal/shared/storage/object"
	localstore "paperal-backend/internal/shared/storage/object/local"
	s3store "paperal-backend/internal/shared/storage/object/s3"
	"paperal-backend/internal/workerproc"
)

// App holds shared dependencies for the API server and the queue worker.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	PapersRepo   papers.PapersRepo
	AnalysesRepo analyses.Repo
	ReportsRepo  reports.Repo

	PapersService   *papers.Service
	AnalysesService *analyses.Service
	ReportsService  *reports.Service

	PapersHandler   *papers.Handler
	AnalysesHandler *analyses.Handler
	ReportsHandler  *reports.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	buildServices(app, llmClient)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		PapersHandler:   app.PapersHandler,
		AnalysesHandler: app.AnalysesHandler,
		ReportsHandler:  app.ReportsHandler,
	})

	return app, nil
}

// WorkerDeps returns the job processors for the queue worker.
func (a *App) WorkerDeps() workerproc.Deps {
	return workerproc.Deps{
		Analyses: a.AnalysesService,
		Reports:  a.ReportsService,
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider == "bedrock" {
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.LLMModel)
	}
	return llm.PlaceholderClient{}, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App, llmClient llm.Client) {
	var paperRepo papers.PapersRepo
	var analysisRepo analyses.Repo
	var reportRepo reports.Repo

	if app.DB != nil {
		paperRepo = &papers.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
		reportRepo = &reports.PGRepo{DB: app.DB}
	} else {
		paperRepo = papers.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
		reportRepo = reports.NewMemoryRepo()
	}

	paperSvc := &papers.Service{
		Store: app.Store,
		Repo:  paperRepo,
	}

	analysisSvc := &analyses.Service{
		Repo:    analysisRepo,
		Papers:  paperRepo,
		Store:   app.Store,
		LLM:     llmClient,
		Queue:   app.Queue,
		Model:   app.Config.LLMModel,
		Version: app.Config.AnalysisVersion,
	}

	reportSvc := &reports.Service{
		Repo:         reportRepo,
		Analyses:     analysisRepo,
		Papers:       paperRepo,
		Store:        app.Store,
		Queue:        app.Queue,
		ShareBaseURL: app.Config.ShareBaseURL,
	}

	app.PapersRepo = paperRepo
	app.AnalysesRepo = analysisRepo
	app.ReportsRepo = reportRepo
	app.PapersService = paperSvc
	app.AnalysesService = analysisSvc
	app.ReportsService = reportSvc
	app.PapersHandler = papers.NewHandler(paperSvc)
	app.AnalysesHandler = analyses.NewHandler(analysisSvc)
	app.ReportsHandler = reports.NewHandler(reportSvc)
}
