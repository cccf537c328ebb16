// @title           PDF RAG API
// @version         1.0
// @description     Upload a document per session and ask questions answered from its content.
// @termsOfService  http://swagger.io/terms/

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/PdfQA/internal/app"
	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/data/sqlStore"
	"github.com/akolanti/PdfQA/internal/data/store"
	jobmodel "github.com/akolanti/PdfQA/internal/domain/jobModel"
	"github.com/akolanti/PdfQA/internal/handlers"
	"github.com/akolanti/PdfQA/internal/job"
	"github.com/akolanti/PdfQA/internal/mcpServer"
	"github.com/akolanti/PdfQA/internal/middleware"
	"github.com/akolanti/PdfQA/internal/rag"
	"github.com/akolanti/PdfQA/internal/rag/ingest"
	"github.com/akolanti/PdfQA/internal/rag/namespace"
	"github.com/akolanti/PdfQA/internal/server"
	"github.com/akolanti/PdfQA/internal/session"
	"github.com/akolanti/PdfQA/internal/worker"
	"github.com/akolanti/PdfQA/pkg/logger_i"
)

var (
	configPath        string
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	flag.StringVar(&configPath, "config", "config.yaml", "optional YAML config file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger_i.NewLogger("main").Error("Could not load config", "error", err)
		os.Exit(1)
	}
	logger_i.Init(cfg.IsProd())
	var logger = logger_i.NewLogger("main")
	if listenAddr == "" {
		listenAddr = cfg.ListenAddr
	}

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//durable store
	db, err := sqlStore.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Could not open database", "error", err)
		return
	}
	defer db.Close()
	if err := db.Migrate(serviceContext); err != nil {
		logger.Error("Could not migrate database", "error", err)
		return
	}

	//external providers
	embedder, err := app.NewEmbedder(serviceContext, cfg.Embedding)
	if err != nil {
		logger.Error("Embedding provider failed to initialize", "error", err)
		return
	}
	llmProvider, err := app.NewLLM(serviceContext, cfg.LLM)
	if err != nil {
		logger.Error("LLM provider failed to initialize", "error", err)
		return
	}
	indexProvider, closeIndex, err := app.NewIndexProvider(cfg.Vector)
	if err != nil {
		logger.Error("Vector index failed to initialize", "error", err)
		return
	}
	defer closeIndex()

	partitions := namespace.NewManager(indexProvider, embedder, app.NamespaceOptions(cfg))
	if err := partitions.EnsureIndex(serviceContext); err != nil {
		logger.Error("Vector index is not ready", "index", partitions.IndexName(), "error", err)
		return
	}

	sessions := session.NewManager(db, db, partitions)
	pipeline := ingest.NewPipeline(partitions, sessions, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	ragService := rag.NewService(db, partitions, embedder, llmProvider, pipeline, rag.OptionsFromConfig(cfg.RAG))

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	jobStore, closeJobStore := store.NewJobStore(serviceContext, cfg)
	defer closeJobStore()

	logger.Info("Starting job service")
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
	})

	handlers.InitJobHandler(service, sessions, cfg.UploadDir, db)

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	tools, err := mcpServer.NewServer(ragService, sessions)
	if err != nil {
		logger.Error("MCP server failed to initialize", "error", err)
		return
	}
	router := server.NewRouter(server.RouteConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		MCP:            tools.Handler(),
	})
	middleware.StartLimiterCleanup(serviceContext, config.RateLimiterSweepInterval, config.RateLimiterIdleTimeout)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr, router)

	<-stopExecution
	logger.Info("Server stopped")
}
