package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/PdfQA/internal/adapter/utils"
	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/middleware"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

var (
	server  *http.Server
	_logger = logger_i.NewLogger("Server")
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

type RouteConfig struct {
	AllowedOrigins []string
	// MCP is mounted at /mcp when set
	MCP http.Handler
}

func NewRouter(cfg RouteConfig) *chi.Mux {
	r := utils.NewRouter(chimw.Recoverer, middleware.CORS(cfg.AllowedOrigins))

	r.Get("/", middleware.RootHandler)
	r.Get("/health", middleware.HealthHandler)

	r.Route("/api", func(api chi.Router) {
		api.Post("/upload", middleware.UploadHandler)
		api.Post("/chat", middleware.ChatHandler)
		api.Get("/documents", middleware.DocumentsHandler)
		api.Delete("/session/{session_id}", middleware.DeleteSessionHandler)
		api.Get("/session/{session_id}/history", middleware.HistoryHandler)
	})
	r.Get("/status/{id}", middleware.GetStatusHandler)

	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}
	return r
}

func CreateServer(listenAddr string, handler http.Handler) {
	server = &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully is shutting down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}
