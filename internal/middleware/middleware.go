package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/PdfQA/internal/handlers"
	"github.com/akolanti/PdfQA/internal/metrics"
	"github.com/akolanti/PdfQA/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var (
	RootHandler          = Wrap(handlers.RootHandler)
	HealthHandler        = Wrap(handlers.HealthHandler)
	UploadHandler        = Wrap(handlers.UploadHandler)
	ChatHandler          = Wrap(handlers.ChatHandler)
	DeleteSessionHandler = Wrap(handlers.DeleteSessionHandler)
	DocumentsHandler     = Wrap(handlers.DocumentsHandler)
	HistoryHandler       = Wrap(handlers.HistoryHandler)
	GetStatusHandler     = Wrap(handlers.GetStatusHandler)
)

var logger = logger_i.NewLogger("middleware")

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if !handleBadRequest(re) {
			capture(r, rec.Status)
			return
		}
		next(rec, re.req)

		capture(r, rec.Status)
	}
}

// capture labels by route pattern so path parameters don't explode the series count.
func capture(r *http.Request, status int) {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	metrics.HttpRequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re.logger.Info("New request received", "method", re.req.Method, "path", re.req.URL.Path)

	re = rateLimiter(re)
	return re
}
