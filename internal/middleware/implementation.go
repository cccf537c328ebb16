package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/akolanti/PdfQA/internal/adapter/utils"
	"github.com/akolanti/PdfQA/internal/config"
	"github.com/akolanti/PdfQA/internal/handlers"
	"github.com/go-chi/cors"
)

const traceHeader = "X-Trace-Id"

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	if req == nil {
		//this is a bad request
		re.badRequest.httpCode = http.StatusBadRequest
		re.badRequest.errorMessage = "request is empty"
		re.badRequest.isBadRequest = true
		return re
	}
	trace := req.Header.Get(traceHeader)
	if trace == "" {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With(config.TRACE_ID_KEY, trace)
	ctx := context.WithValue(req.Context(), config.TRACE_ID_KEY, trace)
	req.Header.Set(traceHeader, trace)
	re.writer.Header().Set(traceHeader, trace)
	re.req = req.WithContext(ctx)

	re.logger.Debug("trace middleware injected")
	return re
}

func rateLimiter(re requestResponseStruct) requestResponseStruct {
	ip, _, err := net.SplitHostPort(re.req.RemoteAddr)
	if err != nil {
		ip = re.req.RemoteAddr
	}

	if !limiterInstance.GetLimiter(ip).Allow() {
		re.logger.Warn("Too many requests", "ip", ip)
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "Rate limit exceeded",
		}
		return re
	}
	return re
}

// handleBadRequest writes the failure and reports whether the request may continue.
func handleBadRequest(re requestResponseStruct) bool {
	if re.badRequest.isBadRequest {
		remote := ""
		if re.req != nil {
			remote = re.req.RemoteAddr
		}
		re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "IP", remote)
		handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, re.badRequest.errorMessage)
		return false
	}
	return true
}

// CORS allows the configured browser origins to call the API.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Requested-With", traceHeader},
		ExposedHeaders:   []string{traceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
