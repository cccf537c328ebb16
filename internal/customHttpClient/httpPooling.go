package customHttpClient

import (
	"net/http"
	"time"

	"github.com/akolanti/PdfQA/internal/config"
)

// one transport for every REST backend so connections to the same host are reused
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// NewPooledClient returns a client sharing the pooled transport. A zero timeout leaves
// cancellation to the request context.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: customTransport,
		Timeout:   timeout,
	}
}
