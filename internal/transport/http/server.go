// Package httptransport builds the HTTP server fronting the forecast API.
package httptransport

import (
	"net/http"
	"time"
)

// ServerConfig contains tunables for the HTTP server. ForecastWait is the
// worker response timeout; the write timeout is derived from it so a slow
// forecast is not cut off mid-response.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
	ForecastWait time.Duration
}

// writeTimeoutSlack covers response serialization after the worker replies.
const writeTimeoutSlack = 10 * time.Second

// NewServer creates an *http.Server with the provided handler.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.ForecastWait + writeTimeoutSlack,
		IdleTimeout:  idleTimeout,
	}
}
