// Package apiserver implements the stateless read API: GET /forecasts,
// /metadata, and /health, backed entirely by the hot cache. A request
// handled here never triggers an upstream fetch or a pipeline run.
package apiserver

import (
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matopiba/forecast-pipeline/internal/cache"
)

// Server holds the dependencies the three read handlers share.
type Server struct {
	cache  *cache.Gateway
	logger log.Logger
}

// NewServer builds a Server. Register it with a Registerer via
// RegisterMetrics if Prometheus scraping is wanted.
func NewServer(cacheGateway *cache.Gateway, logger log.Logger) *Server {
	return &Server{cache: cacheGateway, logger: logger}
}

// RegisterMetrics attaches the cache-state collector to reg.
func (s *Server) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(newCollector(s.cache))
}

// Handler returns the mux serving the three read endpoints, wrapped in
// access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecasts", s.handleForecasts)
	mux.HandleFunc("/metadata", s.handleMetadata)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withAccessLog(mux)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		level.Debug(s.logger).Log("msg", "request handled", "path", r.URL.Path, "duration_s", time.Since(start).Seconds())
	})
}
