package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-kit/log/level"

	"github.com/matopiba/forecast-pipeline/internal/cache"
	"github.com/matopiba/forecast-pipeline/internal/domain"
)

// lookupTimeout bounds how long a single cache read may block a request;
// it is a hard cutoff, not a soft budget.
const lookupTimeout = 2 * time.Second

type snapshotLookup struct {
	snap domain.Snapshot
	err  error
}

type metadataLookup struct {
	meta domain.RunMetadata
	err  error
}

func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	resultCh := make(chan snapshotLookup, 1)
	go func() {
		snap, err := s.cache.GetSnapshot()
		resultCh <- snapshotLookup{snap: snap, err: err}
	}()

	select {
	case <-ctx.Done():
		level.Error(s.logger).Log("msg", "forecasts lookup timed out")
		http.Error(w, `{"error":"lookup_timeout"}`, http.StatusServiceUnavailable)
	case res := <-resultCh:
		if errors.Is(res.err, cache.ErrNotFound) {
			s.writeCacheEmpty(w)
			return
		}
		if res.err != nil {
			level.Error(s.logger).Log("msg", "forecasts lookup failed", "err", res.err)
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toForecastsResponse(res.snap))
	}
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	resultCh := make(chan metadataLookup, 1)
	go func() {
		meta, err := s.cache.GetMetadata()
		resultCh <- metadataLookup{meta: meta, err: err}
	}()

	select {
	case <-ctx.Done():
		level.Error(s.logger).Log("msg", "metadata lookup timed out")
		http.Error(w, `{"error":"lookup_timeout"}`, http.StatusServiceUnavailable)
	case res := <-resultCh:
		if errors.Is(res.err, cache.ErrNotFound) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "cache_empty"})
			return
		}
		if res.err != nil {
			level.Error(s.logger).Log("msg", "metadata lookup failed", "err", res.err)
			http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toMetadataJSON(res.meta))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeCacheEmpty(w http.ResponseWriter) {
	hint := ""
	if meta, err := s.cache.GetMetadata(); err == nil {
		hint = meta.NextUpdateUTC.UTC().Format("2006-01-02T15:04:05Z")
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "cache_empty", NextUpdateUTC: hint})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
