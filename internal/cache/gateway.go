// Package cache implements the hot KV gateway: a per-key-TTL store
// holding the latest published Snapshot for the read API.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/klauspost/compress/zstd"

	"github.com/matopiba/forecast-pipeline/internal/domain"
)

const (
	// KeyForecastsLatest holds the binary-encoded Snapshot.
	KeyForecastsLatest = "matopiba:forecasts:latest"
	// KeyMetadataLatest holds the JSON-encoded RunMetadata.
	KeyMetadataLatest = "matopiba:metadata:latest"

	// TTL is applied to both keys on every successful write.
	TTL = 6 * time.Hour

	forecastsPrefix = "matopiba:forecasts:"
	metadataPrefix  = "matopiba:metadata:"
)

// ErrNotFound is returned when a key has expired or was never written.
var ErrNotFound = errors.New("cache: not found")

// Gateway is a typed read/write front for the hot cache.
type Gateway struct {
	store    *expirable.LRU[string, []byte]
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewGateway builds a Gateway with room for `capacity` entries (the
// pipeline only ever holds two live keys, but headroom allows legacy
// keys to coexist briefly during cleanup).
func NewGateway(capacity int) (*Gateway, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("cache: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("cache: zstd decoder: %w", err)
	}
	return &Gateway{
		store:   expirable.NewLRU[string, []byte](capacity, nil, TTL),
		encoder: enc,
		decoder: dec,
	}, nil
}

// PutSnapshot atomically publishes a new Snapshot: the binary snapshot
// key is written before the JSON metadata key, so a reader that finds
// the metadata key always finds a valid, corresponding snapshot key.
// Legacy keys (anything under the forecasts/metadata prefixes other
// than :latest) are swept best-effort after a successful write.
func (g *Gateway) PutSnapshot(s domain.Snapshot) error {
	encoded, err := EncodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("cache: encoding snapshot: %w", err)
	}
	compressed := g.encoder.EncodeAll(encoded, nil)

	metadataJSON, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("cache: encoding metadata: %w", err)
	}

	g.store.Add(KeyForecastsLatest, compressed)
	g.store.Add(KeyMetadataLatest, metadataJSON)

	g.cleanupLegacyKeys()
	return nil
}

// GetSnapshot returns the published snapshot, or ErrNotFound if the
// cache is empty or expired.
func (g *Gateway) GetSnapshot() (domain.Snapshot, error) {
	compressed, ok := g.store.Get(KeyForecastsLatest)
	if !ok {
		return domain.Snapshot{}, ErrNotFound
	}
	raw, err := g.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("cache: decompressing snapshot: %w", err)
	}
	snapshot, err := DecodeSnapshot(raw)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("cache: decoding snapshot: %w", err)
	}
	return snapshot, nil
}

// GetMetadata returns the published run metadata, or ErrNotFound.
func (g *Gateway) GetMetadata() (domain.RunMetadata, error) {
	raw, ok := g.store.Get(KeyMetadataLatest)
	if !ok {
		return domain.RunMetadata{}, ErrNotFound
	}
	var m domain.RunMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.RunMetadata{}, fmt.Errorf("cache: decoding metadata: %w", err)
	}
	return m, nil
}

// cleanupLegacyKeys removes any stored key under the forecasts/metadata
// prefixes that isn't one of the two current :latest keys. Best-effort:
// callers never fail the run because of a cleanup miss.
func (g *Gateway) cleanupLegacyKeys() {
	for _, key := range g.store.Keys() {
		if key == KeyForecastsLatest || key == KeyMetadataLatest {
			continue
		}
		if strings.HasPrefix(key, forecastsPrefix) || strings.HasPrefix(key, metadataPrefix) {
			g.store.Remove(key)
		}
	}
}
