package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const maxCatalogSize = 10 * 1024 * 1024 // 10 MB

// ErrEmptyAlbum is returned when a catalog album carries no tracks.
var ErrEmptyAlbum = errors.New("album has no tracks")

// Track is a single entry of an album's track list.
type Track struct {
	Title    string  `json:"title" yaml:"title"`
	Src      string  `json:"src" yaml:"src"`
	BPM      float64 `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	Key      string  `json:"key,omitempty" yaml:"key,omitempty"`
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds, 0 when unknown
}

// Album is an ordered list of tracks with its display metadata.
type Album struct {
	Title  string  `json:"title" yaml:"title"`
	Year   *int    `json:"year,omitempty" yaml:"year,omitempty"`
	Cover  string  `json:"cover" yaml:"cover"`
	Tracks []Track `json:"tracks" yaml:"tracks"`
}

// Runtime returns the summed track durations in seconds, or 0 if any
// track duration is unknown.
func (a Album) Runtime() float64 {
	var total float64
	for _, t := range a.Tracks {
		if t.Duration <= 0 {
			return 0
		}
		total += t.Duration
	}
	return total
}

// Catalog is the ordered album collection. Album order is display order.
type Catalog []Album

// Validate checks that every album can be played from its first track.
func (c Catalog) Validate() error {
	for i, album := range c {
		if len(album.Tracks) == 0 {
			return fmt.Errorf("album %d (%q): %w", i, album.Title, ErrEmptyAlbum)
		}
	}
	return nil
}

// Source returns the catalog to play.
//
//go:generate mockgen -source=catalog.go -destination=mock_source_test.go -package=main
type Source interface {
	Fetch(ctx context.Context) (Catalog, error)
}

// NewSource picks an HTTP or file source for location.
func NewSource(location string, logger *zap.Logger) Source {
	if isRemote(location) {
		return NewHTTPSource(location, logger)
	}
	return &FileSource{Path: location, logger: logger}
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// FileSource reads a catalog from a local JSON or YAML file.
type FileSource struct {
	Path   string
	logger *zap.Logger
}

// Fetch reads and decodes the catalog file.
func (s *FileSource) Fetch(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	catalog, err := decodeCatalog(data, isYAML(s.Path, ""))
	if err != nil {
		return nil, err
	}

	base, err := filepath.Abs(filepath.Dir(s.Path))
	if err != nil {
		base = filepath.Dir(s.Path)
	}
	catalog.resolve(func(ref string) string {
		if ref == "" || isRemote(ref) || filepath.IsAbs(ref) {
			return ref
		}
		return filepath.Join(base, filepath.FromSlash(ref))
	})

	if s.logger != nil {
		s.logger.Debug("Catalog read", zap.String("path", s.Path), zap.Int("albums", len(catalog)))
	}
	return catalog, nil
}

// HTTPSource downloads a catalog from an HTTP(S) URL.
type HTTPSource struct {
	URL    string
	logger *zap.Logger
	client *http.Client
}

// NewHTTPSource creates an HTTP catalog source with a bounded request time.
func NewHTTPSource(rawURL string, logger *zap.Logger) *HTTPSource {
	return &HTTPSource{
		URL:    rawURL,
		logger: logger,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch downloads and decodes the catalog.
func (s *HTTPSource) Fetch(ctx context.Context) (Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	catalog, err := decodeCatalog(data, isYAML(req.URL.Path, resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, err
	}

	base := req.URL
	catalog.resolve(func(ref string) string {
		if ref == "" || isRemote(ref) {
			return ref
		}
		u, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return base.ResolveReference(u).String()
	})

	if s.logger != nil {
		s.logger.Debug("Catalog fetched", zap.String("url", s.URL), zap.Int("albums", len(catalog)), zap.Int("bytes", len(data)))
	}
	return catalog, nil
}

func isYAML(name, contentType string) bool {
	if strings.Contains(contentType, "yaml") {
		return true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decodeCatalog(data []byte, asYAML bool) (Catalog, error) {
	var catalog Catalog
	if asYAML {
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to decode yaml catalog: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("failed to decode json catalog: %w", err)
		}
	}
	return catalog, nil
}

// resolve rewrites every cover and track reference in place.
func (c Catalog) resolve(fn func(string) string) {
	for i := range c {
		c[i].Cover = fn(c[i].Cover)
		for j := range c[i].Tracks {
			c[i].Tracks[j].Src = fn(c[i].Tracks[j].Src)
		}
	}
}
