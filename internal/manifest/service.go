package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/starford/primer/internal/apperr"
	"github.com/starford/primer/internal/fetch"
	"github.com/starford/primer/internal/meta"
	"github.com/starford/primer/internal/storage"
)

// Service retrieves the registry, caches it verbatim at the mirror root,
// and memoizes the parsed form. Get stays off the network whenever a
// valid local copy exists; Refresh always hits the origin.
type Service struct {
	store   storage.Provider
	client  *fetch.Client
	metas   *meta.Store
	baseURL string
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	cached *Manifest
}

// NewService creates a registry service fetching from baseURL.
func NewService(store storage.Provider, client *fetch.Client, metas *meta.Store, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		client:  client,
		metas:   metas,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// URL returns the remote location of the registry document.
func (s *Service) URL() string {
	return s.baseURL + "/" + FileName
}

// FileURL returns the remote location of one file within a bundle.
func (s *Service) FileURL(bundle, file string) string {
	return s.baseURL + "/" + bundle + "/" + file
}

// Get returns the registry, preferring the in-memory copy, then the
// local cached document, and fetching from the origin only when neither
// is usable.
func (s *Service) Get(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return s.cached, nil
	}
	if m := s.loadLocal(); m != nil {
		s.cached = m
		return m, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return s.cached, nil
}

// Refresh fetches the registry from the origin, conditionally when a
// cached etag is on record.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Service) refreshLocked(ctx context.Context) error {
	etag := s.metas.Read().RegistryETag
	res, err := s.client.Get(ctx, s.URL(), etag)
	if err != nil {
		return err
	}

	if res.Status == fetch.Unmodified {
		if m := s.loadLocal(); m != nil {
			s.cached = m
			return s.metas.Update(func(mm *meta.Meta) {
				mm.RegistryFetchedAt = s.now().UTC()
			})
		}
		// The origin confirmed our etag but the local copy is missing
		// or unparseable. Drop the validator and fetch fresh.
		s.logger.Warn("manifest: local registry unusable after 304, refetching", slog.String("url", s.URL()))
		res, err = s.client.Get(ctx, s.URL(), "")
		if err != nil {
			return err
		}
		if res.Status != fetch.Changed {
			return &apperr.FetchError{URL: s.URL(), StatusCode: http.StatusNotModified}
		}
	}

	parsed, err := Parse(res.Content)
	if err != nil {
		return err
	}
	if err := s.store.Write(FileName, res.Content); err != nil {
		return fmt.Errorf("manifest: persist registry: %w", err)
	}
	if err := s.metas.Update(func(m *meta.Meta) {
		m.RegistryFetchedAt = s.now().UTC()
		m.RegistryETag = res.ETag
	}); err != nil {
		return err
	}

	s.cached = parsed
	s.logger.Info("manifest: registry refreshed",
		slog.String("url", s.URL()),
		slog.Int("bundles", len(parsed.Bundles)))
	return nil
}

// loadLocal reads and parses the cached registry document, returning nil
// when it is absent or invalid.
func (s *Service) loadLocal() *Manifest {
	data, err := s.store.Read(FileName)
	if err != nil {
		return nil
	}
	m, err := Parse(data)
	if err != nil {
		s.logger.Warn("manifest: cached registry invalid", slog.String("error", err.Error()))
		return nil
	}
	return m
}
