package calldata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"starkshield/internal/platform/metrics"
	"starkshield/internal/platform/tracer"
	"starkshield/internal/predicate"
	dErrors "starkshield/pkg/domain-errors"
)

// ResourceError reports a verifying key that could not be loaded. Status follows
// HTTP semantics for local files too: 404 when missing, 500 when unreadable.
type ResourceError struct {
	Path   string
	Status int
	Err    error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("failed to load VK file from %s: %d", e.Path, e.Status)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// VKPaths maps each predicate to its verifying-key path relative to the base.
type VKPaths map[predicate.Type]string

// DefaultVKPaths returns the asset paths of the deployed circuits.
func DefaultVKPaths() VKPaths {
	return VKPaths{
		predicate.Age:        "/vk/age_verify.vk",
		predicate.Membership: "/vk/membership_proof.vk",
	}
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// VKSource loads verifying keys from an http(s) base URL or a local directory.
// Successful loads are cached for the process lifetime; failures are not.
type VKSource struct {
	base    string
	paths   VKPaths
	client  HTTPDoer
	tracer  tracer.Tracer
	metrics *metrics.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	cache map[predicate.Type][]byte
}

type VKOption func(*VKSource)

func WithHTTPClient(c HTTPDoer) VKOption {
	return func(s *VKSource) {
		s.client = c
	}
}

func WithVKTracer(t tracer.Tracer) VKOption {
	return func(s *VKSource) {
		s.tracer = t
	}
}

func WithVKMetrics(m *metrics.Metrics) VKOption {
	return func(s *VKSource) {
		s.metrics = m
	}
}

func NewVKSource(base string, paths VKPaths, opts ...VKOption) *VKSource {
	if paths == nil {
		paths = DefaultVKPaths()
	}
	s := &VKSource{
		base:   strings.TrimRight(base, "/"),
		paths:  paths,
		client: &http.Client{Timeout: 30 * time.Second},
		tracer: tracer.NewNoop(),
		cache:  map[predicate.Type][]byte{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the verifying key for p. Concurrent loads of the same key share
// one request.
func (s *VKSource) Fetch(ctx context.Context, p predicate.Type) (_ []byte, err error) {
	s.mu.RLock()
	vk, ok := s.cache[p]
	s.mu.RUnlock()
	if ok {
		s.metrics.IncVKFetch("hit")
		return vk, nil
	}

	path, ok := s.paths[p]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("no verifying key configured for %s", p))
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanFetchVK, tracer.String(tracer.AttrPredicate, p.String()))
	defer func() { span.End(err) }()

	v, err, _ := s.group.Do(p.String(), func() (any, error) {
		data, err := s.load(ctx, path)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[p] = data
		s.mu.Unlock()
		return data, nil
	})
	if err != nil {
		s.metrics.IncVKFetch("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeResource, err.Error())
	}
	s.metrics.IncVKFetch("loaded")
	return v.([]byte), nil
}

func (s *VKSource) load(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(s.base, "http://") || strings.HasPrefix(s.base, "https://") {
		return s.loadHTTP(ctx, path)
	}
	return s.loadFile(path)
}

func (s *VKSource) loadHTTP(ctx context.Context, path string) ([]byte, error) {
	url := s.base + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ResourceError{Path: path, Status: http.StatusInternalServerError, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ResourceError{Path: path, Status: http.StatusServiceUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResourceError{Path: path, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResourceError{Path: path, Status: resp.StatusCode, Err: err}
	}
	return data, nil
}

func (s *VKSource) loadFile(path string) ([]byte, error) {
	full := filepath.Join(s.base, filepath.FromSlash(strings.TrimLeft(path, "/")))
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ResourceError{Path: path, Status: http.StatusNotFound, Err: err}
	}
	if err != nil {
		return nil, &ResourceError{Path: path, Status: http.StatusInternalServerError, Err: err}
	}
	return data, nil
}
