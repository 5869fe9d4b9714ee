package reranker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lk2023060901/rerank-gateway/internal/pkg/logger"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// Constructor builds a backend from its configuration
type Constructor func(cfg *Config, lgr *logger.Logger) (Backend, error)

// Factory creates backend instances
type Factory struct {
	mu           sync.RWMutex
	constructors map[types.BackendID]Constructor
	logger       *logger.Logger
}

// NewFactory creates a new backend factory with the built-in backends registered
func NewFactory(lgr *logger.Logger) *Factory {
	if lgr == nil {
		lgr = logger.L()
	}

	f := &Factory{
		constructors: make(map[types.BackendID]Constructor),
		logger:       lgr,
	}

	f.Register(types.BackendOpenAICompatible, NewOpenAICompatibleBackend)
	f.Register(types.BackendCohere, NewCohereBackend)

	return f
}

// Register registers a backend constructor
func (f *Factory) Register(id types.BackendID, constructor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[id] = constructor
}

// Create creates a backend instance from configuration
func (f *Factory) Create(cfg *Config) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	f.mu.RLock()
	constructor, exists := f.constructors[cfg.ID]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownBackend, cfg.ID)
	}

	return constructor(cfg, f.logger)
}

// ListBackends returns the registered backend IDs, sorted
func (f *Factory) ListBackends() []types.BackendID {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]types.BackendID, 0, len(f.constructors))
	for id := range f.constructors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registry holds the configured backends of a process and its default choice
type Registry struct {
	backends  map[types.BackendID]Backend
	defaultID types.BackendID
}

// NewRegistry creates a registry; defaultID must be one of the backends
func NewRegistry(defaultID types.BackendID, backends ...Backend) (*Registry, error) {
	r := &Registry{
		backends:  make(map[types.BackendID]Backend, len(backends)),
		defaultID: defaultID,
	}
	for _, b := range backends {
		r.backends[b.ID()] = b
	}

	if _, ok := r.backends[defaultID]; !ok {
		return nil, fmt.Errorf("%w: default backend %q is not configured", types.ErrUnknownBackend, defaultID)
	}
	return r, nil
}

// Get returns the backend with the given ID; an empty ID selects the default
func (r *Registry) Get(id types.BackendID) (Backend, error) {
	if id == "" {
		id = r.defaultID
	}
	b, ok := r.backends[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownBackend, id)
	}
	return b, nil
}

// Default returns the default backend ID
func (r *Registry) Default() types.BackendID {
	return r.defaultID
}
