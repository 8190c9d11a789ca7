// Package process loads and caches approval process definitions. Definitions
// are YAML documents resolved relative to a base URL through afs, so they can
// live on the local filesystem, in an embedded FS or in object storage, and
// they can also be registered programmatically by the host application.
package process

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"

	"github.com/acorlabs/approval/model"
)

type Service struct {
	fs        afs.Service
	baseURL   string
	fsOptions []storage.Option
	mux       sync.RWMutex
	cache     map[string]*model.Process
}

type Option func(*Service)

// WithBaseURL sets the location definitions are loaded from.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// WithFsOptions passes storage options (e.g. an embedded FS) to afs.
func WithFsOptions(options ...storage.Option) Option {
	return func(s *Service) { s.fsOptions = options }
}

// WithProcesses registers definitions programmatically.
func WithProcesses(processes ...*model.Process) Option {
	return func(s *Service) {
		for _, p := range processes {
			s.cache[p.ID] = p
		}
	}
}

func New(fs afs.Service, options ...Option) *Service {
	ret := &Service{fs: fs, cache: map[string]*model.Process{}}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Lookup returns the definition for the supplied process id, loading
// <baseURL>/<id>.yaml on first use and caching the parsed result.
func (s *Service) Lookup(ctx context.Context, id string) (*model.Process, error) {
	if id == "" {
		return nil, fmt.Errorf("process id was empty")
	}
	s.mux.RLock()
	cached, ok := s.cache[id]
	s.mux.RUnlock()
	if ok {
		return cached, nil
	}
	if s.baseURL == "" {
		return nil, fmt.Errorf("unknown process: %v", id)
	}
	location := url.Join(s.baseURL, id)
	if filepath.Ext(location) == "" {
		location += ".yaml"
	}
	data, err := s.fs.DownloadWithURL(ctx, location, s.fsOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load process %v from %v: %w", id, location, err)
	}
	process := &model.Process{}
	if err = yaml.Unmarshal(data, process); err != nil {
		return nil, fmt.Errorf("failed to parse process %v: %w", id, err)
	}
	// Documents may rely on the file name for their id.
	if process.ID == "" {
		process.ID = id
	}
	if issues := process.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("failed to parse process %v: %w", id, issues[0])
	}
	s.mux.Lock()
	s.cache[id] = process
	s.mux.Unlock()
	return process, nil
}

// Register adds or replaces a definition in the cache.
func (s *Service) Register(process *model.Process) error {
	if process == nil {
		return fmt.Errorf("process was nil")
	}
	if issues := process.Validate(); len(issues) > 0 {
		return issues[0]
	}
	s.mux.Lock()
	s.cache[process.ID] = process
	s.mux.Unlock()
	return nil
}

// Refresh discards the cached copy so the next Lookup reloads the source.
func (s *Service) Refresh(id string) {
	s.mux.Lock()
	delete(s.cache, id)
	s.mux.Unlock()
}

// DecodeYAML parses and validates a process definition document.
func DecodeYAML(data []byte) (*model.Process, error) {
	process := &model.Process{}
	if err := yaml.Unmarshal(data, process); err != nil {
		return nil, err
	}
	if issues := process.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	return process, nil
}
