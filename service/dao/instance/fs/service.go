package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
	"github.com/acorlabs/approval/service/dao/criteria"
)

// Service persists approval process instances as one JSON document per
// correlation id under a base URL. Any storage scheme supported by afs works
// (file, mem, s3, gs, ...). Revision checks are performed read-modify-write
// under a process-local mutex; cross-process safety additionally relies on
// the router serialising events per correlation id, with the revision check
// acting as the safety net.
type Service struct {
	baseURL string
	fs      afs.Service
	mux     sync.Mutex
}

var _ dao.Service[string, instance.Instance] = (*Service)(nil)

func New(fs afs.Service, baseURL string) *Service {
	return &Service{fs: fs, baseURL: baseURL}
}

func (s *Service) Save(ctx context.Context, inst *instance.Instance) error {
	if inst == nil {
		return dao.ErrNilEntity
	}
	if inst.CorrelationID == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	stored, err := s.load(ctx, inst.CorrelationID)
	if err != nil && err != dao.ErrNotFound {
		return err
	}
	switch {
	case stored == nil && inst.Revision != 0:
		return dao.ErrConflict
	case stored != nil && stored.Revision != inst.Revision:
		return dao.ErrConflict
	}
	inst.Revision++

	data, err := json.Marshal(inst)
	if err != nil {
		inst.Revision--
		return fmt.Errorf("failed to marshal instance %v: %w", inst.CorrelationID, err)
	}
	location := s.instanceURL(inst.CorrelationID)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		inst.Revision--
		return fmt.Errorf("failed to upload instance to %v: %w", location, err)
	}
	return nil
}

func (s *Service) Load(ctx context.Context, id string) (*instance.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*instance.Instance, error) {
	location := s.instanceURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check instance %v: %w", location, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance %v: %w", location, err)
	}
	ret := &instance.Instance{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance %v: %w", location, err)
	}
	return ret, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	location := s.instanceURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check instance %v: %w", location, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, location)
}

func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list instances in %v: %w", s.baseURL, err)
	}
	var out []*instance.Instance
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to read instance %v: %w", object.URL(), err)
		}
		inst := &instance.Instance{}
		if err = json.Unmarshal(data, inst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instance %v: %w", object.URL(), err)
		}
		if !criteria.FilterByStatus(inst.Status.String(), parameters) {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *Service) instanceURL(id string) string {
	return url.Join(s.baseURL, id+".json")
}
