package memory

import (
	"context"
	"sync"

	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
	"github.com/acorlabs/approval/service/dao/criteria"
)

// Service is an in-memory, thread-safe store for approval process instances.
// It enforces the same optimistic-concurrency contract as the durable
// implementations: a save whose revision does not match the stored one fails
// with dao.ErrConflict. All methods work with deep copies so that callers
// never share level slices with the store.
type Service struct {
	instances map[string]*instance.Instance
	mux       sync.RWMutex
}

var _ dao.Service[string, instance.Instance] = (*Service)(nil)

func New() *Service {
	return &Service{instances: map[string]*instance.Instance{}}
}

// Save creates the instance when its revision is zero, otherwise replaces the
// stored record as a whole. On success the caller's revision is advanced to
// the newly stored value.
func (s *Service) Save(_ context.Context, inst *instance.Instance) error {
	if inst == nil {
		return dao.ErrNilEntity
	}
	if inst.CorrelationID == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	existing := s.instances[inst.CorrelationID]
	switch {
	case existing == nil && inst.Revision != 0:
		return dao.ErrConflict
	case existing != nil && existing.Revision != inst.Revision:
		return dao.ErrConflict
	}
	inst.Revision++
	s.instances[inst.CorrelationID] = inst.Clone()
	return nil
}

func (s *Service) Load(_ context.Context, id string) (*instance.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mux.RLock()
	inst, ok := s.instances[id]
	s.mux.RUnlock()

	if !ok {
		return nil, dao.ErrNotFound
	}
	return inst.Clone(), nil
}

func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.instances[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.instances, id)
	return nil
}

func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*instance.Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		if !criteria.FilterByStatus(inst.Status.String(), parameters) {
			continue
		}
		out = append(out, inst.Clone())
	}
	return out, nil
}
