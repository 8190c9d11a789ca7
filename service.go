package approval

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"

	"github.com/acorlabs/approval/client"
	"github.com/acorlabs/approval/model"
	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
	imemory "github.com/acorlabs/approval/service/dao/instance/memory"
	"github.com/acorlabs/approval/service/dao/process"
	"github.com/acorlabs/approval/service/messaging"
	qmemory "github.com/acorlabs/approval/service/messaging/memory"
	"github.com/acorlabs/approval/service/notifier"
	"github.com/acorlabs/approval/service/router"
	"github.com/acorlabs/approval/service/saga"
	"github.com/acorlabs/approval/tracing"
)

// Service is the engine assembly: it wires queues, stores, the saga, the
// router and the notifier into a runnable unit. Every collaborator can be
// swapped through options; anything left unset falls back to an in-memory
// default so that a bare New() yields a working single-process engine.
type Service struct {
	config    *Config
	logger    zerolog.Logger
	inbound   messaging.Queue[message.Envelope]
	status    messaging.Queue[message.StatusUpdated]
	instances dao.Service[string, instance.Instance]

	definitions          *process.Service
	definitionsBaseURL   string
	definitionsFsOptions []storage.Option
	processes            []*model.Process

	traceEnabled bool
	traceService string
	traceVersion string
	traceOutput  string

	runtime *Runtime
}

// New creates an engine service with the supplied options.
func New(options ...Option) (*Service, error) {
	ret := &Service{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

// init fills in defaults and assembles the runtime.
func (s *Service) init() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	s.ensureBaseSetup()

	sagaService, err := saga.New(s.instances, s.definitions, s.notifierService(),
		saga.WithLogger(s.logger),
		saga.WithMaxSaveAttempts(s.config.Saga.MaxSaveAttempts))
	if err != nil {
		return err
	}
	routerService, err := router.New(s.inbound, sagaService,
		router.WithConfig(router.Config{WorkerCount: s.config.Router.WorkerCount}),
		router.WithLogger(s.logger))
	if err != nil {
		return err
	}

	s.runtime = &Runtime{
		service:   s,
		saga:      sagaService,
		router:    routerService,
		publisher: client.New(s.inbound),
	}
	return nil
}

// ensureBaseSetup provides in-memory defaults for all unset collaborators.
func (s *Service) ensureBaseSetup() {
	if s.inbound == nil {
		s.inbound = qmemory.NewQueue[message.Envelope](qmemory.DefaultConfig())
	}
	if s.status == nil {
		s.status = qmemory.NewQueue[message.StatusUpdated](qmemory.DefaultConfig())
	}
	if s.instances == nil {
		s.instances = imemory.New()
	}
	if s.definitions == nil {
		var options []process.Option
		if s.definitionsBaseURL != "" {
			options = append(options,
				process.WithBaseURL(s.definitionsBaseURL),
				process.WithFsOptions(s.definitionsFsOptions...))
		}
		s.definitions = process.New(afs.New(), options...)
	}
	for _, definition := range s.processes {
		if err := s.definitions.Register(definition); err != nil {
			s.logger.Warn().Err(err).Str("process_id", definition.ID).Msg("invalid process definition skipped")
		}
	}
	if s.traceEnabled {
		if err := tracing.Init(s.traceService, s.traceVersion, s.traceOutput); err != nil {
			s.logger.Warn().Err(err).Msg("tracing initialisation failed")
		}
	}
}

func (s *Service) notifierService() *notifier.Service {
	return notifier.New(s.status,
		notifier.WithLogger(s.logger),
		notifier.WithTimeout(time.Duration(s.config.Notifier.TimeoutMs)*time.Millisecond))
}

// Runtime returns the runtime controlling the engine lifecycle.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}
