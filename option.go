package approval

import (
	"github.com/rs/zerolog"
	"github.com/viant/afs/storage"

	"github.com/acorlabs/approval/model"
	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
	"github.com/acorlabs/approval/service/dao/process"
	"github.com/acorlabs/approval/service/messaging"
)

// Option configures the engine service.
type Option func(*Service)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithLogger sets the structured logger shared by all engine components.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithInboundQueue sets the queue inbound approval events are consumed from.
// Defaults to an in-memory queue.
func WithInboundQueue(queue messaging.Queue[message.Envelope]) Option {
	return func(s *Service) { s.inbound = queue }
}

// WithStatusQueue sets the queue status notifications are published on.
// Defaults to an in-memory queue.
func WithStatusQueue(queue messaging.Queue[message.StatusUpdated]) Option {
	return func(s *Service) { s.status = queue }
}

// WithInstanceDAO sets the durable instance store. Defaults to the in-memory
// store, which is only suitable for tests and single-process deployments.
func WithInstanceDAO(store dao.Service[string, instance.Instance]) Option {
	return func(s *Service) { s.instances = store }
}

// WithDefinitions sets the process definition registry.
func WithDefinitions(definitions *process.Service) Option {
	return func(s *Service) { s.definitions = definitions }
}

// WithDefinitionsBaseURL points the default definition registry at a
// location (file path, embedded FS URL, object storage URL) holding one
// <processID>.yaml document per definition.
func WithDefinitionsBaseURL(baseURL string, options ...storage.Option) Option {
	return func(s *Service) {
		s.definitionsBaseURL = baseURL
		s.definitionsFsOptions = options
	}
}

// WithProcesses registers definitions programmatically.
func WithProcesses(processes ...*model.Process) Option {
	return func(s *Service) { s.processes = append(s.processes, processes...) }
}

// WithRouterWorkers overrides the number of router workers.
func WithRouterWorkers(count int) Option {
	return func(s *Service) { s.config.Router.WorkerCount = count }
}

// WithTracing enables OpenTelemetry tracing with the stdout exporter; an
// empty outputFile writes spans to standard output.
func WithTracing(serviceName, version, outputFile string) Option {
	return func(s *Service) {
		s.traceService = serviceName
		s.traceVersion = version
		s.traceOutput = outputFile
		s.traceEnabled = true
	}
}
