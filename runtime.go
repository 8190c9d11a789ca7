package approval

import (
	"context"

	"github.com/acorlabs/approval/client"
	"github.com/acorlabs/approval/model"
	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
	"github.com/acorlabs/approval/service/messaging"
	"github.com/acorlabs/approval/service/router"
	"github.com/acorlabs/approval/service/saga"
)

// Runtime controls the lifecycle of an assembled engine and exposes the
// handles host applications interact with: the event publisher, the instance
// query surface and the outbound status queue.
type Runtime struct {
	service   *Service
	saga      *saga.Service
	router    *router.Service
	publisher *client.Publisher
}

// Start launches the router workers consuming the inbound queue.
func (r *Runtime) Start(ctx context.Context) error {
	return r.router.Start(ctx)
}

// Shutdown stops the router workers and waits for in-flight events to settle.
func (r *Runtime) Shutdown() {
	r.router.Shutdown()
}

// Publisher returns the typed publisher used to originate approval events.
func (r *Runtime) Publisher() *client.Publisher {
	return r.publisher
}

// Handle applies one inbound event synchronously, bypassing the queue. Useful
// for tests and for hosts that run their own transport.
func (r *Runtime) Handle(ctx context.Context, env *message.Envelope) error {
	return r.saga.Handle(ctx, env)
}

// Instance returns the current durable state of a process instance.
func (r *Runtime) Instance(ctx context.Context, correlationID string) (*instance.Instance, error) {
	return r.service.instances.Load(ctx, correlationID)
}

// Instances lists process instances, optionally narrowed by parameters such
// as dao.NewParameter("Status", "pending").
func (r *Runtime) Instances(ctx context.Context, parameters ...*dao.Parameter) ([]*instance.Instance, error) {
	return r.service.instances.List(ctx, parameters...)
}

// Definition resolves a process definition by id.
func (r *Runtime) Definition(ctx context.Context, id string) (*model.Process, error) {
	return r.service.definitions.Lookup(ctx, id)
}

// StatusUpdates returns the outbound queue carrying status notifications, so
// hosts can consume them with their own workers.
func (r *Runtime) StatusUpdates() messaging.Queue[message.StatusUpdated] {
	return r.service.status
}
