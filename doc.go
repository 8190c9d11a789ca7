// Package approval provides a message-driven approval workflow engine.
//
// A record (a document, a transaction) moves through one or more approval
// levels, driven entirely by asynchronous events and with durable state that
// survives process restarts. The core is the approval-process saga: a
// correlation-keyed state machine that receives request, approve, reject,
// return, resubmit and cancel events, advances a sequential or parallel set
// of approval levels and emits status-change notifications. Pluggable
// service layers keep the engine embeddable:
//
//   - messaging – queue vendors (memory, filesystem, NATS JetStream)
//   - dao       – instance stores with optimistic concurrency (memory,
//     filesystem, Postgres)
//   - saga      – the state machine itself
//   - router    – per-correlation-id serialised event dispatch
//   - notifier  – fire-and-forget status notifications
//
// End-users typically interact with the engine via the high-level Service
// façade exposed by this package:
//
//	srv, _ := approval.New(approval.WithProcesses(def))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	id, _ := rt.Publisher().RequestApproval(ctx, &message.Request{ProcessID: def.ID, ...})
//
// For more details see the individual sub-packages.
package approval
