// Package saga implements the approval-process state machine. Every inbound
// event is handled as one bounded load-validate-progress-persist-notify
// cycle; no instance state is retained in memory between events, so any
// number of router workers or host processes can share the same store.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/acorlabs/approval/model"
	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/runtime/instance"
	"github.com/acorlabs/approval/service/dao"
	"github.com/acorlabs/approval/tracing"
)

// Definitions resolves process definitions referenced by request events.
type Definitions interface {
	Lookup(ctx context.Context, id string) (*model.Process, error)
}

// Notifier publishes status-change notifications. Publication is
// fire-and-forget: implementations log failures and never block the saga
// beyond a bounded timeout.
type Notifier interface {
	StatusUpdated(ctx context.Context, update *message.StatusUpdated)
}

// Service is the saga state machine.
type Service struct {
	instances       dao.Service[string, instance.Instance]
	definitions     Definitions
	notifier        Notifier
	logger          zerolog.Logger
	maxSaveAttempts int
}

// Option configures the saga service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMaxSaveAttempts bounds the reload-and-retry loop on store conflicts.
func WithMaxSaveAttempts(attempts int) Option {
	return func(s *Service) { s.maxSaveAttempts = attempts }
}

// New creates a saga service over the supplied instance store, definition
// registry and notifier.
func New(instances dao.Service[string, instance.Instance], definitions Definitions, notifier Notifier, options ...Option) (*Service, error) {
	if instances == nil {
		return nil, fmt.Errorf("instance store is required")
	}
	if definitions == nil {
		return nil, fmt.Errorf("definitions registry is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	ret := &Service{
		instances:       instances,
		definitions:     definitions,
		notifier:        notifier,
		logger:          zerolog.Nop(),
		maxSaveAttempts: 5,
	}
	for _, option := range options {
		option(ret)
	}
	return ret, nil
}

// Handle applies a single inbound event to its process instance. The returned
// error classifies the outcome: nil (applied or harmless duplicate), one of
// the non-retryable business errors, or ErrPersistenceConflict when the
// bounded save-retry budget was exhausted.
func (s *Service) Handle(ctx context.Context, env *message.Envelope) (err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("saga.Handle %v", env.Kind), "CONSUMER")
	defer tracing.EndSpan(span, err)

	if vErr := env.Validate(); vErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, vErr)
	}
	span.WithAttributes(map[string]string{
		"approval.correlation_id": env.CorrelationID,
		"approval.kind":           string(env.Kind),
	})

	if env.Kind == message.KindRequest {
		return s.handleRequest(ctx, env)
	}
	return s.handleDecision(ctx, env)
}

// handleRequest creates the instance. A request for an already-known
// correlation id is a duplicate delivery and a harmless no-op.
func (s *Service) handleRequest(ctx context.Context, env *message.Envelope) error {
	if _, err := s.instances.Load(ctx, env.CorrelationID); err == nil {
		s.logger.Debug().
			Str("correlation_id", env.CorrelationID).
			Msg("duplicate request, instance already exists")
		return nil
	} else if !errors.Is(err, dao.ErrNotFound) {
		return err
	}

	request := env.Request
	definition, err := s.definitions.Lookup(ctx, request.ProcessID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownProcess, err)
	}

	now := time.Now()
	inst := instance.New(env.CorrelationID, definition, now)
	inst.OrgStructureID = request.OrgStructureID
	inst.RequestOwnerID = request.UserID
	inst.RecordID = request.RecordID
	inst.RecordNumber = request.RecordNumber
	inst.RecordDescription = request.Description
	inst.EntryURI = request.EntryURI
	inst.SourceURI = request.SourceURI
	inst.ApprovalsURI = request.ApprovalsURI

	if err = s.instances.Save(ctx, inst); err != nil {
		if errors.Is(err, dao.ErrConflict) {
			// Lost a create race against a duplicate delivery.
			s.logger.Debug().
				Str("correlation_id", env.CorrelationID).
				Msg("concurrent duplicate request, keeping existing instance")
			return nil
		}
		return err
	}
	s.logger.Info().
		Str("correlation_id", inst.CorrelationID).
		Str("process_id", inst.ProcessID).
		Bool("sequential", inst.Sequential).
		Msg("approval process started")
	s.notify(ctx, inst, request.UserID)
	return nil
}

// handleDecision applies an approve/reject/return/resubmit/cancel event with
// a bounded optimistic-concurrency retry: on a store conflict the instance is
// reloaded and the event re-validated, so a racing event that turned the
// instance terminal degrades this one into a no-op instead of a lost update.
func (s *Service) handleDecision(ctx context.Context, env *message.Envelope) error {
	for attempt := 0; attempt < s.maxSaveAttempts; attempt++ {
		inst, err := s.instances.Load(ctx, env.CorrelationID)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				return fmt.Errorf("%w: %v", ErrUnknownInstance, env.CorrelationID)
			}
			return err
		}

		if inst.Applied(env.ID) {
			s.logger.Debug().
				Str("correlation_id", env.CorrelationID).
				Str("event_id", env.ID).
				Msg("redelivered event, already applied")
			return nil
		}

		now := time.Now()
		changed, userID, err := s.apply(inst, env, now)
		if err != nil {
			return err
		}
		if !changed {
			s.logger.Debug().
				Str("correlation_id", env.CorrelationID).
				Str("kind", string(env.Kind)).
				Msg("duplicate event, no state change")
			return nil
		}
		inst.MarkApplied(env.ID)
		inst.UpdatedAt = now
		if err = s.instances.Save(ctx, inst); err != nil {
			if errors.Is(err, dao.ErrConflict) {
				s.logger.Debug().
					Str("correlation_id", env.CorrelationID).
					Int("attempt", attempt+1).
					Msg("store conflict, reloading instance")
				continue
			}
			return err
		}
		s.logger.Info().
			Str("correlation_id", inst.CorrelationID).
			Str("kind", string(env.Kind)).
			Str("status", inst.Status.String()).
			Msg("approval event applied")
		s.notify(ctx, inst, userID)
		return nil
	}
	return fmt.Errorf("%w: %v after %d attempts", ErrPersistenceConflict, env.CorrelationID, s.maxSaveAttempts)
}

// apply validates the event against the freshly loaded instance and mutates
// it in memory. It reports changed=false for harmless duplicates.
func (s *Service) apply(inst *instance.Instance, env *message.Envelope, now time.Time) (bool, string, error) {
	switch env.Kind {
	case message.KindApprove:
		changed, err := s.applyApprove(inst, env.Approve, now)
		return changed, env.Approve.UserID, err
	case message.KindReject:
		changed, err := s.applyReject(inst, env.Reject, now)
		return changed, env.Reject.UserID, err
	case message.KindReturn:
		changed, err := s.applyReturn(inst, env.Return, now)
		return changed, env.Return.UserID, err
	case message.KindResubmit:
		changed, err := s.applyResubmit(inst, env.Resubmit, now)
		return changed, env.Resubmit.UserID, err
	case message.KindCancel:
		changed, err := s.applyCancel(inst, env.Cancel, now)
		return changed, env.Cancel.UserID, err
	}
	return false, "", fmt.Errorf("%w: unsupported kind %v", ErrInvalidMessage, env.Kind)
}

func (s *Service) applyApprove(inst *instance.Instance, event *message.Approve, now time.Time) (bool, error) {
	levelID, done, err := s.resolveLevel(inst, event.LevelID, instance.StatusApproved)
	if done || err != nil {
		return false, err
	}
	level := inst.Level(levelID)
	if level == nil {
		return false, invalid(inst, "unknown level %q", levelID)
	}
	if level.Decision == instance.DecisionApproved {
		// Duplicate delivery of an already-applied approval.
		return false, nil
	}
	if inst.Status.Terminal() {
		return false, invalid(inst, "instance is %v", inst.Status)
	}
	if !inst.IsOpen(levelID) {
		return false, invalid(inst, "level %q is not awaiting a decision", levelID)
	}
	inst.ApplyApproval(levelID, event.UserID, event.Comment, now)
	return true, nil
}

func (s *Service) applyReject(inst *instance.Instance, event *message.Reject, now time.Time) (bool, error) {
	if inst.Status == instance.StatusRejected {
		return false, nil
	}
	levelID, done, err := s.resolveLevel(inst, event.LevelID, instance.StatusRejected)
	if done || err != nil {
		return false, err
	}
	if inst.Status.Terminal() {
		return false, invalid(inst, "instance is %v", inst.Status)
	}
	if !inst.IsOpen(levelID) {
		return false, invalid(inst, "level %q is not awaiting a decision", levelID)
	}
	inst.ApplyRejection(levelID, event.UserID, event.Reason, now)
	return true, nil
}

func (s *Service) applyReturn(inst *instance.Instance, event *message.Return, now time.Time) (bool, error) {
	if inst.Status == instance.StatusReturned {
		return false, nil
	}
	levelID, done, err := s.resolveLevel(inst, event.LevelID, instance.StatusReturned)
	if done || err != nil {
		return false, err
	}
	if inst.Status.Terminal() {
		return false, invalid(inst, "instance is %v", inst.Status)
	}
	if !inst.IsOpen(levelID) {
		return false, invalid(inst, "level %q is not awaiting a decision", levelID)
	}
	inst.ApplyReturn(levelID, event.UserID, event.Reason, now)
	return true, nil
}

func (s *Service) applyResubmit(inst *instance.Instance, _ *message.Resubmit, now time.Time) (bool, error) {
	switch inst.Status {
	case instance.StatusReturned:
		inst.ApplyResubmit(now)
		return true, nil
	case instance.StatusPending:
		// Duplicate delivery of a resubmission that already went through.
		return false, nil
	default:
		return false, invalid(inst, "instance is %v", inst.Status)
	}
}

func (s *Service) applyCancel(inst *instance.Instance, _ *message.Cancel, now time.Time) (bool, error) {
	if inst.Status == instance.StatusCancelled {
		return false, nil
	}
	if inst.Status.Terminal() {
		return false, invalid(inst, "instance is %v", inst.Status)
	}
	inst.ApplyCancel(now)
	return true, nil
}

// resolveLevel determines the level a decision applies to. An empty level id
// means the currently open level of a sequential instance; parallel instances
// must name the level explicitly. done=true signals a harmless duplicate that
// needs no further processing (e.g. replaying the final approval after the
// instance already reached duplicateOf).
func (s *Service) resolveLevel(inst *instance.Instance, levelID string, duplicateOf instance.Status) (string, bool, error) {
	if levelID != "" {
		return levelID, false, nil
	}
	if !inst.Sequential {
		return "", false, invalid(inst, "parallel instance requires an explicit level")
	}
	if inst.CurrentLevelID == "" {
		if inst.Status == duplicateOf {
			return "", true, nil
		}
		return "", false, invalid(inst, "no level awaiting a decision")
	}
	return inst.CurrentLevelID, false, nil
}

func invalid(inst *instance.Instance, format string, args ...interface{}) error {
	detail := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %v (correlation %v)", ErrInvalidTransition, detail, inst.CorrelationID)
}

// notify publishes the status change. The transition is already durable at
// this point; a failed publication must never undo it, so the notifier only
// logs transport problems.
func (s *Service) notify(ctx context.Context, inst *instance.Instance, userID string) {
	s.notifier.StatusUpdated(ctx, &message.StatusUpdated{
		CorrelationID:     inst.CorrelationID,
		UserID:            userID,
		Status:            inst.Status.String(),
		ProcessID:         inst.ProcessID,
		OrgStructureID:    inst.OrgStructureID,
		RecordID:          inst.RecordID,
		RecordNumber:      inst.RecordNumber,
		RecordDescription: inst.RecordDescription,
		EntryURI:          inst.EntryURI,
		SourceURI:         inst.SourceURI,
		ApprovalsURI:      inst.ApprovalsURI,
		UpdatedAt:         inst.UpdatedAt,
	})
}
