package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NotificationDispatcher delivers workflow notifications. Delivery is best
// effort: a dispatch failure never rolls back a committed state transition.
type NotificationDispatcher interface {
	ProposalSubmitted(ctx context.Context, ev *Event, info *EventContext, caregiverName string) error
	ProposalConfirmed(ctx context.Context, ev *Event, info *EventContext) error
	ProposalRejected(ctx context.Context, ev *Event, info *EventContext) error
	ProposalAutoApproved(ctx context.Context, ev *Event, info *EventContext) error
}

// Service implements the event confirmation workflow on top of the
// repository's guarded transitions.
type Service struct {
	repo          EventRepository
	dispatcher    NotificationDispatcher
	pendingWindow time.Duration
	log           zerolog.Logger
}

func NewService(repo EventRepository, dispatcher NotificationDispatcher, pendingWindow time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		dispatcher:    dispatcher,
		pendingWindow: pendingWindow,
		log:           log,
	}
}

var validEventTypes = map[string]bool{
	"fall": true, "wandering": true, "immobility": true,
	"bed_exit": true, "distress": true, "intrusion": true,
}

var validStatuses = map[string]bool{
	"open": true, "in_progress": true, "resolved": true,
	"false_alarm": true, "escalated": true,
}

func (s *Service) CreateEvent(ctx context.Context, ev *Event) error {
	if ev.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if ev.CameraID == uuid.Nil {
		return fmt.Errorf("camera_id is required")
	}
	if !validEventTypes[ev.EventType] {
		return fmt.Errorf("invalid event_type: %s", ev.EventType)
	}
	if ev.Status == "" {
		ev.Status = "open"
	}
	if !validStatuses[ev.Status] {
		return fmt.Errorf("invalid status: %s", ev.Status)
	}
	return s.repo.Create(ctx, ev)
}

func (s *Service) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context, params map[string]string, limit, offset int) ([]*Event, int, error) {
	return s.repo.List(ctx, params, limit, offset)
}

// ProposeChange records a caregiver's status proposal and opens the pending
// window. The new status is applied immediately; previous_status keeps the
// rollback target for a later rejection. An optional event type
// reclassification rides along but is only applied once the proposal is
// confirmed or auto-approved. Re-proposing while pending replaces the
// proposal and restarts the window.
func (s *Service) ProposeChange(ctx context.Context, id uuid.UUID, proposedStatus string, proposedEventType *string, caregiverID uuid.UUID, note *string) (*Event, error) {
	if !validStatuses[proposedStatus] {
		return nil, fmt.Errorf("invalid proposed status: %s", proposedStatus)
	}
	if proposedEventType != nil && !validEventTypes[*proposedEventType] {
		return nil, fmt.Errorf("invalid proposed event_type: %s", *proposedEventType)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.ConfirmationState.IsTerminalByCustomer() {
		return nil, decisionConflict(current.ConfirmationState)
	}

	ev, err := s.repo.ProposeChange(ctx, id, ProposalPatch{
		ProposedStatus:    proposedStatus,
		ProposedEventType: proposedEventType,
		ProposedBy:        caregiverID,
		Note:              note,
		PendingUntil:      time.Now().UTC().Add(s.pendingWindow),
	})
	if errors.Is(err, ErrStateChanged) {
		return nil, s.conflictAfterRace(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	s.notify(ctx, ev, func(info *EventContext) error {
		name, nameErr := s.repo.GetUserFullName(ctx, caregiverID)
		if nameErr != nil {
			name = ""
		}
		return s.dispatcher.ProposalSubmitted(ctx, ev, info, name)
	})
	return ev, nil
}

// ConfirmChange finalizes a pending proposal on the customer's behalf.
func (s *Service) ConfirmChange(ctx context.Context, id uuid.UUID, customerID uuid.UUID, note *string) (*Event, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.ConfirmationState.IsPending() {
		return nil, decisionConflict(current.ConfirmationState)
	}

	ev, err := s.repo.ConfirmChange(ctx, id, DecisionPatch{AcknowledgedBy: customerID, Note: note})
	if errors.Is(err, ErrStateChanged) {
		return nil, s.conflictAfterRace(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	s.notify(ctx, ev, func(info *EventContext) error {
		return s.dispatcher.ProposalConfirmed(ctx, ev, info)
	})
	return ev, nil
}

// RejectChange rejects a pending proposal and rolls the event status back.
func (s *Service) RejectChange(ctx context.Context, id uuid.UUID, customerID uuid.UUID, note *string) (*Event, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.ConfirmationState.IsPending() {
		return nil, decisionConflict(current.ConfirmationState)
	}

	ev, err := s.repo.RejectChange(ctx, id, DecisionPatch{AcknowledgedBy: customerID, Note: note})
	if errors.Is(err, ErrStateChanged) {
		return nil, s.conflictAfterRace(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	s.notify(ctx, ev, func(info *EventContext) error {
		return s.dispatcher.ProposalRejected(ctx, ev, info)
	})
	return ev, nil
}

// AutoApprovePending applies every expired proposal it can, up to batchSize.
// Each event is handled independently, so one failure never blocks the rest.
func (s *Service) AutoApprovePending(ctx context.Context, batchSize int, now time.Time) (*SweepResult, error) {
	expired, err := s.repo.FindExpiredProposals(ctx, now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("find expired proposals: %w", err)
	}

	res := &SweepResult{Scanned: len(expired)}
	for _, pending := range expired {
		ev, err := s.repo.AutoApproveProposal(ctx, pending.ID, now)
		if errors.Is(err, ErrStateChanged) {
			// a customer decision landed first
			res.Skipped++
			continue
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", pending.ID, err))
			s.log.Error().Err(err).Str("event_id", pending.ID.String()).Msg("auto-approve failed")
			continue
		}
		res.Approved++
		res.Events = append(res.Events, ev)

		s.notify(ctx, ev, func(info *EventContext) error {
			return s.dispatcher.ProposalAutoApproved(ctx, ev, info)
		})
	}
	return res, nil
}

// conflictAfterRace re-reads an event after a guarded update lost its race
// and reports the state that won.
func (s *Service) conflictAfterRace(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return decisionConflict(current.ConfirmationState)
}

// notify fetches the event's display context and runs the dispatch callback.
// Failures are logged and swallowed.
func (s *Service) notify(ctx context.Context, ev *Event, dispatch func(info *EventContext) error) {
	if s.dispatcher == nil {
		return
	}
	_, info, err := s.repo.GetWithContext(ctx, ev.ID)
	if err != nil || info == nil {
		s.log.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("notification context unavailable")
		return
	}
	if err := dispatch(info); err != nil {
		s.log.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("notification dispatch failed")
	}
}

func decisionConflict(state ConfirmationState) *ConflictError {
	var reason string
	switch state {
	case StateConfirmedByCustomer:
		reason = "change was already confirmed by the customer"
	case StateRejectedByCustomer:
		reason = "change was already rejected by the customer"
	case StateAutoApproved:
		reason = "proposal was already auto-approved"
	case StateDetected:
		reason = "event has no pending proposal"
	default:
		reason = fmt.Sprintf("operation not allowed in state %s", state)
	}
	return &ConflictError{State: state, Reason: reason}
}
