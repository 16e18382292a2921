package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRepository persists events and performs the guarded state transitions
// of the confirmation workflow. Write methods return ErrStateChanged when the
// transition guard matched no rows.
type EventRepository interface {
	Create(ctx context.Context, ev *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetWithContext(ctx context.Context, id uuid.UUID) (*Event, *EventContext, error)
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Event, int, error)

	// ProposeChange applies a caregiver proposal. The guard admits events
	// whose confirmation state is not terminal-by-customer. A re-proposal
	// while pending keeps the original previous_status and resets the
	// pending window.
	ProposeChange(ctx context.Context, id uuid.UUID, patch ProposalPatch) (*Event, error)

	// ConfirmChange finalizes a pending proposal. The guard admits only
	// events in caregiver_updated state.
	ConfirmChange(ctx context.Context, id uuid.UUID, patch DecisionPatch) (*Event, error)

	// RejectChange rolls a pending proposal back to previous_status. The
	// guard admits only events in caregiver_updated state.
	RejectChange(ctx context.Context, id uuid.UUID, patch DecisionPatch) (*Event, error)

	// FindExpiredProposals returns events still pending whose deadline is at
	// or before now, oldest deadline first, up to limit.
	FindExpiredProposals(ctx context.Context, now time.Time, limit int) ([]*Event, error)

	// AutoApproveProposal applies a pending proposal whose deadline passed.
	// The guard re-checks both the state and the deadline.
	AutoApproveProposal(ctx context.Context, id uuid.UUID, now time.Time) (*Event, error)

	// GetUserFullName resolves a user ID to a display name for notifications.
	GetUserFullName(ctx context.Context, userID uuid.UUID) (string, error)
}
