package event

import (
	"time"

	"github.com/google/uuid"
)

// ConfirmationState tracks where an event sits in the caregiver/customer
// confirmation workflow.
type ConfirmationState string

const (
	// StateDetected is the initial state assigned by the monitoring pipeline.
	StateDetected ConfirmationState = "detected"
	// StateCaregiverUpdated means a caregiver proposed a status change that is
	// waiting for the customer's decision.
	StateCaregiverUpdated ConfirmationState = "caregiver_updated"
	// StateConfirmedByCustomer means the customer accepted the proposal.
	StateConfirmedByCustomer ConfirmationState = "confirmed_by_customer"
	// StateRejectedByCustomer means the customer rejected the proposal and the
	// event status was rolled back.
	StateRejectedByCustomer ConfirmationState = "rejected_by_customer"
	// StateAutoApproved means the pending window elapsed with no customer
	// decision and the proposal was applied automatically.
	StateAutoApproved ConfirmationState = "auto_approved"
)

// IsTerminalByCustomer reports whether the customer has already decided on
// this event. Once true, no further proposals are accepted.
func (s ConfirmationState) IsTerminalByCustomer() bool {
	return s == StateConfirmedByCustomer || s == StateRejectedByCustomer
}

// IsPending reports whether a proposal is awaiting a customer decision.
func (s ConfirmationState) IsPending() bool {
	return s == StateCaregiverUpdated
}

// Event maps to the events table. Status carries the operational status of
// the detection; the confirmation_* and proposal columns carry the workflow.
type Event struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	PatientID         uuid.UUID         `db:"patient_id" json:"patient_id"`
	CameraID          uuid.UUID         `db:"camera_id" json:"camera_id"`
	EventType         string            `db:"event_type" json:"event_type"`
	ConfidenceScore   *float64          `db:"confidence_score" json:"confidence_score,omitempty"`
	SnapshotID        *uuid.UUID        `db:"snapshot_id" json:"snapshot_id,omitempty"`
	Status            string            `db:"status" json:"status"`
	ConfirmationState ConfirmationState `db:"confirmation_state" json:"confirmation_state"`
	ProposedStatus    *string           `db:"proposed_status" json:"proposed_status,omitempty"`
	ProposedEventType *string           `db:"proposed_event_type" json:"proposed_event_type,omitempty"`
	PreviousStatus    *string           `db:"previous_status" json:"previous_status,omitempty"`
	ProposedBy        *uuid.UUID        `db:"proposed_by" json:"proposed_by,omitempty"`
	ProposedAt        *time.Time        `db:"proposed_at" json:"proposed_at,omitempty"`
	PendingUntil      *time.Time        `db:"pending_until" json:"pending_until,omitempty"`
	AcknowledgedBy    *uuid.UUID        `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt    *time.Time        `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	Note              *string           `db:"note" json:"note,omitempty"`
	DetectedAt        time.Time         `db:"detected_at" json:"detected_at"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// EventContext carries the joined display data needed to address and render
// notifications about an event.
type EventContext struct {
	PatientName string    `json:"patient_name"`
	CustomerID  uuid.UUID `json:"customer_id"`
	CameraName  string    `json:"camera_name"`
	RoomName    string    `json:"room_name"`
}

// ProposalPatch holds the fields written by a caregiver proposal. A nil
// ProposedEventType keeps the event's classification; a non-nil one is
// applied when the proposal is confirmed or auto-approved.
type ProposalPatch struct {
	ProposedStatus    string
	ProposedEventType *string
	ProposedBy        uuid.UUID
	Note              *string
	PendingUntil      time.Time
}

// DecisionPatch holds the fields written by a customer decision.
type DecisionPatch struct {
	AcknowledgedBy uuid.UUID
	Note           *string
}

// SweepResult summarizes one auto-approval sweep. Each expired proposal is
// processed independently, so a sweep can partially succeed. Events holds
// the rows actually approved, in sweep order.
type SweepResult struct {
	Scanned  int      `json:"scanned"`
	Approved int      `json:"approved"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Events   []*Event `json:"events,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}
