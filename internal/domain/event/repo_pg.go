package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewatch/carewatch/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type eventRepoPG struct{ pool *pgxpool.Pool }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository {
	return &eventRepoPG{pool: pool}
}

func (r *eventRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const eventCols = `id, patient_id, camera_id, event_type, confidence_score, snapshot_id,
	status, confirmation_state,
	proposed_status, proposed_event_type, previous_status, proposed_by, proposed_at,
	pending_until, acknowledged_by, acknowledged_at, note, detected_at, created_at, updated_at`

func (r *eventRepoPG) scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	err := row.Scan(&ev.ID, &ev.PatientID, &ev.CameraID, &ev.EventType,
		&ev.ConfidenceScore, &ev.SnapshotID,
		&ev.Status, &ev.ConfirmationState,
		&ev.ProposedStatus, &ev.ProposedEventType, &ev.PreviousStatus, &ev.ProposedBy, &ev.ProposedAt,
		&ev.PendingUntil, &ev.AcknowledgedBy, &ev.AcknowledgedAt, &ev.Note,
		&ev.DetectedAt, &ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &ev, err
}

func (r *eventRepoPG) Create(ctx context.Context, ev *Event) error {
	ev.ID = uuid.New()
	if ev.ConfirmationState == "" {
		ev.ConfirmationState = StateDetected
	}
	if ev.DetectedAt.IsZero() {
		ev.DetectedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO events (id, patient_id, camera_id, event_type,
			confidence_score, snapshot_id, status,
			confirmation_state, note, detected_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		ev.ID, ev.PatientID, ev.CameraID, ev.EventType,
		ev.ConfidenceScore, ev.SnapshotID, ev.Status,
		ev.ConfirmationState, ev.Note, ev.DetectedAt)
	return err
}

func (r *eventRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return r.scanEvent(r.conn(ctx).QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id = $1`, id))
}

func (r *eventRepoPG) GetWithContext(ctx context.Context, id uuid.UUID) (*Event, *EventContext, error) {
	ev, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var info EventContext
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT p.first_name || ' ' || p.last_name, p.customer_id, c.name, c.room_name
		FROM patients p
		JOIN cameras c ON c.id = $2
		WHERE p.id = $1`,
		ev.PatientID, ev.CameraID).
		Scan(&info.PatientName, &info.CustomerID, &info.CameraName, &info.RoomName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ev, nil, nil
		}
		return nil, nil, err
	}
	return ev, &info, nil
}

func (r *eventRepoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Event, int, error) {
	query := `SELECT ` + eventCols + ` FROM events WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM events WHERE 1=1`
	var args []interface{}
	idx := 1

	if p, ok := params["patient_id"]; ok {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["camera_id"]; ok {
		query += fmt.Sprintf(` AND camera_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND camera_id = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["event_type"]; ok {
		query += fmt.Sprintf(` AND event_type = $%d`, idx)
		countQuery += fmt.Sprintf(` AND event_type = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["status"]; ok {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}
	if p, ok := params["confirmation_state"]; ok {
		query += fmt.Sprintf(` AND confirmation_state = $%d`, idx)
		countQuery += fmt.Sprintf(` AND confirmation_state = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY detected_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ev)
	}
	return items, total, nil
}

// ProposeChange writes the proposal in one guarded statement. The CASE keeps
// the original previous_status when a pending proposal is replaced, so a
// later rejection still rolls back to the pre-proposal status.
func (r *eventRepoPG) ProposeChange(ctx context.Context, id uuid.UUID, patch ProposalPatch) (*Event, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE events SET
			previous_status = CASE WHEN confirmation_state = 'caregiver_updated'
				THEN previous_status ELSE status END,
			status = $2,
			proposed_status = $2,
			proposed_event_type = $3,
			proposed_by = $4,
			proposed_at = NOW(),
			pending_until = $5,
			note = COALESCE($6, note),
			confirmation_state = 'caregiver_updated',
			acknowledged_by = NULL,
			acknowledged_at = NULL,
			updated_at = NOW()
		WHERE id = $1
		  AND confirmation_state NOT IN ('confirmed_by_customer', 'rejected_by_customer')
		RETURNING `+eventCols,
		id, patch.ProposedStatus, patch.ProposedEventType, patch.ProposedBy, patch.PendingUntil, patch.Note)

	ev, err := r.scanEvent(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStateChanged
	}
	return ev, err
}

func (r *eventRepoPG) ConfirmChange(ctx context.Context, id uuid.UUID, patch DecisionPatch) (*Event, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE events SET
			status = COALESCE(proposed_status, status),
			event_type = COALESCE(proposed_event_type, event_type),
			proposed_event_type = NULL,
			confirmation_state = 'confirmed_by_customer',
			acknowledged_by = $2,
			acknowledged_at = NOW(),
			pending_until = NULL,
			note = COALESCE($3, note),
			updated_at = NOW()
		WHERE id = $1 AND confirmation_state = 'caregiver_updated'
		RETURNING `+eventCols,
		id, patch.AcknowledgedBy, patch.Note)

	ev, err := r.scanEvent(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStateChanged
	}
	return ev, err
}

func (r *eventRepoPG) RejectChange(ctx context.Context, id uuid.UUID, patch DecisionPatch) (*Event, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE events SET
			status = COALESCE(previous_status, status),
			proposed_event_type = NULL,
			confirmation_state = 'rejected_by_customer',
			acknowledged_by = $2,
			acknowledged_at = NOW(),
			pending_until = NULL,
			note = COALESCE($3, note),
			updated_at = NOW()
		WHERE id = $1 AND confirmation_state = 'caregiver_updated'
		RETURNING `+eventCols,
		id, patch.AcknowledgedBy, patch.Note)

	ev, err := r.scanEvent(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStateChanged
	}
	return ev, err
}

func (r *eventRepoPG) FindExpiredProposals(ctx context.Context, now time.Time, limit int) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+eventCols+` FROM events
		WHERE confirmation_state = 'caregiver_updated' AND pending_until <= $1
		ORDER BY pending_until ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return items, nil
}

// AutoApproveProposal re-checks the deadline in the guard so a customer
// decision that landed between the sweep query and this update wins.
func (r *eventRepoPG) AutoApproveProposal(ctx context.Context, id uuid.UUID, now time.Time) (*Event, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE events SET
			status = COALESCE(proposed_status, status),
			event_type = COALESCE(proposed_event_type, event_type),
			proposed_event_type = NULL,
			confirmation_state = 'auto_approved',
			pending_until = NULL,
			updated_at = NOW()
		WHERE id = $1 AND confirmation_state = 'caregiver_updated' AND pending_until <= $2
		RETURNING `+eventCols,
		id, now)

	ev, err := r.scanEvent(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrStateChanged
	}
	return ev, err
}

func (r *eventRepoPG) GetUserFullName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT first_name || ' ' || last_name FROM users WHERE id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}
