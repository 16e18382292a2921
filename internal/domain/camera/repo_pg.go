package camera

import (
	"context"
	"errors"
	"fmt"

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

type cameraRepoPG struct{ pool *pgxpool.Pool }

func NewCameraRepoPG(pool *pgxpool.Pool) CameraRepository {
	return &cameraRepoPG{pool: pool}
}

func (r *cameraRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cameraCols = `id, name, room_name, status, stream_url, last_seen_at, created_at, updated_at`

func (r *cameraRepoPG) scanCamera(row pgx.Row) (*Camera, error) {
	var cam Camera
	err := row.Scan(&cam.ID, &cam.Name, &cam.RoomName, &cam.Status,
		&cam.StreamURL, &cam.LastSeenAt, &cam.CreatedAt, &cam.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &cam, err
}

func (r *cameraRepoPG) Create(ctx context.Context, cam *Camera) error {
	cam.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO cameras (id, name, room_name, status, stream_url)
		VALUES ($1,$2,$3,$4,$5)`,
		cam.ID, cam.Name, cam.RoomName, cam.Status, cam.StreamURL)
	return err
}

func (r *cameraRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Camera, error) {
	return r.scanCamera(r.conn(ctx).QueryRow(ctx, `SELECT `+cameraCols+` FROM cameras WHERE id = $1`, id))
}

func (r *cameraRepoPG) Update(ctx context.Context, cam *Camera) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE cameras SET name=$2, room_name=$3, status=$4, stream_url=$5, updated_at=NOW()
		WHERE id = $1`,
		cam.ID, cam.Name, cam.RoomName, cam.Status, cam.StreamURL)
	return err
}

func (r *cameraRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE cameras SET status=$2, last_seen_at=NOW(), updated_at=NOW()
		WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cameraRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	return err
}

func (r *cameraRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Camera, int, error) {
	query := `SELECT ` + cameraCols + ` FROM cameras`
	countQuery := `SELECT COUNT(*) FROM cameras`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		countQuery += ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Camera
	for rows.Next() {
		cam, err := r.scanCamera(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cam)
	}
	return items, total, nil
}
