package camera

import (
	"context"

	"github.com/google/uuid"
)

type CameraRepository interface {
	Create(ctx context.Context, cam *Camera) error
	GetByID(ctx context.Context, id uuid.UUID) (*Camera, error)
	Update(ctx context.Context, cam *Camera) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status string, limit, offset int) ([]*Camera, int, error)
}
