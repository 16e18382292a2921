package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a camera does not exist in the current tenant.
var ErrNotFound = errors.New("camera not found")

type Service struct {
	cameras CameraRepository
}

func NewService(cameras CameraRepository) *Service {
	return &Service{cameras: cameras}
}

var validStatuses = map[string]bool{
	"online": true, "offline": true, "maintenance": true, "disabled": true,
}

func (s *Service) Create(ctx context.Context, cam *Camera) error {
	if cam.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cam.RoomName == "" {
		return fmt.Errorf("room_name is required")
	}
	if cam.Status == "" {
		cam.Status = "offline"
	}
	if !validStatuses[cam.Status] {
		return fmt.Errorf("invalid status: %s", cam.Status)
	}
	return s.cameras.Create(ctx, cam)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Camera, error) {
	return s.cameras.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, cam *Camera) error {
	if cam.Status != "" && !validStatuses[cam.Status] {
		return fmt.Errorf("invalid status: %s", cam.Status)
	}
	return s.cameras.Update(ctx, cam)
}

// UpdateStatus records a heartbeat or operator status change.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}
	return s.cameras.UpdateStatus(ctx, id, status)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.cameras.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Camera, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.cameras.List(ctx, status, limit, offset)
}
