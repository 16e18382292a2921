package camera

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type memRepo struct {
	mu      sync.Mutex
	cameras map[uuid.UUID]*Camera
}

func newMemRepo() *memRepo { return &memRepo{cameras: make(map[uuid.UUID]*Camera)} }

func (m *memRepo) Create(_ context.Context, cam *Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cam.ID = uuid.New()
	c := *cam
	m.cameras[cam.ID] = &c
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Camera, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cam, ok := m.cameras[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *cam
	return &c, nil
}

func (m *memRepo) Update(_ context.Context, cam *Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cameras[cam.ID]; !ok {
		return ErrNotFound
	}
	c := *cam
	m.cameras[cam.ID] = &c
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cam, ok := m.cameras[id]
	if !ok {
		return ErrNotFound
	}
	cam.Status = status
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cameras, id)
	return nil
}

func (m *memRepo) List(_ context.Context, status string, limit, _ int) ([]*Camera, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Camera
	for _, cam := range m.cameras {
		if status != "" && cam.Status != status {
			continue
		}
		c := *cam
		items = append(items, &c)
		if len(items) >= limit {
			break
		}
	}
	return items, len(items), nil
}

func TestCreate_Defaults(t *testing.T) {
	svc := NewService(newMemRepo())

	cam := &Camera{Name: "Cam 3", RoomName: "Room 12"}
	if err := svc.Create(context.Background(), cam); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cam.Status != "offline" {
		t.Errorf("status = %s, want offline", cam.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMemRepo())
	bad := []*Camera{
		{RoomName: "Room 12"},
		{Name: "Cam 3"},
		{Name: "Cam 3", RoomName: "Room 12", Status: "sideways"},
	}
	for i, cam := range bad {
		if err := svc.Create(context.Background(), cam); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	cam := &Camera{Name: "Cam 1", RoomName: "Room 4", Status: "online"}
	_ = svc.Create(context.Background(), cam)

	if err := svc.UpdateStatus(context.Background(), cam.ID, "maintenance"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background(), cam.ID)
	if got.Status != "maintenance" {
		t.Errorf("status = %s", got.Status)
	}

	if err := svc.UpdateStatus(context.Background(), cam.ID, "sideways"); err == nil {
		t.Error("expected validation error")
	}
	if err := svc.UpdateStatus(context.Background(), uuid.New(), "online"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList_FilterValidation(t *testing.T) {
	svc := NewService(newMemRepo())
	if _, _, err := svc.List(context.Background(), "sideways", 10, 0); err == nil {
		t.Fatal("expected validation error for bad status filter")
	}
}
