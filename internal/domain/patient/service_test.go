package patient

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type memRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
}

func newMemRepo() *memRepo { return &memRepo{patients: make(map[uuid.UUID]*Patient)} }

func (m *memRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	c := *p
	m.patients[p.ID] = &c
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; !ok {
		return ErrNotFound
	}
	c := *p
	m.patients[p.ID] = &c
	return nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patients, id)
	return nil
}

func (m *memRepo) List(_ context.Context, limit, _ int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Patient
	for _, p := range m.patients {
		c := *p
		items = append(items, &c)
		if len(items) >= limit {
			break
		}
	}
	return items, len(m.patients), nil
}

func (m *memRepo) ListByCustomer(_ context.Context, customerID uuid.UUID, limit, _ int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*Patient
	for _, p := range m.patients {
		if p.CustomerID == customerID {
			c := *p
			items = append(items, &c)
			if len(items) >= limit {
				break
			}
		}
	}
	return items, len(items), nil
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	svc := NewService(newMemRepo())

	p := &Patient{FirstName: "Alma", LastName: "Reyes", CustomerID: uuid.New()}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != "active" {
		t.Errorf("status = %s, want active", p.Status)
	}

	bad := []*Patient{
		{LastName: "Reyes", CustomerID: uuid.New()},
		{FirstName: "Alma", LastName: "Reyes"},
		{FirstName: "Alma", LastName: "Reyes", CustomerID: uuid.New(), Status: "frozen"},
	}
	for i, p := range bad {
		if err := svc.Create(context.Background(), p); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newMemRepo())
	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByCustomer(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	customerID := uuid.New()

	for i := 0; i < 2; i++ {
		p := &Patient{FirstName: "P", LastName: "Q", CustomerID: customerID}
		if err := svc.Create(context.Background(), p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := &Patient{FirstName: "X", LastName: "Y", CustomerID: uuid.New()}
	_ = svc.Create(context.Background(), other)

	items, _, err := svc.ListByCustomer(context.Background(), customerID, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 patients, got %d", len(items))
	}
}

func TestUpdate_InvalidStatus(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	p := &Patient{FirstName: "Alma", LastName: "Reyes", CustomerID: uuid.New()}
	_ = svc.Create(context.Background(), p)

	p.Status = "nope"
	if err := svc.Update(context.Background(), p); err == nil {
		t.Fatal("expected validation error")
	}
}
