package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient does not exist in the current tenant.
var ErrNotFound = errors.New("patient not found")

type Service struct {
	patients PatientRepository
}

func NewService(patients PatientRepository) *Service {
	return &Service{patients: patients}
}

var validStatuses = map[string]bool{
	"active": true, "inactive": true, "discharged": true,
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if p.CustomerID == uuid.Nil {
		return fmt.Errorf("customer_id is required")
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.Status != "" && !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.patients.ListByCustomer(ctx, customerID, limit, offset)
}
