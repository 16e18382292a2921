package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. CustomerID is the account holder
// (typically a family member) who receives confirmation requests for this
// patient's events.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	CustomerID  uuid.UUID  `db:"customer_id" json:"customer_id"`
	Status      string     `db:"status" json:"status"`
	RoomName    *string    `db:"room_name" json:"room_name,omitempty"`
	Note        *string    `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
