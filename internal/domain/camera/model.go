package camera

import (
	"time"

	"github.com/google/uuid"
)

// Camera maps to the cameras table.
type Camera struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	RoomName   string     `db:"room_name" json:"room_name"`
	Status     string     `db:"status" json:"status"`
	StreamURL  *string    `db:"stream_url" json:"stream_url,omitempty"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
