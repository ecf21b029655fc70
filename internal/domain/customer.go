package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer rows are owned by the wider POS back office; loyalty only reads and locks them.
type Customer struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
}
