package domain

import (
	"time"

	"github.com/google/uuid"
)

// Operator is an admin/CRM user of the wallet service.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Argon2id
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
