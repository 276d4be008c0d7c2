package domain

import (
	"time"

	"github.com/google/uuid"
)

// Family is the account that owns children. API keys are stored hashed.
type Family struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Child is the subject of observation. A child owns its facts, hypotheses,
// patterns and exploration cycles for its lifetime; none of those are ever
// shared across children.
type Child struct {
	ID        uuid.UUID  `json:"id"`
	FamilyID  uuid.UUID  `json:"family_id"`
	Name      string     `json:"name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
