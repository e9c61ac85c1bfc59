package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Candidate is a pre-existing registry record matched by an external code.
type Candidate struct {
	IdentifierCode string          `json:"identifier_code"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	Media          []string        `json:"media"`
	Keywords       []string        `json:"keywords"`
}

// LookupResult is the outcome of one tagged lookup call. Candidate is nil
// when the code is not known to the registry.
type LookupResult struct {
	RequestID uint64     `json:"request_id"`
	Code      string     `json:"code"`
	Found     bool       `json:"found"`
	Candidate *Candidate `json:"candidate,omitempty"`
}

// ContributionStatus tracks verification of a newly contributed code.
type ContributionStatus string

const (
	ContributionPending  ContributionStatus = "pending_verification"
	ContributionVerified ContributionStatus = "verified"
	ContributionRejected ContributionStatus = "rejected"
)

// RegistryContribution records a code introduced by a wizard submission
// that the shared registry did not know about.
type RegistryContribution struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	IdentifierCode string             `gorm:"type:varchar(64);index;not null" json:"identifier_code"`
	ProductID      string             `gorm:"type:varchar(64);not null" json:"product_id"`
	ProductName    string             `gorm:"type:varchar(255)" json:"product_name"`
	Category       string             `gorm:"type:varchar(128)" json:"category"`
	Status         ContributionStatus `gorm:"type:varchar(32);not null" json:"status"`
	ContributedBy  string             `gorm:"type:varchar(64)" json:"contributed_by"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt     `gorm:"index" json:"-"`
}

// CodeContributedEvent is published to SNS after a contribution is recorded.
type CodeContributedEvent struct {
	EventType      string    `json:"event_type"`
	ContributionID string    `json:"contribution_id"`
	IdentifierCode string    `json:"identifier_code"`
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}
