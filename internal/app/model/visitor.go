package model

import "time"

// Visitor statuses. Only "active" is assigned by the core; the others are
// set through administrative tooling.
const (
	VisitorStatusActive   = "active"
	VisitorStatusRevoked  = "revoked"
	VisitorStatusArchived = "archived"
)

// Visitor is one tracked prospective investor or anonymous browsing session,
// identified by a pseudonymous token carried in invite URLs.
type Visitor struct {
	ID          string     `json:"id" gorm:"primaryKey;size:64"`
	Token       string     `json:"token" gorm:"uniqueIndex;size:64;not null"`
	Email       string     `json:"email" gorm:"size:255"`
	Name        string     `json:"name" gorm:"size:255"`
	Company     string     `json:"company" gorm:"size:255"`
	Status      string     `json:"status" gorm:"size:32;not null;default:active"`
	AccessCount int        `json:"access_count" gorm:"not null;default:0"`
	FirstAccess *time.Time `json:"first_access"`
	LastAccess  *time.Time `json:"last_access"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
}

// TableName maps Visitor onto the "visitors" collection.
func (Visitor) TableName() string {
	return "visitors"
}
