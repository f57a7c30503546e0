package models

import (
	"time"

	"github.com/google/uuid"
)

// Restaurant is a deployed brand under a customer account. Branch records
// hang off it and drive subscription pricing.
type Restaurant struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	City       string    `gorm:"column:city"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
