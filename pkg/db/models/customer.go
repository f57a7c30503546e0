package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sufrahq/backoffice/pkg/enums"
)

// Customer is an active restaurant account. The billing engine reads
// customers only to attach invoices; lifecycle management lives elsewhere.
type Customer struct {
	ID                uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantName    string               `gorm:"column:restaurant_name;not null"`
	ContactName       string               `gorm:"column:contact_name;not null"`
	Phone             string               `gorm:"column:phone;not null;index"`
	Email             string               `gorm:"column:email;not null"`
	Location          string               `gorm:"column:location"`
	Address           string               `gorm:"column:address"`
	NumberOfLocations int                  `gorm:"column:number_of_locations;not null;default:1"`
	CuisineType       string               `gorm:"column:cuisine_type"`
	Status            enums.CustomerStatus `gorm:"column:status;not null;default:'onboarding';index"`
	HealthScore       int                  `gorm:"column:health_score;not null;default:100"`
	ActivatedAt       *time.Time           `gorm:"column:activated_at"`
	ChurnedAt         *time.Time           `gorm:"column:churned_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
