package models

import (
	"time"

	"github.com/google/uuid"
)

// Branch is a physical restaurant location with its own billing window.
// A branch is billable at date D when SubscriptionStartDate <= D and the end
// date is unset or strictly after D.
type Branch struct {
	ID                    uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID          uuid.UUID  `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name                  string     `gorm:"column:name;not null"`
	SubscriptionStartDate time.Time  `gorm:"column:subscription_start_date;type:date;not null"`
	SubscriptionEndDate   *time.Time `gorm:"column:subscription_end_date;type:date"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
