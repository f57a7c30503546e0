package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sufrahq/backoffice/pkg/enums"
)

// Subscription is the single recurring billing agreement per restaurant.
// MRR is derived from the pricing formula on every recompute and is never
// written by callers directly.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID       uuid.UUID                `gorm:"column:restaurant_id;type:uuid;not null;unique"`
	PlanID             uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	CustomPrice        *decimal.Decimal         `gorm:"column:custom_price;type:numeric(10,2)"`
	DiscountPercentage decimal.Decimal          `gorm:"column:discount_percentage;type:numeric(5,2);not null;default:0"`
	Status             enums.SubscriptionStatus `gorm:"column:status;not null;default:'active';index"`
	BillingCycle       enums.BillingCycle       `gorm:"column:billing_cycle;not null;default:'monthly'"`
	StartDate          time.Time                `gorm:"column:start_date;type:date;not null"`
	EndDate            *time.Time               `gorm:"column:end_date;type:date"`
	MRR                decimal.Decimal          `gorm:"column:mrr;type:numeric(10,2);not null;default:0"`
	Notes              string                   `gorm:"column:notes"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
