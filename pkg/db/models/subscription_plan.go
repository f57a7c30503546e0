package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// SubscriptionPlan is a pricing tier (Basic, Pro, Enterprise). Base price
// covers IncludedBranches locations; each extra billable branch adds
// PricePerExtraBranch.
type SubscriptionPlan struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name                string          `gorm:"column:name;not null;unique"`
	Description         string          `gorm:"column:description"`
	BasePrice           decimal.Decimal `gorm:"column:base_price;type:numeric(10,2);not null"`
	IncludedBranches    int             `gorm:"column:included_branches;not null;default:1"`
	PricePerExtraBranch decimal.Decimal `gorm:"column:price_per_extra_branch;type:numeric(10,2);not null;default:0"`
	Features            pq.StringArray  `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	IsActive            bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
