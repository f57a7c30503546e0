package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sufrahq/backoffice/pkg/enums"
)

// Payment records money received against a single invoice. ProcessedAt is
// set exactly once, when the payment settles.
type Payment struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID     uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency      enums.Currency      `gorm:"column:currency;not null;default:'SAR'"`
	Method        enums.PaymentMethod `gorm:"column:method;not null;default:'credit_card'"`
	Status        enums.PaymentStatus `gorm:"column:status;not null;default:'pending';index"`
	CardLastFour  string              `gorm:"column:card_last_four"`
	CardBrand     string              `gorm:"column:card_brand"`
	FailureReason string              `gorm:"column:failure_reason"`
	ProcessedAt   *time.Time          `gorm:"column:processed_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
