package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sufrahq/backoffice/pkg/enums"
)

// InvoiceNumberConstraint names the unique index backing invoice numbering.
// Concurrent allocations that collide surface as violations of this
// constraint and are retried.
const InvoiceNumberConstraint = "idx_invoices_invoice_number"

// Invoice is a billing document sent to a customer. InvoiceNumber is
// immutable once assigned; TaxAmount and TotalAmount are recomputed from
// subtotal/discount/tax rate on every save.
type Invoice struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID     uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	RestaurantID   *uuid.UUID          `gorm:"column:restaurant_id;type:uuid"`
	InvoiceNumber  string              `gorm:"column:invoice_number;not null;uniqueIndex:idx_invoices_invoice_number"`
	Type           enums.InvoiceType   `gorm:"column:type;not null"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null;default:0"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(10,2);not null;default:0"`
	TaxRate        decimal.Decimal     `gorm:"column:tax_rate;type:numeric(5,2);not null;default:15.00"`
	TaxAmount      decimal.Decimal     `gorm:"column:tax_amount;type:numeric(10,2);not null;default:0"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null;default:0"`
	Currency       enums.Currency      `gorm:"column:currency;not null;default:'SAR'"`
	IssueDate      time.Time           `gorm:"column:issue_date;type:date;not null"`
	DueDate        time.Time           `gorm:"column:due_date;type:date;not null"`
	PaidDate       *time.Time          `gorm:"column:paid_date;type:date"`
	Status         enums.InvoiceStatus `gorm:"column:status;not null;default:'draft';index"`
	Notes          string              `gorm:"column:notes"`
	CustomerNotes  string              `gorm:"column:customer_notes"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
