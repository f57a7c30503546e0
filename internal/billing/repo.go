package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sufrahq/backoffice/pkg/db/models"
	"github.com/sufrahq/backoffice/pkg/enums"
)

// Repository handles billing persistence. The ForUpdate finds take a FOR
// UPDATE row lock and belong inside a transaction; mutation paths use them so
// two transactions touching the same row serialize instead of overwriting
// each other's commit with a stale read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindPlanByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Subscription, error)
	UpdateSubscriptionMRR(ctx context.Context, id uuid.UUID, mrr decimal.Decimal) error
	ListSubscriptionsForReconciliation(ctx context.Context, limit int) ([]models.Subscription, error)

	CountBillableBranches(ctx context.Context, restaurantID uuid.UUID, at time.Time) (int, error)

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	HighestInvoiceNumber(ctx context.Context, prefix string) (string, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]models.Invoice, error)

	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpdateSubscriptionMRR(ctx context.Context, id uuid.UUID, mrr decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("mrr", mrr).Error
}

func (r *repository) ListSubscriptionsForReconciliation(ctx context.Context, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	statuses := []enums.SubscriptionStatus{
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusTrialing,
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status IN (?)", statuses).
		Order("updated_at ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) CountBillableBranches(ctx context.Context, restaurantID uuid.UUID, at time.Time) (int, error) {
	day := DateOnly(at)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Branch{}).
		Where("restaurant_id = ?", restaurantID).
		Where("subscription_start_date <= ?", day).
		Where("subscription_end_date IS NULL OR subscription_end_date > ?", day).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindInvoiceByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

// HighestInvoiceNumber returns the greatest assigned number sharing the
// month prefix, or empty when the month has none. Sequences are zero-padded
// to four digits but widen past 9999, so ordering by length first keeps the
// comparison numeric (INV-YYYYMM-10000 sorts above INV-YYYYMM-9999).
func (r *repository) HighestInvoiceNumber(ctx context.Context, prefix string) (string, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("invoice_number LIKE ?", prefix+"-%").
		Order("length(invoice_number) DESC, invoice_number DESC").
		First(&invoice).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return invoice.InvoiceNumber, nil
}

func (r *repository) ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 500
	}
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.InvoiceStatusSent).
		Where("due_date < ?", DateOnly(asOf)).
		Order("due_date ASC").
		Limit(limit).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}
