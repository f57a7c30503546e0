package billing

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sufrahq/backoffice/pkg/config"
	"github.com/sufrahq/backoffice/pkg/db"
	"github.com/sufrahq/backoffice/pkg/db/models"
	"github.com/sufrahq/backoffice/pkg/enums"
	pkgerrors "github.com/sufrahq/backoffice/pkg/errors"
	"github.com/sufrahq/backoffice/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the billing engine surface. Every operation that reads and
// writes records runs inside a single transaction and takes FOR UPDATE locks
// on the rows it mutates, so concurrent callers serialize instead of
// committing decisions made on stale reads.
type Service interface {
	RecalculateMRR(ctx context.Context, subscriptionID uuid.UUID) (decimal.Decimal, error)
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error)
	RecalculateInvoiceTotals(ctx context.Context, invoiceID uuid.UUID) (tax, total decimal.Decimal, err error)
	SettlePayment(ctx context.Context, paymentID uuid.UUID) error
	MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, reason string) error
	VoidInvoice(ctx context.Context, invoiceID uuid.UUID) error
	MarkInvoiceSent(ctx context.Context, invoiceID uuid.UUID) error
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Billing           config.BillingConfig
	Now               func() time.Time
}

// CreateInvoiceInput captures the data needed to issue an invoice. The
// invoice number is allocated by the engine; callers never supply one.
type CreateInvoiceInput struct {
	CustomerID     uuid.UUID         `validate:"required"`
	RestaurantID   *uuid.UUID        `validate:"-"`
	Type           enums.InvoiceType `validate:"required"`
	Subtotal       decimal.Decimal   `validate:"gte=0"`
	DiscountAmount decimal.Decimal   `validate:"gte=0,ltefield=Subtotal"`
	TaxRate        *decimal.Decimal  `validate:"omitempty,gte=0,lte=100"`
	Currency       enums.Currency
	IssueDate      time.Time
	DueDate        *time.Time
	Notes          string
	CustomerNotes  string
}

type service struct {
	repo     Repository
	txRunner txRunner
	logg     *logger.Logger
	cfg      config.BillingConfig
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the billing engine with its required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Billing
	if cfg.NumberingMaxRetries <= 0 {
		cfg.NumberingMaxRetries = 3
	}
	if cfg.InvoiceDueDays <= 0 {
		cfg.InvoiceDueDays = 14
	}
	if cfg.DefaultTaxRate == "" {
		cfg.DefaultTaxRate = "15.00"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = string(enums.CurrencySAR)
	}
	return &service{
		repo:     params.Repo,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		cfg:      cfg,
		validate: newValidator(),
		now:      now,
	}, nil
}

// newValidator teaches validator/v10 to see decimals as floats so the usual
// gte/lte/ltefield tags apply to monetary fields.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// RecalculateMRR recomputes and persists the subscription's MRR from its
// plan, overrides, and the restaurant's currently billable branch count.
func (s *service) RecalculateMRR(ctx context.Context, subscriptionID uuid.UUID) (decimal.Decimal, error) {
	if subscriptionID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	var mrr decimal.Decimal
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sub, err := repo.FindSubscriptionByIDForUpdate(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if sub.DiscountPercentage.IsNegative() || sub.DiscountPercentage.GreaterThan(oneHundred) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("discount percentage %s outside [0,100]", sub.DiscountPercentage))
		}

		plan, err := repo.FindPlanByID(ctx, sub.PlanID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}
		if plan == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription plan not found")
		}

		count, err := repo.CountBillableBranches(ctx, sub.RestaurantID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count billable branches")
		}
		if count == 0 {
			// Zero billable branches still bill the base tier. Kept from the
			// existing pricing policy; logged so product can audit how often
			// it actually happens.
			logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
			s.logg.Debug(logCtx, "subscription has no billable branches, billing base price")
		}

		mrr = SubscriptionMRR(PricingParams{
			BasePrice:           plan.BasePrice,
			CustomPrice:         sub.CustomPrice,
			IncludedBranches:    plan.IncludedBranches,
			PricePerExtraBranch: plan.PricePerExtraBranch,
			DiscountPercentage:  sub.DiscountPercentage,
			BillableBranches:    count,
		})

		if err := repo.UpdateSubscriptionMRR(ctx, sub.ID, mrr); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist mrr")
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return mrr, nil
}

// CreateInvoice derives totals, allocates the next number for the creation
// month, and persists the invoice. Allocation collisions under concurrent
// creation are detected via the unique constraint and retried with a fresh
// sequence.
func (s *service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice input")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid invoice type %q", input.Type))
	}

	now := s.now()
	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = DateOnly(now)
	} else {
		issueDate = DateOnly(issueDate)
	}
	dueDate := issueDate.AddDate(0, 0, s.cfg.InvoiceDueDays)
	if input.DueDate != nil {
		dueDate = DateOnly(*input.DueDate)
	}
	taxRate := s.cfg.TaxRate()
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.Currency(s.cfg.DefaultCurrency)
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}

	tax, total := InvoiceTotals(input.Subtotal, input.DiscountAmount, taxRate)
	prefix := InvoiceNumberPrefix(now)

	invoice := &models.Invoice{
		CustomerID:     input.CustomerID,
		RestaurantID:   input.RestaurantID,
		Type:           input.Type,
		Subtotal:       input.Subtotal,
		DiscountAmount: input.DiscountAmount,
		TaxRate:        taxRate,
		TaxAmount:      tax,
		TotalAmount:    total,
		Currency:       currency,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		Status:         enums.InvoiceStatusDraft,
		Notes:          input.Notes,
		CustomerNotes:  input.CustomerNotes,
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.NumberingMaxRetries; attempt++ {
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			highest, err := repo.HighestInvoiceNumber(ctx, prefix)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query highest invoice number")
			}
			number, err := NextInvoiceNumber(prefix, highest)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive next invoice number")
			}
			invoice.ID = uuid.Nil
			invoice.InvoiceNumber = number
			return repo.CreateInvoice(ctx, invoice)
		})
		if err == nil {
			return invoice, nil
		}
		if !db.IsUniqueViolation(err, models.InvoiceNumberConstraint) {
			return nil, err
		}
		lastErr = err
		logCtx := s.logg.WithFields(ctx, map[string]any{"prefix": prefix, "attempt": attempt + 1})
		s.logg.Warn(logCtx, "invoice number collision, retrying allocation")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "invoice number allocation retries exhausted")
}

// RecalculateInvoiceTotals recomputes tax and total from the invoice's stored
// subtotal, discount, and tax rate, and persists them.
func (s *service) RecalculateInvoiceTotals(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	if invoiceID == uuid.Nil {
		return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	var tax, total decimal.Decimal
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := repo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}

		tax, total = InvoiceTotals(invoice.Subtotal, invoice.DiscountAmount, invoice.TaxRate)
		invoice.TaxAmount = tax
		invoice.TotalAmount = total
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice totals")
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return tax, total, nil
}

// SettlePayment marks the payment succeeded and its invoice paid as one
// atomic unit. Settling an already-settled payment is a no-op; settling
// against a void invoice or one paid through another payment is a state
// conflict.
func (s *service) SettlePayment(ctx context.Context, paymentID uuid.UUID) error {
	if paymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindPaymentByIDForUpdate(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}

		invoice, err := repo.FindInvoiceByIDForUpdate(ctx, payment.InvoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found for payment")
		}

		switch payment.Status {
		case enums.PaymentStatusSucceeded:
			if invoice.Status == enums.InvoiceStatusPaid {
				// Retry of an already-applied settlement.
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment already succeeded but invoice is %s", invoice.Status))
		case enums.PaymentStatusFailed, enums.PaymentStatusRefunded:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot settle payment in status %s", payment.Status))
		}

		switch invoice.Status {
		case enums.InvoiceStatusVoid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is void")
		case enums.InvoiceStatusPaid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice already paid by another payment")
		}

		now := s.now().UTC()
		today := DateOnly(now)

		payment.Status = enums.PaymentStatusSucceeded
		payment.ProcessedAt = &now
		if err := repo.UpdatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
		}

		invoice.Status = enums.InvoiceStatusPaid
		invoice.PaidDate = &today
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice")
		}

		logCtx := s.logg.WithPaymentID(ctx, payment.ID.String())
		logCtx = s.logg.WithInvoiceID(logCtx, invoice.ID.String())
		s.logg.Info(logCtx, "payment settled, invoice paid")
		return nil
	})
}

// MarkPaymentFailed records a failure reason on a pending payment. The
// linked invoice is untouched.
func (s *service) MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, reason string) error {
	if paymentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindPaymentByIDForUpdate(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		switch payment.Status {
		case enums.PaymentStatusSucceeded, enums.PaymentStatusRefunded:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot fail payment in status %s", payment.Status))
		case enums.PaymentStatusFailed:
			return nil
		}

		payment.Status = enums.PaymentStatusFailed
		payment.FailureReason = reason
		if err := repo.UpdatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
		}
		return nil
	})
}

// VoidInvoice cancels an unpaid invoice. Paid invoices cannot be voided;
// voiding twice is a no-op. The invoice keeps its number, so monthly
// sequences stay duplicate-free but gap-tolerant.
func (s *service) VoidInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := repo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		switch invoice.Status {
		case enums.InvoiceStatusVoid:
			return nil
		case enums.InvoiceStatusPaid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "paid invoices cannot be voided")
		}

		invoice.Status = enums.InvoiceStatusVoid
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice")
		}
		return nil
	})
}

// MarkInvoiceSent moves a draft invoice into circulation so it becomes
// eligible for payment and overdue flagging.
func (s *service) MarkInvoiceSent(ctx context.Context, invoiceID uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := repo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if invoice == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		switch invoice.Status {
		case enums.InvoiceStatusSent:
			return nil
		case enums.InvoiceStatusDraft:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot send invoice in status %s", invoice.Status))
		}

		invoice.Status = enums.InvoiceStatusSent
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice")
		}
		return nil
	})
}
