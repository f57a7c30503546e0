package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sufrahq/backoffice/internal/billing"
	"github.com/sufrahq/backoffice/pkg/enums"
	"github.com/sufrahq/backoffice/pkg/logger"
)

const (
	defaultOverdueBatchSize = 500
	overdueCounterTTL       = 48 * time.Hour
)

// txRunner runs a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// counterStore tracks daily operational counters in Redis.
type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(name string) string
}

// InvoiceOverdueJobParams configures the overdue sweep.
type InvoiceOverdueJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      billing.Repository
	Counter   counterStore
	BatchSize int
}

// NewInvoiceOverdueJob constructs the job that moves sent invoices past
// their due date into overdue.
func NewInvoiceOverdueJob(params InvoiceOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOverdueBatchSize
	}
	return &invoiceOverdueJob{
		logg:    params.Logger,
		db:      params.DB,
		repo:    params.Repo,
		counter: params.Counter,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type invoiceOverdueJob struct {
	logg    *logger.Logger
	db      txRunner
	repo    billing.Repository
	counter counterStore
	batch   int
	now     func() time.Time
}

func (j *invoiceOverdueJob) Name() string { return "invoice-overdue" }

// Run flags sent invoices whose due date has passed. Each invoice is updated
// in its own transaction so one bad row never rolls back the whole sweep.
func (j *invoiceOverdueJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	flagged := 0
	var errs []error

	for {
		candidates, err := j.repo.ListOverdueCandidates(ctx, asOf, j.batch)
		if err != nil {
			return fmt.Errorf("query overdue candidates: %w", err)
		}
		if len(candidates) == 0 {
			break
		}

		progressed := false
		for _, invoice := range candidates {
			didFlag, err := j.flagOverdue(ctx, invoice.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("invoice %s: %w", invoice.ID, err))
				continue
			}
			progressed = true
			if didFlag {
				flagged++
			}
		}
		if !progressed || len(candidates) < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": flagged})
	j.logg.Info(logCtx, "overdue sweep complete")
	return multierr.Combine(errs...)
}

func (j *invoiceOverdueJob) flagOverdue(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	didFlag := false
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		invoice, err := repo.FindInvoiceByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		// A payment may have landed between the scan and this transaction.
		if invoice == nil || invoice.Status != enums.InvoiceStatusSent {
			return nil
		}
		invoice.Status = enums.InvoiceStatusOverdue
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return err
		}
		didFlag = true
		return nil
	}); err != nil {
		return false, err
	}

	if didFlag && j.counter != nil {
		key := j.counter.CounterKey("invoices_overdue:" + j.now().UTC().Format("20060102"))
		if _, err := j.counter.IncrWithTTL(ctx, key, overdueCounterTTL); err != nil {
			logCtx := j.logg.WithInvoiceID(ctx, invoiceID.String())
			j.logg.Warn(logCtx, "overdue counter increment failed")
		}
	}
	return didFlag, nil
}
