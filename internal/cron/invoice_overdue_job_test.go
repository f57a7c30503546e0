package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sufrahq/backoffice/internal/billing"
	"github.com/sufrahq/backoffice/pkg/db/models"
	"github.com/sufrahq/backoffice/pkg/enums"
)

// fakeBillingRepo implements billing.Repository over maps. Only the invoice
// surface is exercised by the worker tests.
type fakeBillingRepo struct {
	invoices map[uuid.UUID]*models.Invoice

	// staleCandidates, when set, is returned once by ListOverdueCandidates
	// to simulate a scan snapshot that aged before the per-row transaction.
	staleCandidates []models.Invoice
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{invoices: map[uuid.UUID]*models.Invoice{}}
}

func (f *fakeBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return f }

func (f *fakeBillingRepo) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	return nil, nil
}

func (f *fakeBillingRepo) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

func (f *fakeBillingRepo) FindSubscriptionByRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

func (f *fakeBillingRepo) UpdateSubscriptionMRR(ctx context.Context, id uuid.UUID, mrr decimal.Decimal) error {
	return nil
}

func (f *fakeBillingRepo) ListSubscriptionsForReconciliation(ctx context.Context, limit int) ([]models.Subscription, error) {
	return nil, nil
}

func (f *fakeBillingRepo) CountBillableBranches(ctx context.Context, restaurantID uuid.UUID, at time.Time) (int, error) {
	return 0, nil
}

func (f *fakeBillingRepo) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	copied := *invoice
	f.invoices[invoice.ID] = &copied
	return nil
}

func (f *fakeBillingRepo) FindInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if invoice, ok := f.invoices[id]; ok {
		copied := *invoice
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeBillingRepo) FindInvoiceByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return f.FindInvoiceByID(ctx, id)
}

func (f *fakeBillingRepo) FindSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return f.FindSubscriptionByID(ctx, id)
}

func (f *fakeBillingRepo) FindPaymentByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return f.FindPaymentByID(ctx, id)
}

func (f *fakeBillingRepo) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	copied := *invoice
	f.invoices[invoice.ID] = &copied
	return nil
}

func (f *fakeBillingRepo) HighestInvoiceNumber(ctx context.Context, prefix string) (string, error) {
	return "", nil
}

func (f *fakeBillingRepo) ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]models.Invoice, error) {
	if f.staleCandidates != nil {
		out := f.staleCandidates
		f.staleCandidates = nil
		return out, nil
	}
	var out []models.Invoice
	for _, invoice := range f.invoices {
		if invoice.Status == enums.InvoiceStatusSent && invoice.DueDate.Before(asOf) {
			out = append(out, *invoice)
		}
	}
	return out, nil
}

func (f *fakeBillingRepo) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return nil, nil
}

func (f *fakeBillingRepo) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCounter struct {
	counts map[string]int64
}

func (f *fakeCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) CounterKey(name string) string { return "sufrah:counter:" + name }

func seedWorkerInvoice(repo *fakeBillingRepo, status enums.InvoiceStatus, due time.Time) uuid.UUID {
	id := uuid.New()
	repo.invoices[id] = &models.Invoice{
		ID:      id,
		Status:  status,
		DueDate: due,
	}
	return id
}

func TestInvoiceOverdueJob_flagsOnlyPastDueSent(t *testing.T) {
	repo := newFakeBillingRepo()
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	pastDue := now.AddDate(0, 0, -2)
	future := now.AddDate(0, 0, 2)

	flaggedID := seedWorkerInvoice(repo, enums.InvoiceStatusSent, pastDue)
	sentFuture := seedWorkerInvoice(repo, enums.InvoiceStatusSent, future)
	draft := seedWorkerInvoice(repo, enums.InvoiceStatusDraft, pastDue)
	paid := seedWorkerInvoice(repo, enums.InvoiceStatusPaid, pastDue)

	counter := &fakeCounter{}
	job, err := NewInvoiceOverdueJob(InvoiceOverdueJobParams{
		Logger:  testLogger(),
		DB:      passthroughTx{},
		Repo:    repo,
		Counter: counter,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	job.(*invoiceOverdueJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if repo.invoices[flaggedID].Status != enums.InvoiceStatusOverdue {
		t.Fatalf("expected past-due sent invoice flagged, got %s", repo.invoices[flaggedID].Status)
	}
	if repo.invoices[sentFuture].Status != enums.InvoiceStatusSent {
		t.Fatalf("invoice within terms must stay sent")
	}
	if repo.invoices[draft].Status != enums.InvoiceStatusDraft {
		t.Fatalf("draft invoice must be untouched")
	}
	if repo.invoices[paid].Status != enums.InvoiceStatusPaid {
		t.Fatalf("paid invoice must be untouched")
	}

	key := counter.CounterKey("invoices_overdue:20250310")
	if counter.counts[key] != 1 {
		t.Fatalf("expected overdue counter 1, got %d", counter.counts[key])
	}
}

func TestInvoiceOverdueJob_recheckInsideTransaction(t *testing.T) {
	repo := newFakeBillingRepo()
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

	// The scan saw the invoice as sent, but a settlement landed before the
	// per-row transaction reloaded it.
	id := seedWorkerInvoice(repo, enums.InvoiceStatusPaid, now.AddDate(0, 0, -2))
	repo.staleCandidates = []models.Invoice{{ID: id, Status: enums.InvoiceStatusSent, DueDate: now.AddDate(0, 0, -2)}}

	job, err := NewInvoiceOverdueJob(InvoiceOverdueJobParams{
		Logger: testLogger(),
		DB:     passthroughTx{},
		Repo:   repo,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	job.(*invoiceOverdueJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if repo.invoices[id].Status != enums.InvoiceStatusPaid {
		t.Fatalf("settled invoice must never be flagged overdue, got %s", repo.invoices[id].Status)
	}
}
