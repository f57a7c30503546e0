package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sufrahq/backoffice/pkg/db/models"
	"github.com/sufrahq/backoffice/pkg/enums"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Per-test database name keeps the unique invoice number index from
	// leaking rows between tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	plans := `
CREATE TABLE IF NOT EXISTS subscription_plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  description TEXT,
  base_price NUMERIC NOT NULL,
  included_branches INTEGER NOT NULL DEFAULT 1,
  price_per_extra_branch NUMERIC NOT NULL DEFAULT 0,
  features TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL UNIQUE,
  plan_id TEXT NOT NULL,
  custom_price NUMERIC,
  discount_percentage NUMERIC NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  billing_cycle TEXT NOT NULL DEFAULT 'monthly',
  start_date DATE NOT NULL,
  end_date DATE,
  mrr NUMERIC NOT NULL DEFAULT 0,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	branches := `
CREATE TABLE IF NOT EXISTS branches (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  subscription_start_date DATE NOT NULL,
  subscription_end_date DATE,
  created_at DATETIME,
  updated_at DATETIME
);`
	invoices := `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  restaurant_id TEXT,
  invoice_number TEXT NOT NULL,
  type TEXT NOT NULL,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  tax_rate NUMERIC NOT NULL DEFAULT 15.00,
  tax_amount NUMERIC NOT NULL DEFAULT 0,
  total_amount NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'SAR',
  issue_date DATE NOT NULL,
  due_date DATE NOT NULL,
  paid_date DATE,
  status TEXT NOT NULL DEFAULT 'draft',
  notes TEXT,
  customer_notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_invoice_number ON invoices (invoice_number);`
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'SAR',
  method TEXT NOT NULL DEFAULT 'credit_card',
  status TEXT NOT NULL DEFAULT 'pending',
  card_last_four TEXT,
  card_brand TEXT,
  failure_reason TEXT,
  processed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(plans).Error)
	require.NoError(t, db.Exec(subscriptions).Error)
	require.NoError(t, db.Exec(branches).Error)
	require.NoError(t, db.Exec(invoices).Error)
	require.NoError(t, db.Exec(payments).Error)
	return db
}

func createPlan(t *testing.T, db *gorm.DB, name string) *models.SubscriptionPlan {
	t.Helper()

	plan := &models.SubscriptionPlan{
		ID:                  uuid.New(),
		Name:                name,
		BasePrice:           decimal.RequireFromString("200.00"),
		IncludedBranches:    1,
		PricePerExtraBranch: decimal.RequireFromString("50.00"),
		IsActive:            true,
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func createSubscription(t *testing.T, db *gorm.DB, plan *models.SubscriptionPlan, status enums.SubscriptionStatus) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		ID:           uuid.New(),
		RestaurantID: uuid.New(),
		PlanID:       plan.ID,
		Status:       status,
		BillingCycle: enums.BillingCycleMonthly,
		StartDate:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func createBranch(t *testing.T, db *gorm.DB, restaurantID uuid.UUID, start time.Time, end *time.Time) {
	t.Helper()

	branch := &models.Branch{
		ID:                    uuid.New(),
		RestaurantID:          restaurantID,
		Name:                  "Branch " + uuid.NewString()[:8],
		SubscriptionStartDate: start,
		SubscriptionEndDate:   end,
	}
	require.NoError(t, db.Create(branch).Error)
}

func createTestInvoice(t *testing.T, db *gorm.DB, number string, status enums.InvoiceStatus, due time.Time) *models.Invoice {
	t.Helper()

	invoice := &models.Invoice{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		InvoiceNumber: number,
		Type:          enums.InvoiceTypeSubscription,
		Subtotal:      decimal.RequireFromString("100.00"),
		TaxRate:       decimal.RequireFromString("15.00"),
		Currency:      enums.CurrencySAR,
		IssueDate:     due.AddDate(0, 0, -14),
		DueDate:       due,
		Status:        status,
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func TestRepositoryCountBillableBranches_windowEdges(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	restaurantID := uuid.New()
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	endOnDay := day
	endAfterDay := day.AddDate(0, 0, 5)

	// Counted: started before the day, open-ended.
	createBranch(t, db, restaurantID, day.AddDate(0, -1, 0), nil)
	// Counted: starts exactly on the day.
	createBranch(t, db, restaurantID, day, nil)
	// Counted: window ends after the day.
	createBranch(t, db, restaurantID, day.AddDate(0, -1, 0), &endAfterDay)
	// Not counted: window closed exactly on the day.
	createBranch(t, db, restaurantID, day.AddDate(0, -1, 0), &endOnDay)
	// Not counted: starts after the day.
	createBranch(t, db, restaurantID, day.AddDate(0, 0, 1), nil)
	// Not counted: different restaurant.
	createBranch(t, db, uuid.New(), day.AddDate(0, -1, 0), nil)

	count, err := repo.CountBillableBranches(ctx, restaurantID, day)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRepositoryHighestInvoiceNumber(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	highest, err := repo.HighestInvoiceNumber(ctx, "INV-202503")
	require.NoError(t, err)
	assert.Empty(t, highest)

	due := time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC)
	createTestInvoice(t, db, "INV-202503-0001", enums.InvoiceStatusDraft, due)
	createTestInvoice(t, db, "INV-202503-0012", enums.InvoiceStatusSent, due)
	createTestInvoice(t, db, "INV-202503-0003", enums.InvoiceStatusVoid, due)
	// Other months never bleed into the prefix scan.
	createTestInvoice(t, db, "INV-202502-0099", enums.InvoiceStatusPaid, due.AddDate(0, -1, 0))

	highest, err = repo.HighestInvoiceNumber(ctx, "INV-202503")
	require.NoError(t, err)
	assert.Equal(t, "INV-202503-0012", highest)
}

func TestRepositoryHighestInvoiceNumber_widensPastFourDigits(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// Lexicographically "INV-202503-9999" sorts above "INV-202503-10000";
	// the scan must still pick the numerically larger sequence.
	due := time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC)
	createTestInvoice(t, db, "INV-202503-9999", enums.InvoiceStatusSent, due)
	createTestInvoice(t, db, "INV-202503-10000", enums.InvoiceStatusSent, due)

	highest, err := repo.HighestInvoiceNumber(ctx, "INV-202503")
	require.NoError(t, err)
	assert.Equal(t, "INV-202503-10000", highest)
}

func TestRepositoryCreateInvoice_duplicateNumberRejected(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	due := time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC)
	createTestInvoice(t, db, "INV-202503-0001", enums.InvoiceStatusDraft, due)

	dup := &models.Invoice{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		InvoiceNumber: "INV-202503-0001",
		Type:          enums.InvoiceTypeOneTime,
		TaxRate:       decimal.RequireFromString("15.00"),
		Currency:      enums.CurrencySAR,
		IssueDate:     due.AddDate(0, 0, -14),
		DueDate:       due,
		Status:        enums.InvoiceStatusDraft,
	}
	err := repo.CreateInvoice(ctx, dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestRepositoryListOverdueCandidates(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	asOf := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	pastDue := asOf.AddDate(0, 0, -3)
	future := asOf.AddDate(0, 0, 3)

	overdue := createTestInvoice(t, db, "INV-202503-0001", enums.InvoiceStatusSent, pastDue)
	// Not candidates: still within terms, wrong status, or already settled.
	createTestInvoice(t, db, "INV-202503-0002", enums.InvoiceStatusSent, future)
	createTestInvoice(t, db, "INV-202503-0003", enums.InvoiceStatusDraft, pastDue)
	createTestInvoice(t, db, "INV-202503-0004", enums.InvoiceStatusPaid, pastDue)
	createTestInvoice(t, db, "INV-202503-0005", enums.InvoiceStatusVoid, pastDue)

	candidates, err := repo.ListOverdueCandidates(ctx, asOf, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, overdue.ID, candidates[0].ID)
}

func TestRepositorySubscriptionLookups(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	plan := createPlan(t, db, "Pro")
	sub := createSubscription(t, db, plan, enums.SubscriptionStatusActive)

	found, err := repo.FindSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.RestaurantID, found.RestaurantID)

	byRestaurant, err := repo.FindSubscriptionByRestaurant(ctx, sub.RestaurantID)
	require.NoError(t, err)
	require.NotNil(t, byRestaurant)
	assert.Equal(t, sub.ID, byRestaurant.ID)

	missing, err := repo.FindSubscriptionByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	foundPlan, err := repo.FindPlanByID(ctx, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, foundPlan)
	assert.True(t, foundPlan.BasePrice.Equal(decimal.RequireFromString("200.00")))
}

func TestRepositoryUpdateSubscriptionMRR(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	plan := createPlan(t, db, "Pro")
	sub := createSubscription(t, db, plan, enums.SubscriptionStatusActive)

	require.NoError(t, repo.UpdateSubscriptionMRR(ctx, sub.ID, decimal.RequireFromString("270.00")))

	found, err := repo.FindSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.MRR.Equal(decimal.RequireFromString("270.00")))
}

func TestRepositoryListSubscriptionsForReconciliation(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	plan := createPlan(t, db, "Pro")
	active := createSubscription(t, db, plan, enums.SubscriptionStatusActive)
	trialing := createSubscription(t, db, plan, enums.SubscriptionStatusTrialing)
	createSubscription(t, db, plan, enums.SubscriptionStatusCanceled)
	createSubscription(t, db, plan, enums.SubscriptionStatusPaused)

	subs, err := repo.ListSubscriptionsForReconciliation(ctx, 0)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	ids := map[uuid.UUID]bool{subs[0].ID: true, subs[1].ID: true}
	assert.True(t, ids[active.ID])
	assert.True(t, ids[trialing.ID])
}

func TestRepositoryPaymentRoundTrip(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	due := time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC)
	invoice := createTestInvoice(t, db, "INV-202503-0001", enums.InvoiceStatusSent, due)

	payment := &models.Payment{
		ID:        uuid.New(),
		InvoiceID: invoice.ID,
		Amount:    decimal.RequireFromString("115.00"),
		Currency:  enums.CurrencySAR,
		Method:    enums.PaymentMethodCreditCard,
		Status:    enums.PaymentStatusPending,
	}
	require.NoError(t, db.Create(payment).Error)

	found, err := repo.FindPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	processed := time.Date(2025, time.March, 20, 9, 0, 0, 0, time.UTC)
	found.Status = enums.PaymentStatusSucceeded
	found.ProcessedAt = &processed
	require.NoError(t, repo.UpdatePayment(ctx, found))

	reloaded, err := repo.FindPaymentByID(ctx, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, enums.PaymentStatusSucceeded, reloaded.Status)
	require.NotNil(t, reloaded.ProcessedAt)

	missing, err := repo.FindPaymentByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryWithTx(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	due := time.Date(2025, time.April, 7, 0, 0, 0, 0, time.UTC)
	err := db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		invoice := &models.Invoice{
			ID:            uuid.New(),
			CustomerID:    uuid.New(),
			InvoiceNumber: "INV-202504-0001",
			Type:          enums.InvoiceTypeCustom,
			TaxRate:       decimal.RequireFromString("15.00"),
			Currency:      enums.CurrencySAR,
			IssueDate:     due.AddDate(0, 0, -14),
			DueDate:       due,
			Status:        enums.InvoiceStatusDraft,
		}
		return txRepo.CreateInvoice(ctx, invoice)
	})
	require.NoError(t, err)

	highest, err := repo.HighestInvoiceNumber(ctx, "INV-202504")
	require.NoError(t, err)
	assert.Equal(t, "INV-202504-0001", highest)
}
