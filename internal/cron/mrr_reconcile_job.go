package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/sufrahq/backoffice/pkg/db/models"
	"github.com/sufrahq/backoffice/pkg/logger"
)

const defaultReconcileBatchSize = 250

// subscriptionLister lists the subscriptions whose MRR is worth refreshing.
type subscriptionLister interface {
	ListSubscriptionsForReconciliation(ctx context.Context, limit int) ([]models.Subscription, error)
}

// mrrRecalculator recomputes and persists one subscription's MRR.
type mrrRecalculator interface {
	RecalculateMRR(ctx context.Context, subscriptionID uuid.UUID) (decimal.Decimal, error)
}

// MRRReconcileJobParams configures the nightly MRR refresh.
type MRRReconcileJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionLister
	Billing       mrrRecalculator
	BatchSize     int
}

// NewMRRReconcileJob constructs the job that re-derives MRR for live
// subscriptions. Branch windows open and close without touching the
// subscription row, so the stored MRR drifts until this runs.
func NewMRRReconcileJob(params MRRReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription lister required")
	}
	if params.Billing == nil {
		return nil, fmt.Errorf("billing service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &mrrReconcileJob{
		logg:    params.Logger,
		subs:    params.Subscriptions,
		billing: params.Billing,
		batch:   batch,
	}, nil
}

type mrrReconcileJob struct {
	logg    *logger.Logger
	subs    subscriptionLister
	billing mrrRecalculator
	batch   int
}

func (j *mrrReconcileJob) Name() string { return "mrr-reconcile" }

func (j *mrrReconcileJob) Run(ctx context.Context) error {
	// Refreshing a subscription bumps its updated_at, pushing it to the back
	// of the stale-first listing, so repeated batches walk the whole live set.
	// The seen set stops the loop when failures leave rows stuck at the front.
	seen := make(map[uuid.UUID]struct{})
	refreshed := 0
	var errs []error

	for {
		subs, err := j.subs.ListSubscriptionsForReconciliation(ctx, j.batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("list subscriptions: %w", err))
			break
		}

		progressed := false
		for _, sub := range subs {
			if _, ok := seen[sub.ID]; ok {
				continue
			}
			seen[sub.ID] = struct{}{}
			progressed = true
			if _, err := j.billing.RecalculateMRR(ctx, sub.ID); err != nil {
				errs = append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
				continue
			}
			refreshed++
		}

		if !progressed || len(subs) < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"count":  refreshed,
		"failed": len(errs),
	})
	j.logg.Info(logCtx, "mrr reconcile complete")
	return multierr.Combine(errs...)
}
