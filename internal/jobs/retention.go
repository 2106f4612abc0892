package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Roohan-gm/shopblizz-backend/internal/repositories"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

const (
	defaultRetentionWindow = 30 * 24 * time.Hour
	defaultBatchSize       = 100
	meterName              = "github.com/Roohan-gm/shopblizz-backend/internal/jobs"
)

// RetentionSweeperDeps configures the sweeper.
type RetentionSweeperDeps struct {
	Products  repositories.ProductRepository
	Media     services.MediaStore
	Cache     services.ProductSnapshotCache
	Window    time.Duration
	BatchSize int
	Clock     func() time.Time
	Logger    *zap.Logger
	Meter     metric.Meter
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Cutoff  time.Time
	Scanned int
	Purged  int
	// Skipped counts candidates restored or removed between listing and deletion.
	Skipped int
	Failed  int
}

// RetentionSweeper hard-deletes products that were soft-deleted longer than the retention
// window ago.
type RetentionSweeper struct {
	products  repositories.ProductRepository
	media     services.MediaStore
	cache     services.ProductSnapshotCache
	window    time.Duration
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
	purged    metric.Int64Counter
}

// NewRetentionSweeper builds the sweeper. Media and cache are optional.
func NewRetentionSweeper(deps RetentionSweeperDeps) (*RetentionSweeper, error) {
	if deps.Products == nil {
		return nil, errors.New("retention sweeper: product repository is required")
	}
	window := deps.Window
	if window <= 0 {
		window = defaultRetentionWindow
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	purged, err := meter.Int64Counter("catalog.retention.products",
		metric.WithDescription("Soft-deleted products processed by the retention sweeper"),
	)
	if err != nil {
		return nil, fmt.Errorf("retention sweeper: counter: %w", err)
	}
	return &RetentionSweeper{
		products:  deps.Products,
		media:     deps.Media,
		cache:     deps.Cache,
		window:    window,
		batchSize: batch,
		now:       clock,
		logger:    logger,
		purged:    purged,
	}, nil
}

// Run purges every eligible product. Per-item failures are logged and skipped; only a failure
// to list candidates is returned. Attempted ids are excluded from later batches by widening the
// listing, so failing items at the head of the queue never hide the rest.
func (s *RetentionSweeper) Run(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Cutoff: s.now().UTC().Add(-s.window)}
	// ids already attempted this run that may still be listed
	excluded := make(map[string]bool)

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		limit := s.batchSize + len(excluded)
		candidates, err := s.products.ListPurgeable(ctx, report.Cutoff, limit)
		if err != nil {
			return report, fmt.Errorf("retention sweeper: list candidates: %w", err)
		}

		attempted := 0
		for _, product := range candidates {
			if excluded[product.ID] {
				continue
			}
			attempted++
			report.Scanned++
			if !product.IsDeleted || product.DeletedAt == nil || !product.DeletedAt.Before(report.Cutoff) {
				excluded[product.ID] = true
				continue
			}
			purged, err := s.purge(ctx, product.ID, product.Image.AssetID, report.Cutoff)
			if err != nil {
				excluded[product.ID] = true
				report.Failed++
				s.purged.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
				s.logger.Warn("retention purge failed", zap.String("product_id", product.ID), zap.Error(err))
				continue
			}
			if !purged {
				excluded[product.ID] = true
				report.Skipped++
				continue
			}
			report.Purged++
			s.purged.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "purged")))
		}

		if len(candidates) < limit || attempted == 0 {
			break
		}
	}

	s.logger.Info("retention sweep finished",
		zap.Time("cutoff", report.Cutoff),
		zap.Int("scanned", report.Scanned),
		zap.Int("purged", report.Purged),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// purge hard-deletes the product and then releases its image. It reports false when the
// product was restored or removed since it was listed.
func (s *RetentionSweeper) purge(ctx context.Context, productID, assetID string, cutoff time.Time) (bool, error) {
	if err := s.products.Delete(ctx, productID, cutoff); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return false, nil
		}
		return false, err
	}
	if s.media != nil && assetID != "" {
		if err := s.media.Release(ctx, assetID); err != nil {
			s.logger.Warn("retention media release failed",
				zap.String("product_id", productID),
				zap.String("asset_id", assetID),
				zap.Error(err),
			)
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, productID); err != nil {
			s.logger.Debug("retention cache invalidate failed", zap.String("product_id", productID), zap.Error(err))
		}
	}
	return true, nil
}
