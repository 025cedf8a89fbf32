package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/madridclima/weather-etl/internal/adapter/csvstore"
	"github.com/madridclima/weather-etl/internal/config"
	"github.com/madridclima/weather-etl/internal/domain"
	"github.com/madridclima/weather-etl/internal/observability"
)

// Fetcher retrieves the hourly forecast for a municipality as a raw
// observation table.
type Fetcher interface {
	FetchHourlyTable(ctx context.Context, municipalityCode string) (*domain.Table, error)
}

// Store loads and saves observation tables. Load reports
// csvstore.ErrNotFound when no dataset exists yet; Save returns the path the
// table actually landed at, which may differ from the requested one.
type Store interface {
	Load(path string) (*domain.Table, error)
	Save(tbl *domain.Table, path string) (string, error)
}

// Publisher emits cleaned observations to a downstream sink.
type Publisher interface {
	PublishTable(ctx context.Context, tbl *domain.Table) error
}

// Collector orchestrates the fetch-merge-clean cycle: pull the hourly
// forecast, merge it into the accumulated raw dataset, run the cleaning
// pipeline over the whole dataset, and persist both CSVs.
type Collector struct {
	fetcher   Fetcher
	store     Store
	publisher Publisher

	municipality  string
	rawPath       string
	cleanPath     string
	fetchInterval time.Duration
	retryInterval time.Duration

	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Collector. publisher may be nil when downstream publishing
// is disabled.
func New(fetcher Fetcher, store Store, publisher Publisher, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Collector {
	return &Collector{
		fetcher:       fetcher,
		store:         store,
		publisher:     publisher,
		municipality:  cfg.MunicipalityCode,
		rawPath:       cfg.RawCSVPath(),
		cleanPath:     cfg.CleanCSVPath(),
		fetchInterval: cfg.FetchInterval,
		retryInterval: cfg.RetryInterval,
		logger:        logger,
		metrics:       metrics,
	}
}

// CheckReadiness returns nil once at least one collection run has succeeded.
func (c *Collector) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no successful collection yet")
	}
	return nil
}

// RunOnce executes a single collection cycle.
func (c *Collector) RunOnce(ctx context.Context) error {
	c.metrics.CollectionRuns.Inc()

	if err := c.collect(ctx); err != nil {
		c.metrics.CollectionFailures.Inc()
		c.logger.Error("collection run failed", "municipality", c.municipality, "error", err)
		return err
	}

	c.ready.Store(true)
	return nil
}

func (c *Collector) collect(ctx context.Context) error {
	fetchStart := time.Now()
	incoming, err := c.fetcher.FetchHourlyTable(ctx, c.municipality)
	if err != nil {
		return fmt.Errorf("fetch forecast: %w", err)
	}
	c.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	c.metrics.RowsFetched.Add(float64(incoming.Len()))

	existing, err := c.store.Load(c.rawPath)
	if err != nil && !errors.Is(err, csvstore.ErrNotFound) {
		return fmt.Errorf("load raw dataset: %w", err)
	}

	merged, err := csvstore.MergeForecast(existing, incoming)
	if err != nil {
		return fmt.Errorf("merge forecast: %w", err)
	}

	savedRaw, err := c.store.Save(merged, c.rawPath)
	if err != nil {
		return fmt.Errorf("save raw dataset: %w", err)
	}
	if savedRaw != c.rawPath {
		c.logger.Warn("raw dataset saved to fallback path", "path", savedRaw)
	}

	cleanStart := time.Now()
	cleaned, err := domain.Clean(merged)
	if err != nil {
		return fmt.Errorf("clean dataset: %w", err)
	}
	c.metrics.CleanDuration.Observe(time.Since(cleanStart).Seconds())
	c.metrics.DuplicatesRemoved.Add(float64(merged.Len() - cleaned.Len()))
	c.metrics.DatasetRows.Set(float64(cleaned.Len()))

	outliers, err := domain.DetectOutliers(cleaned)
	if err != nil {
		return fmt.Errorf("detect outliers: %w", err)
	}
	c.metrics.OutlierRows.Set(float64(outliers.Len()))
	if outliers.Len() > 0 {
		c.logger.Warn("implausible readings in cleaned dataset", "rows", outliers.Len())
	}

	savedClean, err := c.store.Save(cleaned, c.cleanPath)
	if err != nil {
		return fmt.Errorf("save clean dataset: %w", err)
	}
	if savedClean != c.cleanPath {
		c.logger.Warn("clean dataset saved to fallback path", "path", savedClean)
	}

	c.publish(ctx, cleaned)

	c.logger.Info("collection run complete",
		"municipality", c.municipality,
		"fetched_rows", incoming.Len(),
		"dataset_rows", cleaned.Len(),
	)
	return nil
}

// publish sends the cleaned dataset downstream. Publishing is best-effort:
// a sink outage must not fail the run, the CSVs are already on disk.
func (c *Collector) publish(ctx context.Context, cleaned *domain.Table) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishTable(ctx, cleaned); err != nil {
		c.metrics.PublishErrors.Inc()
		c.logger.Error("publish cleaned observations failed", "error", err)
	}
}

// Run executes collection cycles until the context is cancelled. Cycles run
// at fetchInterval; after a failed cycle the next attempt comes after the
// shorter retryInterval, returning to the regular cadence on success.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("collector started",
		"municipality", c.municipality,
		"fetch_interval", c.fetchInterval,
		"retry_interval", c.retryInterval,
	)
	c.metrics.CollectorRunning.Set(1)
	defer c.metrics.CollectorRunning.Set(0)

	scheduler := gocron.NewScheduler(time.UTC)

	var job *gocron.Job
	job, err := scheduler.Every(c.fetchInterval).SingletonMode().StartImmediately().Do(func() {
		interval := c.fetchInterval
		if err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
			interval = c.retryInterval
		}
		if _, err := scheduler.Job(job).Every(interval).Update(); err != nil {
			c.logger.Error("reschedule collection job failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule collection job: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	c.logger.Info("collector stopping", "reason", ctx.Err())
	scheduler.Stop()
	return nil
}
