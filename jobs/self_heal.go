package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/linen-ledger/internal/jobs"
	"github.com/odyssey-erp/linen-ledger/internal/masters"
	"github.com/odyssey-erp/linen-ledger/internal/shared"
)

// SelfHealUniqueTTL bounds how long a queued self-heal blocks duplicates.
const SelfHealUniqueTTL = 10 * time.Minute

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Sweeper runs the location repair sweep.
type Sweeper interface {
	SweepAll(ctx context.Context) (masters.SweepReport, error)
}

// Invalidator signals that cached report views are stale.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string) error
}

// Locker serialises sweeps across workers.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// SelfHealJob runs the masters sweep from the queue.
type SelfHealJob struct {
	Sweeper     Sweeper
	Invalidator Invalidator
	Locker      Locker
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewSelfHealJob wires dependencies for the self-heal handler. Locker may be nil.
func NewSelfHealJob(sweeper Sweeper, invalidator Invalidator, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *SelfHealJob {
	return &SelfHealJob{Sweeper: sweeper, Invalidator: invalidator, Locker: locker, Logger: logger, Metrics: metrics}
}

// Handle processes TaskMastersSelfHeal tasks.
func (j *SelfHealJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("self-heal: handler not configured")
	}
	var payload SelfHealPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	logger := j.logger().With(slog.String("requested_by", payload.RequestedBy))
	if j.Locker != nil {
		release, ok, err := j.Locker.TryLock(ctx, shared.SelfHealLockKey(), SelfHealUniqueTTL)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("masters self-heal already running, skipping")
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release self-heal lock", slog.Any("error", err))
			}
		}()
	}

	tracker := j.metrics().Track(TaskMastersSelfHeal)
	logger.Info("starting masters self-heal")

	report, err := j.Sweeper.SweepAll(ctx)
	if err != nil {
		logger.Error("masters self-heal", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().AddCreated(TaskMastersSelfHeal, report.Created)
	if report.Created > 0 && j.Invalidator != nil {
		if err := j.Invalidator.Invalidate(ctx, "/masters"); err != nil {
			logger.Warn("self-heal view invalidation", slog.Any("error", err))
		}
	}
	logger.Info("masters self-heal finished",
		slog.Int("properties", report.Properties),
		slog.Int("vendors", report.Vendors),
		slog.Int("created", report.Created))
	return tracker.End(nil)
}

func (j *SelfHealJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SelfHealJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
