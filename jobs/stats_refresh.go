package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-ops/meridian/internal/hierarchy"
	jobmetrics "github.com/meridian-ops/meridian/internal/jobs"
)

const statsTTL = 24 * time.Hour

// StatsRefreshJob recomputes the active child-count rollup of one
// warehouse subtree and caches it in Redis for the dashboard reads.
type StatsRefreshJob struct {
	pool    *pgxpool.Pool
	redis   *redis.Client
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewStatsRefreshJob constructs the job.
func NewStatsRefreshJob(pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsRefreshJob {
	return &StatsRefreshJob{pool: pool, redis: redisClient, logger: logger, metrics: metrics}
}

// Handle recounts the subtree and stores the JSON rollup.
func (j *StatsRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	return j.metrics.Track(TaskHierarchyStatsRefresh).End(j.handle(ctx, t))
}

func (j *StatsRefreshJob) handle(ctx context.Context, t *asynq.Task) error {
	var payload StatsRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var stats hierarchy.Stats
	err := j.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM zones WHERE warehouse_id=$1 AND is_deleted=FALSE),
			(SELECT COUNT(*) FROM racks WHERE warehouse_id=$1 AND is_deleted=FALSE),
			(SELECT COUNT(*) FROM shelves WHERE warehouse_id=$1 AND is_deleted=FALSE)`,
		payload.WarehouseID).Scan(&stats.Zones, &stats.Racks, &stats.Shelves)
	if err != nil {
		return err
	}

	body, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := j.redis.Set(ctx, hierarchy.StatsKey(payload.WarehouseID), body, statsTTL).Err(); err != nil {
		return err
	}

	j.logger.Info("warehouse stats refreshed",
		slog.Int64("warehouse_id", payload.WarehouseID),
		slog.Int("zones", stats.Zones),
		slog.Int("racks", stats.Racks),
		slog.Int("shelves", stats.Shelves))
	return nil
}
