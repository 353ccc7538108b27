package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/meridian-ops/meridian/internal/hierarchy"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskHierarchyPropagateRename fans a container rename out into the
	// denormalized name copies on descendants and placements.
	TaskHierarchyPropagateRename = "hierarchy:propagate_rename"
	// TaskHierarchyStatsRefresh recomputes the child-count rollup of one
	// warehouse subtree.
	TaskHierarchyStatsRefresh = "hierarchy:stats_refresh"
	// TaskIdempotencyCleanup prunes processed idempotency keys past
	// retention.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

// PropagateRenamePayload identifies the renamed container.
type PropagateRenamePayload struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// NewPropagateRenameTask constructs the rename fan-out task.
func NewPropagateRenameTask(kind hierarchy.Kind, id int64) (*asynq.Task, error) {
	body, err := json.Marshal(PropagateRenamePayload{Kind: string(kind), ID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHierarchyPropagateRename, body, asynq.Queue(QueueDefault)), nil
}

// StatsRefreshPayload identifies the warehouse whose rollup is stale.
type StatsRefreshPayload struct {
	WarehouseID int64 `json:"warehouseId"`
}

// NewStatsRefreshTask constructs the stats rollup task.
func NewStatsRefreshTask(warehouseID int64) (*asynq.Task, error) {
	body, err := json.Marshal(StatsRefreshPayload{WarehouseID: warehouseID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHierarchyStatsRefresh, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// Client submits jobs to the queue. It satisfies the hierarchy service's
// job port.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueRenamePropagation schedules the rename fan-out.
func (c *Client) EnqueueRenamePropagation(ctx context.Context, kind hierarchy.Kind, id int64) error {
	task, err := NewPropagateRenameTask(kind, id)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// EnqueueStatsRefresh schedules the warehouse rollup recompute.
func (c *Client) EnqueueStatsRefresh(ctx context.Context, warehouseID int64) error {
	task, err := NewStatsRefreshTask(warehouseID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
