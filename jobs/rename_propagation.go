package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian/internal/hierarchy"
	jobmetrics "github.com/meridian-ops/meridian/internal/jobs"
)

// RenamePropagationJob pushes a container's current name into the
// denormalized copies carried by descendants and placements. The rename
// itself commits synchronously; this fan-out is what keeps shelf-count
// renames off the request path.
type RenamePropagationJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewRenamePropagationJob constructs the job.
func NewRenamePropagationJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *RenamePropagationJob {
	return &RenamePropagationJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes one rename fan-out task. Statements run in one
// transaction; a retried task simply rewrites the same names.
func (j *RenamePropagationJob) Handle(ctx context.Context, t *asynq.Task) error {
	return j.metrics.Track(TaskHierarchyPropagateRename).End(j.handle(ctx, t))
}

func (j *RenamePropagationJob) handle(ctx context.Context, t *asynq.Task) error {
	var payload PropagateRenamePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	name, err := j.currentName(ctx, hierarchy.Kind(payload.Kind), payload.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Container deleted between enqueue and processing.
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var statements []statement
	switch hierarchy.Kind(payload.Kind) {
	case hierarchy.KindWarehouse:
		statements = []statement{
			{`UPDATE zones SET warehouse_name=$2, updated_at=NOW() WHERE warehouse_id=$1`, payload.ID, name},
			{`UPDATE racks SET warehouse_name=$2, updated_at=NOW() WHERE warehouse_id=$1`, payload.ID, name},
			{`UPDATE shelves SET warehouse_name=$2, updated_at=NOW() WHERE warehouse_id=$1`, payload.ID, name},
			{`UPDATE placements SET warehouse_name=$2, updated_at=NOW() WHERE warehouse_id=$1`, payload.ID, name},
		}
	case hierarchy.KindZone:
		statements = []statement{
			{`UPDATE racks SET zone_name=$2, updated_at=NOW() WHERE zone_id=$1`, payload.ID, name},
			{`UPDATE shelves SET zone_name=$2, updated_at=NOW() WHERE zone_id=$1`, payload.ID, name},
			{`UPDATE placements SET zone_name=$2, updated_at=NOW() WHERE zone_id=$1`, payload.ID, name},
		}
	case hierarchy.KindRack:
		statements = []statement{
			{`UPDATE shelves SET rack_name=$2, updated_at=NOW() WHERE rack_id=$1`, payload.ID, name},
			{`UPDATE placements SET rack_name=$2, updated_at=NOW() WHERE rack_id=$1`, payload.ID, name},
		}
	case hierarchy.KindShelf:
		statements = []statement{
			{`UPDATE placements SET shelf_name=$2, updated_at=NOW() WHERE shelf_id=$1`, payload.ID, name},
		}
	default:
		return asynq.SkipRetry
	}

	rows := int64(0)
	for _, s := range statements {
		tag, err := tx.Exec(ctx, s.sql, s.id, s.name)
		if err != nil {
			return err
		}
		rows += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	j.logger.Info("rename propagated",
		slog.String("kind", payload.Kind),
		slog.Int64("id", payload.ID),
		slog.Int64("rows", rows))
	return nil
}

type statement struct {
	sql  string
	id   int64
	name string
}

func (j *RenamePropagationJob) currentName(ctx context.Context, kind hierarchy.Kind, id int64) (string, error) {
	var table string
	switch kind {
	case hierarchy.KindWarehouse:
		table = "warehouses"
	case hierarchy.KindZone:
		table = "zones"
	case hierarchy.KindRack:
		table = "racks"
	case hierarchy.KindShelf:
		table = "shelves"
	default:
		return "", asynq.SkipRetry
	}
	var name string
	err := j.pool.QueryRow(ctx, `SELECT name FROM `+table+` WHERE id=$1`, id).Scan(&name)
	return name, err
}
