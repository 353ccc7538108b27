package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-ops/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCounters(ctx context.Context, businessID, productID int64) (Counters, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetCountersForUpdate(ctx context.Context, businessID, productID int64) (Counters, error)
	UpdateCounters(ctx context.Context, businessID, productID int64, counters Counters) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// MovementFilter filters the movement log.
type MovementFilter struct {
	BusinessID int64
	ProductID  int64
	Kind       Kind
	From       time.Time
	To         time.Time
	Limit      int
}

// MovementInput describes one requested stock movement.
type MovementInput struct {
	BusinessID int64
	ProductID  int64
	Kind       Kind
	Qty        int64
	Reason     string
	Reference  string
	ActorID    int64
	// IdempotencyKey, when set, guards against double application of a
	// retried request.
	IdempotencyKey string
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// LineCap bounds the quantity of a single movement line.
	LineCap int64
}

// Service coordinates ledger operations.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	cache       *AvailabilityCache
	lineCap     int64
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, cache *AvailabilityCache, cfg ServiceConfig) *Service {
	lineCap := cfg.LineCap
	if lineCap <= 0 {
		lineCap = DefaultLineCap
	}
	return &Service{repo: repo, idempotency: idem, cache: cache, lineCap: lineCap}
}

// LineCap reports the configured per-line quantity cap.
func (s *Service) LineCap() int64 { return s.lineCap }

// ApplyMovement validates and applies one movement inside a transaction:
// counter update, movement log row and audit entry commit together.
func (s *Service) ApplyMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if input.BusinessID == 0 || input.ProductID == 0 {
		return Movement{}, shared.ValidationErrorf("business and product required")
	}
	// Every movement row carries a reference; mint one when the caller
	// has no document to point at.
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "ledger"); err != nil {
			return Movement{}, err
		}
		insertedKey = true
	}

	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		counters, err := tx.GetCountersForUpdate(ctx, input.BusinessID, input.ProductID)
		if err != nil {
			return err
		}
		applied, err := ApplyDelta(counters, input.Kind, input.Qty, s.lineCap)
		if err != nil {
			return err
		}
		if err := tx.UpdateCounters(ctx, input.BusinessID, input.ProductID, applied.Counters); err != nil {
			return err
		}
		movement = BuildMovement(input, applied)
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return tx.RecordAudit(ctx, MovementAudit(movement))
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Movement{}, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, input.BusinessID, input.ProductID)
	}
	return movement, nil
}

// GetAvailability returns the available stock of a product, read through
// the redis cache when one is configured.
func (s *Service) GetAvailability(ctx context.Context, businessID, productID int64) (Snapshot, error) {
	if businessID == 0 || productID == 0 {
		return Snapshot{}, shared.ValidationErrorf("business and product required")
	}
	if s.cache != nil {
		if snap, ok, err := s.cache.Get(ctx, businessID, productID); err == nil && ok {
			return snap, nil
		}
	}
	counters, err := s.repo.GetCounters(ctx, businessID, productID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := counters.Snapshot()
	if s.cache != nil {
		_ = s.cache.Set(ctx, businessID, productID, snap)
	}
	return snap, nil
}

// ListMovements lists movement log entries.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.BusinessID == 0 || filter.ProductID == 0 {
		return nil, shared.ValidationErrorf("business and product required")
	}
	if filter.Limit <= 0 {
		filter.Limit = 200
	}
	return s.repo.ListMovements(ctx, filter)
}

// BuildMovement combines the input and the applied delta into the persisted
// movement record.
func BuildMovement(input MovementInput, applied Applied) Movement {
	return Movement{
		BusinessID:      input.BusinessID,
		ProductID:       input.ProductID,
		Kind:            input.Kind,
		Qty:             input.Qty,
		Counter:         applied.Counter,
		OldValue:        applied.OldValue,
		NewValue:        applied.NewValue,
		PhysicalBefore:  applied.Before.Physical,
		PhysicalAfter:   applied.After.Physical,
		AvailableBefore: applied.Before.Available,
		AvailableAfter:  applied.After.Available,
		Reason:          input.Reason,
		Reference:       input.Reference,
		ActorID:         input.ActorID,
		OccurredAt:      time.Now().UTC(),
	}
}

// MovementAudit builds the audit entry for one applied movement, recording
// the old and new value of the counter that changed and the source reference.
func MovementAudit(m Movement) shared.AuditLog {
	return shared.AuditLog{
		BusinessID: m.BusinessID,
		ActorID:    m.ActorID,
		Action:     fmt.Sprintf("ledger:%s", m.Kind),
		Entity:     "product_stock",
		EntityID:   fmt.Sprintf("%d", m.ProductID),
		Meta: map[string]any{
			"counter":          m.Counter,
			"old_value":        m.OldValue,
			"new_value":        m.NewValue,
			"qty":              m.Qty,
			"physical_before":  m.PhysicalBefore,
			"physical_after":   m.PhysicalAfter,
			"available_before": m.AvailableBefore,
			"available_after":  m.AvailableAfter,
			"reason":           m.Reason,
			"reference":        m.Reference,
		},
	}
}
