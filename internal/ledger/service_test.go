package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/meridian/internal/shared"
)

type memoryRepo struct {
	counters  map[string]Counters
	movements []Movement
	audits    []shared.AuditLog
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{counters: make(map[string]Counters)}
}

func key(businessID, productID int64) string {
	return fmt.Sprintf("%d:%d", businessID, productID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetCounters(ctx context.Context, businessID, productID int64) (Counters, error) {
	c, ok := r.counters[key(businessID, productID)]
	if !ok {
		return Counters{}, shared.NotFoundErrorf("product %d", productID)
	}
	return c, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	result := make([]Movement, len(r.movements))
	copy(result, r.movements)
	return result, nil
}

func (tx *memoryTx) GetCountersForUpdate(ctx context.Context, businessID, productID int64) (Counters, error) {
	return tx.repo.GetCounters(ctx, businessID, productID)
}

func (tx *memoryTx) UpdateCounters(ctx context.Context, businessID, productID int64, c Counters) error {
	tx.repo.counters[key(businessID, productID)] = c
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.repo.audits = append(tx.repo.audits, log)
	return nil
}

func TestApplyMovementWritesCountersMovementAndAudit(t *testing.T) {
	repo := newMemoryRepo()
	repo.counters[key(1, 7)] = Counters{OpeningStock: 20}
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	movement, err := svc.ApplyMovement(ctx, MovementInput{
		BusinessID: 1, ProductID: 7, Kind: KindInward, Qty: 12,
		Reason: "goods received", Reference: "GRN-1001", ActorID: 42,
	})
	require.NoError(t, err)
	require.Equal(t, int64(20), movement.PhysicalBefore)
	require.Equal(t, int64(32), movement.PhysicalAfter)
	require.Equal(t, "inwardAddition", movement.Counter)

	stored := repo.counters[key(1, 7)]
	require.Equal(t, int64(12), stored.InwardAddition)

	require.Len(t, repo.movements, 1)
	require.Len(t, repo.audits, 1)
	require.Equal(t, "ledger:inward", repo.audits[0].Action)
	require.Equal(t, int64(42), repo.audits[0].ActorID)
	require.Equal(t, "GRN-1001", repo.audits[0].Meta["reference"])
}

func TestApplyMovementMintsReferenceWhenMissing(t *testing.T) {
	repo := newMemoryRepo()
	repo.counters[key(1, 7)] = Counters{OpeningStock: 20}
	svc := NewService(repo, nil, nil, ServiceConfig{})

	movement, err := svc.ApplyMovement(context.Background(), MovementInput{
		BusinessID: 1, ProductID: 7, Kind: KindInward, Qty: 2, Reason: "count fix", ActorID: 1,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(movement.Reference)
	require.NoError(t, err)
}

func TestApplyMovementRejectsWithoutWriting(t *testing.T) {
	repo := newMemoryRepo()
	repo.counters[key(1, 7)] = Counters{OpeningStock: 3}
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.ApplyMovement(context.Background(), MovementInput{
		BusinessID: 1, ProductID: 7, Kind: KindOutwardManual, Qty: 9, Reason: "pick",
	})
	require.Error(t, err)
	require.Empty(t, repo.movements)
	require.Empty(t, repo.audits)
	require.Equal(t, Counters{OpeningStock: 3}, repo.counters[key(1, 7)])
}

func TestApplyMovementUnknownProduct(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, ServiceConfig{})

	_, err := svc.ApplyMovement(context.Background(), MovementInput{
		BusinessID: 1, ProductID: 99, Kind: KindInward, Qty: 1, Reason: "x",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetAvailabilityReadThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewAvailabilityCache(client, time.Minute)

	repo := newMemoryRepo()
	repo.counters[key(1, 7)] = Counters{OpeningStock: 50, BlockedStock: 10}
	svc := NewService(repo, nil, cache, ServiceConfig{})
	ctx := context.Background()

	snap, err := svc.GetAvailability(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(40), snap.Available)

	// Served from cache even after the backing row changes.
	repo.counters[key(1, 7)] = Counters{OpeningStock: 1}
	snap, err = svc.GetAvailability(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(40), snap.Available)

	// A movement invalidates the cached snapshot.
	repo.counters[key(1, 7)] = Counters{OpeningStock: 50, BlockedStock: 10}
	_, err = svc.ApplyMovement(ctx, MovementInput{
		BusinessID: 1, ProductID: 7, Kind: KindInward, Qty: 5, Reason: "restock",
	})
	require.NoError(t, err)

	snap, err = svc.GetAvailability(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, int64(45), snap.Available)
}
