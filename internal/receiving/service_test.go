package receiving

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/meridian/internal/hierarchy"
	"github.com/meridian-ops/meridian/internal/ledger"
	"github.com/meridian-ops/meridian/internal/placement"
	"github.com/meridian-ops/meridian/internal/purchasing"
	"github.com/meridian-ops/meridian/internal/shared"
)

// memoryRepo backs the fat transactional port with rollback semantics: a
// failed callback restores the pre-transaction state, mirroring what the
// database transaction guarantees.
type memoryRepo struct {
	grns       map[int64]GRN
	orders     map[int64]purchasing.Order
	counters   map[int64]ledger.Counters
	placements map[string]placement.Placement
	movements  []ledger.Movement
	audits     []shared.AuditLog
	nextID     int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		grns:       make(map[int64]GRN),
		orders:     make(map[int64]purchasing.Order),
		counters:   make(map[int64]ledger.Counters),
		placements: make(map[string]placement.Placement),
	}
}

func placementKey(productID, shelfID int64) string {
	return fmt.Sprintf("%d:%d", productID, shelfID)
}

func (r *memoryRepo) snapshot() *memoryRepo {
	c := newMemoryRepo()
	for k, v := range r.grns {
		v.Items = append([]Item(nil), v.Items...)
		c.grns[k] = v
	}
	for k, v := range r.orders {
		v.Items = append([]purchasing.Item(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range r.counters {
		c.counters[k] = v
	}
	for k, v := range r.placements {
		c.placements[k] = v
	}
	c.movements = append([]ledger.Movement(nil), r.movements...)
	c.audits = append([]shared.AuditLog(nil), r.audits...)
	c.nextID = r.nextID
	return c
}

func (r *memoryRepo) restore(s *memoryRepo) {
	r.grns = s.grns
	r.orders = s.orders
	r.counters = s.counters
	r.placements = s.placements
	r.movements = s.movements
	r.audits = s.audits
	r.nextID = s.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(before)
		return err
	}
	return nil
}

func (r *memoryRepo) GetGRN(ctx context.Context, businessID, id int64) (GRN, error) {
	g, ok := r.grns[id]
	if !ok || g.BusinessID != businessID {
		return GRN{}, shared.NotFoundErrorf("grn %d", id)
	}
	return g, nil
}

func (r *memoryRepo) ListGRNs(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]GRN, error) {
	var out []GRN
	for _, g := range r.grns {
		if g.BusinessID == businessID && (status == "" || g.Status == status) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetGRNForUpdate(ctx context.Context, businessID, id int64) (GRN, error) {
	return tx.repo.GetGRN(ctx, businessID, id)
}

func (tx *memoryTx) InsertGRN(ctx context.Context, g GRN) (GRN, error) {
	tx.repo.nextID++
	g.ID = tx.repo.nextID
	g.GRNNo = fmt.Sprintf("GRN-%d", 5000+g.ID)
	tx.repo.grns[g.ID] = g
	return g, nil
}

func (tx *memoryTx) ReplaceGRNItems(ctx context.Context, grnID int64, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for i, it := range items {
		it.ID = int64(i + 1)
		it.GRNID = grnID
		out = append(out, it)
	}
	g := tx.repo.grns[grnID]
	g.Items = out
	tx.repo.grns[grnID] = g
	return out, nil
}

func (tx *memoryTx) UpdateGRNHeader(ctx context.Context, g GRN) error {
	stored, ok := tx.repo.grns[g.ID]
	if !ok {
		return shared.NotFoundErrorf("grn %d", g.ID)
	}
	g.Items = stored.Items
	tx.repo.grns[g.ID] = g
	return nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, businessID, id int64) (purchasing.Order, error) {
	o, ok := tx.repo.orders[id]
	if !ok || o.BusinessID != businessID {
		return purchasing.Order{}, shared.NotFoundErrorf("purchase order %d", id)
	}
	return o, nil
}

func (tx *memoryTx) UpdateOrderItems(ctx context.Context, items []purchasing.Item) error {
	for _, it := range items {
		o := tx.repo.orders[it.OrderID]
		for i := range o.Items {
			if o.Items[i].ID == it.ID {
				o.Items[i] = it
			}
		}
		tx.repo.orders[it.OrderID] = o
	}
	return nil
}

func (tx *memoryTx) UpdateOrderStatus(ctx context.Context, orderID int64, status purchasing.Status) error {
	o, ok := tx.repo.orders[orderID]
	if !ok {
		return shared.NotFoundErrorf("purchase order %d", orderID)
	}
	o.Status = status
	tx.repo.orders[orderID] = o
	return nil
}

func (tx *memoryTx) GetCountersForUpdate(ctx context.Context, businessID, productID int64) (ledger.Counters, error) {
	c, ok := tx.repo.counters[productID]
	if !ok {
		return ledger.Counters{}, shared.NotFoundErrorf("product %d", productID)
	}
	return c, nil
}

func (tx *memoryTx) UpdateCounters(ctx context.Context, businessID, productID int64, c ledger.Counters) error {
	tx.repo.counters[productID] = c
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m ledger.Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func (tx *memoryTx) GetPlacementForUpdate(ctx context.Context, businessID, productID, shelfID int64) (placement.Placement, error) {
	p, ok := tx.repo.placements[placementKey(productID, shelfID)]
	if !ok {
		return placement.Placement{}, placement.ErrPlacementNotFound
	}
	return p, nil
}

func (tx *memoryTx) InsertPlacement(ctx context.Context, p placement.Placement) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.placements[placementKey(p.ProductID, p.Location.ShelfID)] = p
	return p.ID, nil
}

func (tx *memoryTx) UpdatePlacement(ctx context.Context, p placement.Placement) error {
	tx.repo.placements[placementKey(p.ProductID, p.Location.ShelfID)] = p
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.repo.audits = append(tx.repo.audits, log)
	return nil
}

type stubCatalog struct {
	known map[string]int64
}

func (s *stubCatalog) ResolveSKUs(ctx context.Context, businessID int64, skus []string) (map[string]int64, []string, error) {
	found := make(map[string]int64)
	var missing []string
	for _, sku := range skus {
		if id, ok := s.known[sku]; ok {
			found[sku] = id
		} else {
			missing = append(missing, sku)
		}
	}
	return found, missing, nil
}

type stubShelves struct{}

func (stubShelves) GetShelfLocation(ctx context.Context, businessID, shelfID int64) (hierarchy.Shelf, error) {
	if shelfID == 404 {
		return hierarchy.Shelf{}, shared.NotFoundErrorf("shelf %d", shelfID)
	}
	return hierarchy.Shelf{
		ID: shelfID, BusinessID: businessID, WarehouseID: 1, ZoneID: 2, RackID: 3,
		Name: fmt.Sprintf("S%d", shelfID), WarehouseName: "Main", ZoneName: "Zone A", RackName: "Rack 1",
	}, nil
}

// fixture seeds product X-1 (id 101) and a confirmed order with one line of
// expected 20, matching the inward-then-cancel walkthrough.
func fixture() (*memoryRepo, *Service) {
	repo := newMemoryRepo()
	repo.counters[101] = ledger.Counters{OpeningStock: 5}
	repo.orders[1] = purchasing.Order{
		ID: 1, BusinessID: 1, OrderNo: "PO-1001", Status: purchasing.StatusConfirmed,
		Items: []purchasing.Item{
			{ID: 11, OrderID: 1, ProductID: 101, SKU: "X-1", OrderedQty: 20, Status: purchasing.ItemPending},
		},
	}
	svc := NewService(repo, &stubCatalog{known: map[string]int64{"X-1": 101}}, stubShelves{}, nil, ServiceConfig{})
	return repo, svc
}

func TestCreateRecordsReceiptProgressOnOrder(t *testing.T) {
	repo, svc := fixture()

	grn, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, OrderID: 1, ActorID: 9,
		Items: []Item{{SKU: "X-1", ExpectedQty: 20, AcceptedQty: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, grn.Status)
	require.Equal(t, int64(101), grn.Items[0].ProductID)
	require.Equal(t, int64(10), grn.Totals.ReceivedQty)

	order := repo.orders[1]
	require.Equal(t, int64(10), order.Items[0].ReceivedQty)
	require.Equal(t, purchasing.ItemPartiallyReceived, order.Items[0].Status)
	require.Equal(t, purchasing.StatusPartiallyReceived, order.Status)
}

func TestCreateRejectsDraftAndTerminalOrders(t *testing.T) {
	repo, svc := fixture()
	ctx := context.Background()

	o := repo.orders[1]
	o.Status = purchasing.StatusDraft
	repo.orders[1] = o
	_, err := svc.Create(ctx, CreateInput{BusinessID: 1, OrderID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	o.Status = purchasing.StatusCancelled
	repo.orders[1] = o
	_, err = svc.Create(ctx, CreateInput{BusinessID: 1, OrderID: 1})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRejectsSKUNotOnOrder(t *testing.T) {
	repo, svc := fixture()
	svc.catalog = &stubCatalog{known: map[string]int64{"X-1": 101, "Y-2": 102}}

	_, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, OrderID: 1,
		Items: []Item{{SKU: "Y-2", AcceptedQty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.grns)
}

func TestCompleteInwardsAcceptedStock(t *testing.T) {
	repo, svc := fixture()
	ctx := context.Background()

	grn, err := svc.Create(ctx, CreateInput{
		BusinessID: 1, OrderID: 1, ActorID: 9,
		Items: []Item{{SKU: "X-1", ExpectedQty: 20, AcceptedQty: 10}},
	})
	require.NoError(t, err)

	result, err := svc.Complete(ctx, 1, grn.ID, 7, 9)
	require.NoError(t, err)
	require.Len(t, result.ItemResults, 1)
	require.Equal(t, int64(5), result.ItemResults[0].PreviousPhysical)
	require.Equal(t, int64(15), result.ItemResults[0].NewPhysical)

	require.Equal(t, int64(10), repo.counters[101].InwardAddition)

	placed := repo.placements[placementKey(101, 7)]
	require.Equal(t, int64(10), placed.Quantity)
	require.True(t, placed.CreateUPCs)
	require.Equal(t, "Zone A > Rack 1 > S7", placed.Location.Path())

	stored := repo.grns[grn.ID]
	require.Equal(t, StatusCompleted, stored.Status)
	require.NotNil(t, stored.InwardedAt)
	require.Equal(t, int64(9), stored.InwardedBy)
	require.Len(t, repo.movements, 1)
}

func TestCancelReversesOrderProgress(t *testing.T) {
	repo, svc := fixture()
	ctx := context.Background()

	grn, err := svc.Create(ctx, CreateInput{
		BusinessID: 1, OrderID: 1, ActorID: 9,
		Items: []Item{{SKU: "X-1", ExpectedQty: 20, AcceptedQty: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, purchasing.StatusPartiallyReceived, repo.orders[1].Status)

	result, err := svc.Cancel(ctx, 1, grn.ID, 9)
	require.NoError(t, err)
	require.Equal(t, int64(1), result.OrderID)
	require.Equal(t, purchasing.StatusConfirmed, result.NewStatus)

	order := repo.orders[1]
	require.Equal(t, int64(0), order.Items[0].ReceivedQty)
	require.Equal(t, purchasing.ItemPending, order.Items[0].Status)
	require.Equal(t, purchasing.StatusConfirmed, order.Status)
	require.Equal(t, StatusCancelled, repo.grns[grn.ID].Status)
}

func TestTerminalGRNRejectsFurtherTransitions(t *testing.T) {
	repo, svc := fixture()
	ctx := context.Background()

	grn, err := svc.Create(ctx, CreateInput{
		BusinessID: 1, OrderID: 1,
		Items: []Item{{SKU: "X-1", AcceptedQty: 10}},
	})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, 1, grn.ID, 7, 9)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, 1, grn.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	_, err = svc.Complete(ctx, 1, grn.ID, 7, 9)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Equal(t, int64(10), repo.counters[101].InwardAddition)
}

func TestReplaceItemsRebasesOrderContribution(t *testing.T) {
	repo, svc := fixture()
	ctx := context.Background()

	grn, err := svc.Create(ctx, CreateInput{
		BusinessID: 1, OrderID: 1,
		Items: []Item{{SKU: "X-1", ExpectedQty: 20, AcceptedQty: 10}},
	})
	require.NoError(t, err)

	// The replacement contributes 20, not 10+20.
	updated, err := svc.ReplaceItems(ctx, 1, grn.ID, []Item{
		{SKU: "X-1", ExpectedQty: 20, AcceptedQty: 20},
	}, 9)
	require.NoError(t, err)
	require.Equal(t, int64(20), updated.Totals.ReceivedQty)

	order := repo.orders[1]
	require.Equal(t, int64(20), order.Items[0].ReceivedQty)
	require.Equal(t, purchasing.ItemFullyReceived, order.Items[0].Status)
	require.Equal(t, purchasing.StatusFullyReceived, order.Status)
}

func TestPlacementMergesAcrossGRNs(t *testing.T) {
	repo, svc := fixture()
	ctx := context.Background()

	for _, qty := range []int64{4, 6} {
		grn, err := svc.Create(ctx, CreateInput{
			BusinessID: 1, OrderID: 1,
			Items: []Item{{SKU: "X-1", ExpectedQty: 20, AcceptedQty: qty}},
		})
		require.NoError(t, err)
		_, err = svc.Complete(ctx, 1, grn.ID, 7, 9)
		require.NoError(t, err)
	}

	require.Len(t, repo.placements, 1)
	placed := repo.placements[placementKey(101, 7)]
	require.Equal(t, int64(10), placed.Quantity)
	// First inward creates with the flag set, the merge flips it.
	require.False(t, placed.CreateUPCs)
}

func TestCompleteRollsBackEntirelyOnLineFailure(t *testing.T) {
	repo, svc := fixture()
	ctx := context.Background()

	repo.counters[102] = ledger.Counters{}
	repo.orders[1] = purchasing.Order{
		ID: 1, BusinessID: 1, OrderNo: "PO-1001", Status: purchasing.StatusConfirmed,
		Items: []purchasing.Item{
			{ID: 11, OrderID: 1, ProductID: 101, SKU: "X-1", OrderedQty: 600, Status: purchasing.ItemPending},
			{ID: 12, OrderID: 1, ProductID: 102, SKU: "Y-2", OrderedQty: 10, Status: purchasing.ItemPending},
		},
	}
	svc.catalog = &stubCatalog{known: map[string]int64{"X-1": 101, "Y-2": 102}}

	grn, err := svc.Create(ctx, CreateInput{
		BusinessID: 1, OrderID: 1,
		Items: []Item{
			{SKU: "Y-2", ExpectedQty: 10, AcceptedQty: 5},
			{SKU: "X-1", ExpectedQty: 600, AcceptedQty: 501}, // over the line cap
		},
	})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, 1, grn.ID, 7, 9)
	require.ErrorIs(t, err, shared.ErrValidation)

	// Nothing from the first line leaked out.
	require.Equal(t, int64(0), repo.counters[102].InwardAddition)
	require.Empty(t, repo.placements)
	require.Empty(t, repo.movements)
	require.Equal(t, StatusDraft, repo.grns[grn.ID].Status)
}

func TestApplyInwardStandalone(t *testing.T) {
	repo, svc := fixture()

	result, err := svc.ApplyInward(context.Background(), InwardInput{
		BusinessID: 1, ProductID: 101, Qty: 7, ShelfID: 3, Reference: "adjustment", ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), result.PreviousPhysical)
	require.Equal(t, int64(12), result.NewPhysical)
	require.NotZero(t, result.PlacementID)
	require.Equal(t, int64(7), repo.placements[placementKey(101, 3)].Quantity)
}

func TestApplyOutwardDecrementsLedgerAndPlacement(t *testing.T) {
	repo, svc := fixture()
	_, err := svc.ApplyInward(context.Background(), InwardInput{
		BusinessID: 1, ProductID: 101, Qty: 7, ShelfID: 3, ActorID: 9,
	})
	require.NoError(t, err)

	result, err := svc.ApplyOutward(context.Background(), OutwardInput{
		BusinessID: 1, ProductID: 101, Qty: 4, ShelfID: 3, Reason: "pick", ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, int64(12), result.PreviousPhysical)
	require.Equal(t, int64(8), result.NewPhysical)
	require.Equal(t, int64(3), result.RemainingOnShelf)
	require.Equal(t, int64(3), repo.placements[placementKey(101, 3)].Quantity)

	last := repo.movements[len(repo.movements)-1]
	require.Equal(t, ledger.KindOutwardManual, last.Kind)
	require.Equal(t, int64(4), last.Qty)
}

func TestApplyOutwardBoundedByShelfQuantity(t *testing.T) {
	repo, svc := fixture()
	_, err := svc.ApplyInward(context.Background(), InwardInput{
		BusinessID: 1, ProductID: 101, Qty: 2, ShelfID: 3, ActorID: 9,
	})
	require.NoError(t, err)
	movementsBefore := len(repo.movements)

	// More stock may exist in the ledger, but not on this shelf.
	_, err = svc.ApplyOutward(context.Background(), OutwardInput{
		BusinessID: 1, ProductID: 101, Qty: 5, ShelfID: 3, ActorID: 9,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, int64(2), repo.placements[placementKey(101, 3)].Quantity)
	require.Len(t, repo.movements, movementsBefore)
}

func TestApplyOutwardWithoutPlacement(t *testing.T) {
	_, svc := fixture()

	_, err := svc.ApplyOutward(context.Background(), OutwardInput{
		BusinessID: 1, ProductID: 101, Qty: 1, ShelfID: 3, ActorID: 9,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyOutwardRejectsInwardKind(t *testing.T) {
	_, svc := fixture()

	_, err := svc.ApplyOutward(context.Background(), OutwardInput{
		BusinessID: 1, ProductID: 101, Qty: 1, ShelfID: 3,
		Kind: ledger.KindInward, ActorID: 9,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestApplyInwardUnknownShelf(t *testing.T) {
	_, svc := fixture()

	_, err := svc.ApplyInward(context.Background(), InwardInput{
		BusinessID: 1, ProductID: 101, Qty: 1, ShelfID: 404,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
