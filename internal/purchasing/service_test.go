package purchasing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/meridian/internal/catalog"
	"github.com/meridian-ops/meridian/internal/party"
	"github.com/meridian-ops/meridian/internal/shared"
)

type memoryRepo struct {
	orders map[int64]Order
	audits []shared.AuditLog
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]Order)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOrder(ctx context.Context, businessID, id int64) (Order, error) {
	o, ok := r.orders[id]
	if !ok || o.BusinessID != businessID {
		return Order{}, shared.NotFoundErrorf("purchase order %d", id)
	}
	return o, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		if o.BusinessID == businessID && (status == "" || o.Status == status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, businessID, id int64) (Order, error) {
	return tx.repo.GetOrder(ctx, businessID, id)
}

func (tx *memoryTx) InsertOrder(ctx context.Context, o Order) (Order, error) {
	tx.repo.nextID++
	o.ID = tx.repo.nextID
	o.OrderNo = fmt.Sprintf("PO-%d", 1000+o.ID)
	tx.repo.orders[o.ID] = o
	return o, nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for i, it := range items {
		it.ID = int64(i + 1)
		it.OrderID = orderID
		out = append(out, it)
	}
	o := tx.repo.orders[orderID]
	o.Items = out
	tx.repo.orders[orderID] = o
	return out, nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	o, ok := tx.repo.orders[orderID]
	if !ok {
		return shared.NotFoundErrorf("purchase order %d", orderID)
	}
	o.Status = status
	tx.repo.orders[orderID] = o
	return nil
}

func (tx *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	tx.repo.audits = append(tx.repo.audits, log)
	return nil
}

type stubSuppliers struct {
	parties map[int64]party.Party
}

func (s *stubSuppliers) ActiveSupplier(ctx context.Context, businessID, partyID int64) (party.Party, error) {
	p, ok := s.parties[partyID]
	if !ok {
		return party.Party{}, shared.NotFoundErrorf("party %d", partyID)
	}
	if !p.IsActive {
		return party.Party{}, shared.ValidationErrorf("party %d is deactivated", partyID)
	}
	return p, nil
}

type stubCatalog struct {
	known map[string]int64
}

// Resolution keys by canonical SKU, like the catalog service does.
func (s *stubCatalog) ResolveSKUs(ctx context.Context, businessID int64, skus []string) (map[string]int64, []string, error) {
	found := make(map[string]int64)
	var missing []string
	for _, sku := range skus {
		sku = catalog.NormalizeSKU(sku)
		if id, ok := s.known[sku]; ok {
			found[sku] = id
		} else {
			missing = append(missing, sku)
		}
	}
	return found, missing, nil
}

func newTestService(repo *memoryRepo) *Service {
	suppliers := &stubSuppliers{parties: map[int64]party.Party{
		5: {ID: 5, BusinessID: 1, Name: "Acme Traders", Role: party.RoleSupplier, IsActive: true},
	}}
	catalog := &stubCatalog{known: map[string]int64{"WID-001": 101, "BOLT-9": 102}}
	return NewService(repo, suppliers, catalog)
}

func TestCreateDraftOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, SupplierID: 5, ActorID: 9,
		Lines: []LineInput{
			{SKU: "WID-001", OrderedQty: 10, UnitCost: 2.5},
			{SKU: "BOLT-9", OrderedQty: 100, UnitCost: 0.1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, order.Status)
	require.Equal(t, "Acme Traders", order.SupplierName)
	require.Len(t, order.Items, 2)
	require.Equal(t, int64(101), order.Items[0].ProductID)
	require.Equal(t, ItemPending, order.Items[0].Status)
	require.Len(t, repo.audits, 1)
}

func TestCreateCanonicalizesLineSKUs(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, SupplierID: 5, ActorID: 9,
		Lines: []LineInput{{SKU: " wid-001 ", OrderedQty: 10, UnitCost: 2.5}},
	})
	require.NoError(t, err)
	require.Equal(t, "WID-001", order.Items[0].SKU)
	require.Equal(t, int64(101), order.Items[0].ProductID)
}

func TestCreateRejectsDuplicateSKUsAcrossCasing(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, SupplierID: 5,
		Lines: []LineInput{
			{SKU: "WID-001", OrderedQty: 1},
			{SKU: "wid-001", OrderedQty: 2},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "WID-001")
}

func TestCreateRejectsUnknownSKU(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, SupplierID: 5,
		Lines: []LineInput{{SKU: "NOPE-1", OrderedQty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "NOPE-1")
}

func TestCreateRejectsDuplicateSKUs(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, SupplierID: 5,
		Lines: []LineInput{
			{SKU: "WID-001", OrderedQty: 1},
			{SKU: "WID-001", OrderedQty: 2},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "WID-001")
}

func TestCreateRejectsInactiveSupplier(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo,
		&stubSuppliers{parties: map[int64]party.Party{5: {ID: 5, IsActive: false}}},
		&stubCatalog{known: map[string]int64{"WID-001": 101}})

	_, err := svc.Create(context.Background(), CreateInput{
		BusinessID: 1, SupplierID: 5,
		Lines: []LineInput{{SKU: "WID-001", OrderedQty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConfirmThenCancelTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		BusinessID: 1, SupplierID: 5,
		Lines: []LineInput{{SKU: "WID-001", OrderedQty: 10}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(ctx, 1, order.ID, 9))
	require.Equal(t, StatusConfirmed, repo.orders[order.ID].Status)

	require.NoError(t, svc.Cancel(ctx, 1, order.ID, 9))
	require.Equal(t, StatusCancelled, repo.orders[order.ID].Status)

	// Terminal: nothing moves a cancelled order.
	err = svc.Confirm(ctx, 1, order.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCloseRejectsDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateInput{
		BusinessID: 1, SupplierID: 5,
		Lines: []LineInput{{SKU: "WID-001", OrderedQty: 10}},
	})
	require.NoError(t, err)

	err = svc.Close(ctx, 1, order.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}
