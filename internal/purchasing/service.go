package purchasing

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-ops/meridian/internal/catalog"
	"github.com/meridian-ops/meridian/internal/party"
	"github.com/meridian-ops/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, businessID, id int64) (Order, error)
	ListOrders(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]Order, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, businessID, id int64) (Order, error)
	InsertOrder(ctx context.Context, o Order) (Order, error)
	InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error)
	UpdateStatus(ctx context.Context, orderID int64, status Status) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// SupplierDirectory resolves suppliers for new orders.
type SupplierDirectory interface {
	ActiveSupplier(ctx context.Context, businessID, partyID int64) (party.Party, error)
}

// SKUResolver maps canonical SKUs to product ids and reports unknown ones.
type SKUResolver interface {
	ResolveSKUs(ctx context.Context, businessID int64, skus []string) (map[string]int64, []string, error)
}

// Service coordinates purchase order operations.
type Service struct {
	repo      RepositoryPort
	suppliers SupplierDirectory
	catalog   SKUResolver
}

// NewService builds Service.
func NewService(repo RepositoryPort, suppliers SupplierDirectory, catalog SKUResolver) *Service {
	return &Service{repo: repo, suppliers: suppliers, catalog: catalog}
}

// LineInput is one requested order line.
type LineInput struct {
	SKU        string
	OrderedQty int64
	UnitCost   float64
}

// CreateInput carries the fields for a new draft order.
type CreateInput struct {
	BusinessID int64
	SupplierID int64
	Notes      string
	Lines      []LineInput
	ActorID    int64
}

// Create opens a draft order against an active supplier. Lines must name
// known catalog SKUs, each at most once.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if len(in.Lines) == 0 {
		return Order{}, shared.ValidationErrorf("purchase order needs at least one line")
	}
	supplier, err := s.suppliers.ActiveSupplier(ctx, in.BusinessID, in.SupplierID)
	if err != nil {
		return Order{}, err
	}

	skus := make([]string, 0, len(in.Lines))
	seen := make(map[string]bool, len(in.Lines))
	var duplicates []string
	for i, line := range in.Lines {
		// Lines are stored and matched against GRN lines by canonical SKU.
		sku := catalog.NormalizeSKU(line.SKU)
		if sku == "" {
			return Order{}, shared.ValidationErrorf("line %d: sku required", i+1)
		}
		in.Lines[i].SKU = sku
		if line.OrderedQty <= 0 {
			return Order{}, shared.ValidationErrorf("sku %s: ordered qty must be positive", sku)
		}
		if line.UnitCost < 0 {
			return Order{}, shared.ValidationErrorf("sku %s: unit cost cannot be negative", sku)
		}
		if seen[sku] {
			duplicates = append(duplicates, sku)
			continue
		}
		seen[sku] = true
		skus = append(skus, sku)
	}
	if len(duplicates) > 0 {
		return Order{}, shared.ValidationErrorf("duplicate skus: %s", strings.Join(duplicates, ", "))
	}
	products, missing, err := s.catalog.ResolveSKUs(ctx, in.BusinessID, skus)
	if err != nil {
		return Order{}, err
	}
	if len(missing) > 0 {
		return Order{}, shared.ValidationErrorf("unknown skus: %s", strings.Join(missing, ", "))
	}

	order := Order{
		BusinessID:   in.BusinessID,
		SupplierID:   supplier.ID,
		SupplierName: supplier.Name,
		Status:       StatusDraft,
		Notes:        in.Notes,
		CreatedBy:    in.ActorID,
	}
	items := make([]Item, 0, len(in.Lines))
	for _, line := range in.Lines {
		items = append(items, Item{
			ProductID:  products[line.SKU],
			SKU:        line.SKU,
			OrderedQty: line.OrderedQty,
			UnitCost:   line.UnitCost,
			Status:     ItemPending,
		})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		createdItems, err := tx.InsertItems(ctx, created.ID, items)
		if err != nil {
			return err
		}
		created.Items = createdItems
		order = created
		return tx.RecordAudit(ctx, shared.AuditLog{
			BusinessID: in.BusinessID, ActorID: in.ActorID,
			Action: "purchasing:create", Entity: "purchase_order",
			EntityID: fmt.Sprintf("%d", created.ID),
			Meta:     map[string]any{"order_no": created.OrderNo, "lines": len(createdItems)},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Confirm promotes a draft so receipts can land on it.
func (s *Service) Confirm(ctx context.Context, businessID, orderID, actorID int64) error {
	return s.transition(ctx, businessID, orderID, actorID, StatusConfirmed)
}

// Cancel voids an order before any receipt progress matters.
func (s *Service) Cancel(ctx context.Context, businessID, orderID, actorID int64) error {
	return s.transition(ctx, businessID, orderID, actorID, StatusCancelled)
}

// Close finishes an order that will receive nothing more.
func (s *Service) Close(ctx context.Context, businessID, orderID, actorID int64) error {
	return s.transition(ctx, businessID, orderID, actorID, StatusClosed)
}

func (s *Service) transition(ctx context.Context, businessID, orderID, actorID int64, to Status) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, businessID, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, to) {
			return shared.TransitionError("purchase order", string(order.Status), string(to))
		}
		if err := tx.UpdateStatus(ctx, orderID, to); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			BusinessID: businessID, ActorID: actorID,
			Action: "purchasing:" + string(to), Entity: "purchase_order",
			EntityID: fmt.Sprintf("%d", orderID),
			Meta:     map[string]any{"from": string(order.Status)},
		})
	})
}

// Get fetches one order with its lines.
func (s *Service) Get(ctx context.Context, businessID, orderID int64) (Order, error) {
	return s.repo.GetOrder(ctx, businessID, orderID)
}

// List pages through orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]Order, error) {
	return s.repo.ListOrders(ctx, businessID, status, page)
}
