package receiving

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-ops/meridian/internal/hierarchy"
	"github.com/meridian-ops/meridian/internal/ledger"
	"github.com/meridian-ops/meridian/internal/placement"
	"github.com/meridian-ops/meridian/internal/purchasing"
	"github.com/meridian-ops/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetGRN(ctx context.Context, businessID, id int64) (GRN, error)
	ListGRNs(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]GRN, error)
}

// TxRepository spans every table a GRN operation touches, so ledger
// updates, placement upserts, purchase order recomputes and the status
// write commit or roll back together.
type TxRepository interface {
	GetGRNForUpdate(ctx context.Context, businessID, id int64) (GRN, error)
	InsertGRN(ctx context.Context, g GRN) (GRN, error)
	ReplaceGRNItems(ctx context.Context, grnID int64, items []Item) ([]Item, error)
	UpdateGRNHeader(ctx context.Context, g GRN) error

	GetOrderForUpdate(ctx context.Context, businessID, id int64) (purchasing.Order, error)
	UpdateOrderItems(ctx context.Context, items []purchasing.Item) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status purchasing.Status) error

	GetCountersForUpdate(ctx context.Context, businessID, productID int64) (ledger.Counters, error)
	UpdateCounters(ctx context.Context, businessID, productID int64, c ledger.Counters) error
	InsertMovement(ctx context.Context, m ledger.Movement) (int64, error)

	GetPlacementForUpdate(ctx context.Context, businessID, productID, shelfID int64) (placement.Placement, error)
	InsertPlacement(ctx context.Context, p placement.Placement) (int64, error)
	UpdatePlacement(ctx context.Context, p placement.Placement) error

	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// SKUResolver maps canonical SKUs to product ids and reports unknown ones.
type SKUResolver interface {
	ResolveSKUs(ctx context.Context, businessID int64, skus []string) (map[string]int64, []string, error)
}

// ShelfLocator resolves target shelves into full placement locations.
type ShelfLocator interface {
	GetShelfLocation(ctx context.Context, businessID, shelfID int64) (hierarchy.Shelf, error)
}

// ServiceConfig groups settings.
type ServiceConfig struct {
	// LineCap bounds the quantity of a single inward line.
	LineCap int64
}

// Service coordinates goods receipt.
type Service struct {
	repo    RepositoryPort
	catalog SKUResolver
	shelves ShelfLocator
	cache   *ledger.AvailabilityCache
	lineCap int64
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog SKUResolver, shelves ShelfLocator, cache *ledger.AvailabilityCache, cfg ServiceConfig) *Service {
	lineCap := cfg.LineCap
	if lineCap <= 0 {
		lineCap = ledger.DefaultLineCap
	}
	return &Service{repo: repo, catalog: catalog, shelves: shelves, cache: cache, lineCap: lineCap}
}

// CreateInput opens a draft GRN against a purchase order.
type CreateInput struct {
	BusinessID int64
	OrderID    int64
	Items      []Item
	ActorID    int64
}

// Create opens a draft GRN. The linked order must be confirmed (or already
// partially received) — drafts and terminal orders take no receipts. When
// lines are supplied they are recorded immediately, contributing receipt
// progress to the order exactly as ReplaceItems would.
func (s *Service) Create(ctx context.Context, in CreateInput) (GRN, error) {
	var items []Item
	if len(in.Items) > 0 {
		normalized, err := s.normalizeAndResolve(ctx, in.BusinessID, in.Items)
		if err != nil {
			return GRN{}, err
		}
		items = normalized
	}

	grn := GRN{
		BusinessID: in.BusinessID,
		OrderID:    in.OrderID,
		Status:     StatusDraft,
		CreatedBy:  in.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, in.BusinessID, in.OrderID)
		if err != nil {
			return err
		}
		if order.Status == purchasing.StatusDraft {
			return shared.ValidationErrorf("purchase order %s is still a draft; confirm it first", order.OrderNo)
		}
		if order.Status.IsTerminal() {
			return shared.ConflictErrorf("purchase order %s is %s and takes no receipts", order.OrderNo, order.Status)
		}

		created, err := tx.InsertGRN(ctx, grn)
		if err != nil {
			return err
		}
		grn = created

		if len(items) > 0 {
			if err := s.recordItems(ctx, tx, &grn, order, items, in.ActorID); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			BusinessID: in.BusinessID, ActorID: in.ActorID,
			Action: "receiving:create", Entity: "grn",
			EntityID: fmt.Sprintf("%d", grn.ID),
			Meta:     map[string]any{"grn_no": grn.GRNNo, "order_id": in.OrderID},
		})
	})
	if err != nil {
		return GRN{}, err
	}
	return grn, nil
}

// ReplaceItems swaps a draft GRN's lines. The previous lines' contribution
// to the purchase order is reversed and the new lines' applied, so the
// order's receipt progress always mirrors the draft's current content.
func (s *Service) ReplaceItems(ctx context.Context, businessID, grnID int64, items []Item, actorID int64) (GRN, error) {
	normalized, err := s.normalizeAndResolve(ctx, businessID, items)
	if err != nil {
		return GRN{}, err
	}

	var grn GRN
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		grn, err = tx.GetGRNForUpdate(ctx, businessID, grnID)
		if err != nil {
			return err
		}
		if grn.Status != StatusDraft {
			return shared.ValidationErrorf("grn %s is %s; items can only change while draft", grn.GRNNo, grn.Status)
		}
		order, err := tx.GetOrderForUpdate(ctx, businessID, grn.OrderID)
		if err != nil {
			return err
		}
		return s.recordItems(ctx, tx, &grn, order, normalized, actorID)
	})
	if err != nil {
		return GRN{}, err
	}
	return grn, nil
}

// recordItems reverses the GRN's previous purchase order contribution,
// applies the new one, replaces the lines and recomputes the aggregates.
// Runs inside the caller's transaction.
func (s *Service) recordItems(ctx context.Context, tx TxRepository, grn *GRN, order purchasing.Order, items []Item, actorID int64) error {
	orderItems := order.Items
	var err error
	for _, old := range grn.Items {
		orderItems, err = purchasing.ReverseReceipt(orderItems, old.SKU, old.AcceptedQty, old.RejectedQty)
		if err != nil {
			return err
		}
	}
	for _, it := range items {
		orderItems, err = purchasing.ApplyReceipt(orderItems, it.SKU, it.AcceptedQty, it.RejectedQty)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.ValidationErrorf("sku %s is not on purchase order %s", it.SKU, order.OrderNo)
			}
			return err
		}
	}
	if err := tx.UpdateOrderItems(ctx, orderItems); err != nil {
		return err
	}
	if next := purchasing.DeriveOrderStatus(order.Status, orderItems); next != order.Status {
		if err := tx.UpdateOrderStatus(ctx, order.ID, next); err != nil {
			return err
		}
	}

	stored, err := tx.ReplaceGRNItems(ctx, grn.ID, items)
	if err != nil {
		return err
	}
	grn.Items = stored
	grn.Totals = Aggregate(stored)
	if err := tx.UpdateGRNHeader(ctx, *grn); err != nil {
		return err
	}
	return tx.RecordAudit(ctx, shared.AuditLog{
		BusinessID: grn.BusinessID, ActorID: actorID,
		Action: "receiving:items_replaced", Entity: "grn",
		EntityID: fmt.Sprintf("%d", grn.ID),
		Meta: map[string]any{
			"grn_no":         grn.GRNNo,
			"lines":          len(stored),
			"total_received": grn.Totals.ReceivedQty,
		},
	})
}

// CompleteResult reports the per-SKU outcome of a bulk inward.
type CompleteResult struct {
	GRNNo       string       `json:"grnNo"`
	ItemResults []ItemResult `json:"itemResults"`
}

// ItemResult is one SKU's inward outcome.
type ItemResult struct {
	SKU              string `json:"sku"`
	AcceptedQty      int64  `json:"acceptedQty"`
	PreviousPhysical int64  `json:"previousPhysicalStock"`
	NewPhysical      int64  `json:"newPhysicalStock"`
	PlacementID      int64  `json:"placementId"`
}

// Complete puts a draft GRN's accepted stock away at the target shelf:
// per accepted line one ledger inward, one placement upsert and one audit
// entry, then the completed mark and the inward stamp. One transaction;
// partial application is never observable.
func (s *Service) Complete(ctx context.Context, businessID, grnID, shelfID, actorID int64) (CompleteResult, error) {
	shelf, err := s.shelves.GetShelfLocation(ctx, businessID, shelfID)
	if err != nil {
		return CompleteResult{}, err
	}
	loc := shelfLocation(shelf)

	var result CompleteResult
	var touched []int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grn, err := tx.GetGRNForUpdate(ctx, businessID, grnID)
		if err != nil {
			return err
		}
		if !CanTransition(grn.Status, StatusCompleted) {
			return shared.TransitionError("grn", string(grn.Status), string(StatusCompleted))
		}
		if len(grn.Items) == 0 {
			return shared.ValidationErrorf("grn %s has no items to inward", grn.GRNNo)
		}

		result = CompleteResult{GRNNo: grn.GRNNo}
		for _, it := range grn.Items {
			if it.AcceptedQty <= 0 {
				continue
			}
			itemResult, err := s.inwardLine(ctx, tx, inwardLine{
				BusinessID: businessID,
				ProductID:  it.ProductID,
				SKU:        it.SKU,
				Qty:        it.AcceptedQty,
				Location:   loc,
				Reason:     "goods received",
				Reference:  grn.GRNNo,
				ActorID:    actorID,
			})
			if err != nil {
				return err
			}
			result.ItemResults = append(result.ItemResults, itemResult)
			touched = append(touched, it.ProductID)
		}
		if len(result.ItemResults) == 0 {
			return shared.ValidationErrorf("grn %s has no accepted quantities to inward", grn.GRNNo)
		}

		now := time.Now().UTC()
		grn.Status = StatusCompleted
		grn.InwardedAt = &now
		grn.InwardedBy = actorID
		grn.InwardLocation = loc.Path()
		if err := tx.UpdateGRNHeader(ctx, grn); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			BusinessID: businessID, ActorID: actorID,
			Action: "receiving:complete", Entity: "grn",
			EntityID: fmt.Sprintf("%d", grnID),
			Meta: map[string]any{
				"grn_no":   grn.GRNNo,
				"location": loc.Path(),
				"lines":    len(result.ItemResults),
			},
		})
	})
	if err != nil {
		return CompleteResult{}, err
	}
	s.invalidate(ctx, businessID, touched)
	return result, nil
}

// CancelResult reports the order the cancellation rolled back.
type CancelResult struct {
	OrderID   int64             `json:"poId"`
	NewStatus purchasing.Status `json:"newPoStatus"`
}

// Cancel voids a draft GRN, reversing exactly the receipt progress its
// lines had contributed to the purchase order.
func (s *Service) Cancel(ctx context.Context, businessID, grnID, actorID int64) (CancelResult, error) {
	var result CancelResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grn, err := tx.GetGRNForUpdate(ctx, businessID, grnID)
		if err != nil {
			return err
		}
		if !CanTransition(grn.Status, StatusCancelled) {
			return shared.TransitionError("grn", string(grn.Status), string(StatusCancelled))
		}
		order, err := tx.GetOrderForUpdate(ctx, businessID, grn.OrderID)
		if err != nil {
			return err
		}

		orderItems := order.Items
		for _, it := range grn.Items {
			orderItems, err = purchasing.ReverseReceipt(orderItems, it.SKU, it.AcceptedQty, it.RejectedQty)
			if err != nil {
				return err
			}
		}
		if err := tx.UpdateOrderItems(ctx, orderItems); err != nil {
			return err
		}
		next := purchasing.DeriveOrderStatus(order.Status, orderItems)
		if next != order.Status {
			if err := tx.UpdateOrderStatus(ctx, order.ID, next); err != nil {
				return err
			}
		}
		result = CancelResult{OrderID: order.ID, NewStatus: next}

		grn.Status = StatusCancelled
		if err := tx.UpdateGRNHeader(ctx, grn); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			BusinessID: businessID, ActorID: actorID,
			Action: "receiving:cancel", Entity: "grn",
			EntityID: fmt.Sprintf("%d", grnID),
			Meta:     map[string]any{"grn_no": grn.GRNNo, "po_status": string(next)},
		})
	})
	if err != nil {
		return CancelResult{}, err
	}
	return result, nil
}

// InwardInput is one standalone inward application.
type InwardInput struct {
	BusinessID int64
	ProductID  int64
	Qty        int64
	ShelfID    int64
	Reference  string
	ActorID    int64
}

// InwardResult reports the ledger and placement outcome.
type InwardResult struct {
	PreviousPhysical int64 `json:"previousPhysicalStock"`
	NewPhysical      int64 `json:"newPhysicalStock"`
	PlacementID      int64 `json:"placementId"`
}

// ApplyInward adds stock at a shelf outside any GRN: one ledger inward and
// one placement upsert, committed together.
func (s *Service) ApplyInward(ctx context.Context, in InwardInput) (InwardResult, error) {
	shelf, err := s.shelves.GetShelfLocation(ctx, in.BusinessID, in.ShelfID)
	if err != nil {
		return InwardResult{}, err
	}
	loc := shelfLocation(shelf)

	var result InwardResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		itemResult, err := s.inwardLine(ctx, tx, inwardLine{
			BusinessID: in.BusinessID,
			ProductID:  in.ProductID,
			Qty:        in.Qty,
			Location:   loc,
			Reason:     "manual inward",
			Reference:  in.Reference,
			ActorID:    in.ActorID,
		})
		if err != nil {
			return err
		}
		result = InwardResult{
			PreviousPhysical: itemResult.PreviousPhysical,
			NewPhysical:      itemResult.NewPhysical,
			PlacementID:      itemResult.PlacementID,
		}
		return nil
	})
	if err != nil {
		return InwardResult{}, err
	}
	s.invalidate(ctx, in.BusinessID, []int64{in.ProductID})
	return result, nil
}

// OutwardInput is one stock deduction from a shelf.
type OutwardInput struct {
	BusinessID int64
	ProductID  int64
	Qty        int64
	ShelfID    int64
	Kind       ledger.Kind
	Reason     string
	Reference  string
	ActorID    int64
}

// OutwardResult reports the ledger and placement outcome.
type OutwardResult struct {
	PreviousPhysical int64 `json:"previousPhysicalStock"`
	NewPhysical      int64 `json:"newPhysicalStock"`
	RemainingOnShelf int64 `json:"remainingOnShelf"`
}

// ApplyOutward takes stock off a shelf: one ledger deduction and the
// matching placement decrement, committed together. The placement guard
// keeps a shelf from going negative even while the ledger still holds
// stock placed elsewhere.
func (s *Service) ApplyOutward(ctx context.Context, in OutwardInput) (OutwardResult, error) {
	if in.Qty <= 0 {
		return OutwardResult{}, shared.ValidationErrorf("outward qty must be positive")
	}
	kind := in.Kind
	if kind == "" {
		kind = ledger.KindOutwardManual
	}
	if kind != ledger.KindOutwardManual && kind != ledger.KindOutwardAuto {
		return OutwardResult{}, shared.ValidationErrorf("kind %s does not take stock off a shelf", kind)
	}
	reason := in.Reason
	if reason == "" {
		reason = "manual outward"
	}

	var result OutwardResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pl, err := tx.GetPlacementForUpdate(ctx, in.BusinessID, in.ProductID, in.ShelfID)
		if errors.Is(err, placement.ErrPlacementNotFound) {
			return shared.NotFoundErrorf("no placement of product %d on shelf %d", in.ProductID, in.ShelfID)
		}
		if err != nil {
			return err
		}
		if err := pl.ApplyDelta(-in.Qty, reason, in.Reference); err != nil {
			return err
		}
		counters, err := tx.GetCountersForUpdate(ctx, in.BusinessID, in.ProductID)
		if err != nil {
			return err
		}
		applied, err := ledger.ApplyDelta(counters, kind, in.Qty, s.lineCap)
		if err != nil {
			return err
		}
		if err := tx.UpdateCounters(ctx, in.BusinessID, in.ProductID, applied.Counters); err != nil {
			return err
		}
		movement := ledger.BuildMovement(ledger.MovementInput{
			BusinessID: in.BusinessID,
			ProductID:  in.ProductID,
			Kind:       kind,
			Qty:        in.Qty,
			Reason:     reason,
			Reference:  in.Reference,
			ActorID:    in.ActorID,
		}, applied)
		movementID, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = movementID
		if err := tx.RecordAudit(ctx, ledger.MovementAudit(movement)); err != nil {
			return err
		}
		if err := tx.UpdatePlacement(ctx, pl); err != nil {
			return err
		}
		result = OutwardResult{
			PreviousPhysical: applied.Before.Physical,
			NewPhysical:      applied.After.Physical,
			RemainingOnShelf: pl.Quantity,
		}
		return nil
	})
	if err != nil {
		return OutwardResult{}, err
	}
	s.invalidate(ctx, in.BusinessID, []int64{in.ProductID})
	return result, nil
}

// Get fetches one GRN with its lines.
func (s *Service) Get(ctx context.Context, businessID, grnID int64) (GRN, error) {
	return s.repo.GetGRN(ctx, businessID, grnID)
}

// List pages through GRNs, optionally filtered by status.
func (s *Service) List(ctx context.Context, businessID int64, status Status, page shared.PageRequest) ([]GRN, error) {
	return s.repo.ListGRNs(ctx, businessID, status, page)
}

type inwardLine struct {
	BusinessID int64
	ProductID  int64
	SKU        string
	Qty        int64
	Location   placement.Location
	Reason     string
	Reference  string
	ActorID    int64
}

// inwardLine applies one inward quantity: ledger counters, movement log,
// audit entry and placement upsert, all through the caller's transaction.
func (s *Service) inwardLine(ctx context.Context, tx TxRepository, line inwardLine) (ItemResult, error) {
	counters, err := tx.GetCountersForUpdate(ctx, line.BusinessID, line.ProductID)
	if err != nil {
		return ItemResult{}, err
	}
	applied, err := ledger.ApplyDelta(counters, ledger.KindInward, line.Qty, s.lineCap)
	if err != nil {
		return ItemResult{}, err
	}
	if err := tx.UpdateCounters(ctx, line.BusinessID, line.ProductID, applied.Counters); err != nil {
		return ItemResult{}, err
	}
	movement := ledger.BuildMovement(ledger.MovementInput{
		BusinessID: line.BusinessID,
		ProductID:  line.ProductID,
		Kind:       ledger.KindInward,
		Qty:        line.Qty,
		Reason:     line.Reason,
		Reference:  line.Reference,
		ActorID:    line.ActorID,
	}, applied)
	movementID, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return ItemResult{}, err
	}
	movement.ID = movementID
	if err := tx.RecordAudit(ctx, ledger.MovementAudit(movement)); err != nil {
		return ItemResult{}, err
	}

	placementID, err := s.upsertPlacement(ctx, tx, line)
	if err != nil {
		return ItemResult{}, err
	}
	return ItemResult{
		SKU:              line.SKU,
		AcceptedQty:      line.Qty,
		PreviousPhysical: applied.Before.Physical,
		NewPhysical:      applied.After.Physical,
		PlacementID:      placementID,
	}, nil
}

func (s *Service) upsertPlacement(ctx context.Context, tx TxRepository, line inwardLine) (int64, error) {
	existing, err := tx.GetPlacementForUpdate(ctx, line.BusinessID, line.ProductID, line.Location.ShelfID)
	switch {
	case errors.Is(err, placement.ErrPlacementNotFound):
		created, err := placement.New(line.BusinessID, line.ProductID, line.Location, line.Qty, line.Reason, line.Reference)
		if err != nil {
			return 0, err
		}
		return tx.InsertPlacement(ctx, created)
	case err != nil:
		return 0, err
	}
	if err := existing.ApplyDelta(line.Qty, line.Reason, line.Reference); err != nil {
		return 0, err
	}
	if err := tx.UpdatePlacement(ctx, existing); err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// normalizeAndResolve normalizes lines and attaches product ids, rejecting
// unknown SKUs with the full missing list.
func (s *Service) normalizeAndResolve(ctx context.Context, businessID int64, items []Item) ([]Item, error) {
	normalized, err := NormalizeItems(items)
	if err != nil {
		return nil, err
	}
	skus := make([]string, 0, len(normalized))
	for _, it := range normalized {
		skus = append(skus, it.SKU)
	}
	products, missing, err := s.catalog.ResolveSKUs(ctx, businessID, skus)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, shared.ValidationErrorf("unknown skus: %s", strings.Join(missing, ", "))
	}
	for i := range normalized {
		normalized[i].ProductID = products[normalized[i].SKU]
	}
	return normalized, nil
}

func (s *Service) invalidate(ctx context.Context, businessID int64, productIDs []int64) {
	if s.cache == nil {
		return
	}
	for _, id := range productIDs {
		_ = s.cache.Invalidate(ctx, businessID, id)
	}
}

func shelfLocation(sh hierarchy.Shelf) placement.Location {
	return placement.Location{
		WarehouseID:   sh.WarehouseID,
		ZoneID:        sh.ZoneID,
		RackID:        sh.RackID,
		ShelfID:       sh.ID,
		WarehouseName: sh.WarehouseName,
		ZoneName:      sh.ZoneName,
		RackName:      sh.RackName,
		ShelfName:     sh.Name,
	}
}
