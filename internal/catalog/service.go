package catalog

import (
	"context"
	"fmt"

	"github.com/meridian-ops/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, businessID, id int64) (Product, error)
	GetBySKU(ctx context.Context, businessID int64, sku string) (Product, error)
	List(ctx context.Context, businessID int64, page shared.PageRequest) ([]Product, error)
	ExistingSKUs(ctx context.Context, businessID int64, skus []string) (map[string]int64, error)
	UpdateName(ctx context.Context, businessID, id int64, name, unit string) error
}

// Service manages the product catalog.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries the fields for a new product.
type CreateInput struct {
	BusinessID   int64
	SKU          string
	Name         string
	Unit         string
	OpeningStock int64
	ActorID      int64
}

// Create registers a product. The SKU is canonicalized and must be unique
// within the business; opening stock seeds the openingStock counter.
func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	sku := NormalizeSKU(in.SKU)
	if sku == "" {
		return Product{}, shared.ValidationErrorf("sku required")
	}
	name := CanonicalName(in.Name)
	if name == "" {
		return Product{}, shared.ValidationErrorf("name required")
	}
	if in.OpeningStock < 0 {
		return Product{}, shared.ValidationErrorf("opening stock cannot be negative")
	}

	p := Product{BusinessID: in.BusinessID, SKU: sku, Name: name, Unit: in.Unit}
	p.Counters.OpeningStock = in.OpeningStock
	created, err := s.repo.Insert(ctx, p)
	if err != nil {
		return Product{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			BusinessID: in.BusinessID, ActorID: in.ActorID,
			Action: "catalog:create", Entity: "product",
			EntityID: fmt.Sprintf("%d", created.ID),
			Meta:     map[string]any{"sku": sku},
		})
	}
	return created, nil
}

// Get fetches one product.
func (s *Service) Get(ctx context.Context, businessID, id int64) (Product, error) {
	return s.repo.Get(ctx, businessID, id)
}

// GetBySKU fetches a product by canonical SKU.
func (s *Service) GetBySKU(ctx context.Context, businessID int64, sku string) (Product, error) {
	return s.repo.GetBySKU(ctx, businessID, NormalizeSKU(sku))
}

// List pages through the business's products.
func (s *Service) List(ctx context.Context, businessID int64, page shared.PageRequest) ([]Product, error) {
	return s.repo.List(ctx, businessID, page)
}

// Rename updates display fields.
func (s *Service) Rename(ctx context.Context, businessID, id int64, name, unit string) error {
	name = CanonicalName(name)
	if name == "" {
		return shared.ValidationErrorf("name required")
	}
	return s.repo.UpdateName(ctx, businessID, id, name, unit)
}

// ResolveSKUs maps canonical SKUs to product ids and reports the ones the
// catalog does not know. Receiving uses it to validate GRN lines.
func (s *Service) ResolveSKUs(ctx context.Context, businessID int64, skus []string) (map[string]int64, []string, error) {
	canonical := make([]string, 0, len(skus))
	for _, sku := range skus {
		canonical = append(canonical, NormalizeSKU(sku))
	}
	found, err := s.repo.ExistingSKUs(ctx, businessID, canonical)
	if err != nil {
		return nil, nil, err
	}
	var missing []string
	for _, sku := range canonical {
		if _, ok := found[sku]; !ok {
			missing = append(missing, sku)
		}
	}
	return found, missing, nil
}
