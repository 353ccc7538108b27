package placement

import (
	"context"
	"errors"

	"github.com/meridian-ops/meridian/internal/shared"
)

// ErrPlacementNotFound indicates no placement exists for a (product, shelf) pair.
var ErrPlacementNotFound = errors.New("placement not found")

// RepositoryPort abstracts repository usage for the service. Writes go
// through the receiving transaction, which owns pairing placement deltas
// with their ledger movements; this service only reads.
type RepositoryPort interface {
	ListForProduct(ctx context.Context, businessID, productID int64) ([]Placement, error)
}

// Service answers placement queries.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListForProduct returns all placements holding stock of the product, each
// annotated with its human-readable location path.
func (s *Service) ListForProduct(ctx context.Context, businessID, productID int64) ([]Placement, error) {
	if businessID == 0 || productID == 0 {
		return nil, shared.ValidationErrorf("business and product required")
	}
	return s.repo.ListForProduct(ctx, businessID, productID)
}
