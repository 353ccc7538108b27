package party

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-ops/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, p Party) (Party, error)
	Get(ctx context.Context, businessID, id int64) (Party, error)
	List(ctx context.Context, businessID int64, role Role, page shared.PageRequest) ([]Party, error)
	Update(ctx context.Context, p Party) error
	Deactivate(ctx context.Context, businessID, id int64) error
	// GSTINInUse checks active and inactive parties alike; a reactivated
	// party must not collide with one deactivated earlier.
	GSTINInUse(ctx context.Context, businessID int64, gstin string, excludeID int64) (bool, error)
	OpenPurchaseOrderNumbers(ctx context.Context, businessID, partyID int64) ([]string, error)
}

// Service manages the supplier/customer registry.
type Service struct {
	repo  RepositoryPort
	audit *shared.AuditLogger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries the fields for a new party.
type CreateInput struct {
	BusinessID int64
	Name       string
	Role       Role
	GSTIN      string
	Email      string
	Phone      string
	Address    string
	ActorID    int64
}

// Create registers a party. GSTIN, when present, must be unique within the
// business across active and inactive parties.
func (s *Service) Create(ctx context.Context, in CreateInput) (Party, error) {
	name := CanonicalName(in.Name)
	if name == "" {
		return Party{}, shared.ValidationErrorf("party name required")
	}
	if !in.Role.Valid() {
		return Party{}, shared.ValidationErrorf("unknown party role %q", in.Role)
	}
	gstin := NormalizeGSTIN(in.GSTIN)
	if err := ValidateGSTIN(gstin); err != nil {
		return Party{}, err
	}
	if gstin != "" {
		inUse, err := s.repo.GSTINInUse(ctx, in.BusinessID, gstin, 0)
		if err != nil {
			return Party{}, err
		}
		if inUse {
			return Party{}, shared.ConflictErrorf("gstin %s already registered", gstin)
		}
	}

	created, err := s.repo.Insert(ctx, Party{
		BusinessID: in.BusinessID,
		Name:       name,
		Role:       in.Role,
		GSTIN:      gstin,
		Email:      in.Email,
		Phone:      in.Phone,
		Address:    in.Address,
		IsActive:   true,
	})
	if err != nil {
		return Party{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			BusinessID: in.BusinessID, ActorID: in.ActorID,
			Action: "party:create", Entity: "party",
			EntityID: fmt.Sprintf("%d", created.ID),
			Meta:     map[string]any{"role": string(in.Role)},
		})
	}
	return created, nil
}

// Get fetches one party.
func (s *Service) Get(ctx context.Context, businessID, id int64) (Party, error) {
	return s.repo.Get(ctx, businessID, id)
}

// List pages through parties, optionally restricted to one role.
func (s *Service) List(ctx context.Context, businessID int64, role Role, page shared.PageRequest) ([]Party, error) {
	if role != "" && !role.Valid() {
		return nil, shared.ValidationErrorf("unknown party role %q", role)
	}
	return s.repo.List(ctx, businessID, role, page)
}

// UpdateInput carries the editable party fields.
type UpdateInput struct {
	BusinessID int64
	PartyID    int64
	Name       string
	GSTIN      string
	Email      string
	Phone      string
	Address    string
}

// Update edits contact fields. A GSTIN change re-runs the uniqueness check
// against every other party of the business.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Party, error) {
	existing, err := s.repo.Get(ctx, in.BusinessID, in.PartyID)
	if err != nil {
		return Party{}, err
	}
	name := CanonicalName(in.Name)
	if name == "" {
		return Party{}, shared.ValidationErrorf("party name required")
	}
	gstin := NormalizeGSTIN(in.GSTIN)
	if err := ValidateGSTIN(gstin); err != nil {
		return Party{}, err
	}
	if gstin != "" && gstin != existing.GSTIN {
		inUse, err := s.repo.GSTINInUse(ctx, in.BusinessID, gstin, in.PartyID)
		if err != nil {
			return Party{}, err
		}
		if inUse {
			return Party{}, shared.ConflictErrorf("gstin %s already registered", gstin)
		}
	}

	existing.Name = name
	existing.GSTIN = gstin
	existing.Email = in.Email
	existing.Phone = in.Phone
	existing.Address = in.Address
	if err := s.repo.Update(ctx, existing); err != nil {
		return Party{}, err
	}
	return existing, nil
}

// Deactivate soft-deletes a party. It is refused while any purchase order
// still references the party in a non-terminal status; the error names the
// open order numbers so the caller can close them.
func (s *Service) Deactivate(ctx context.Context, businessID, partyID int64, actorID int64) error {
	if _, err := s.repo.Get(ctx, businessID, partyID); err != nil {
		return err
	}
	open, err := s.repo.OpenPurchaseOrderNumbers(ctx, businessID, partyID)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return shared.ConflictErrorf("party %d has open purchase orders: %s", partyID, strings.Join(open, ", "))
	}
	if err := s.repo.Deactivate(ctx, businessID, partyID); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			BusinessID: businessID, ActorID: actorID,
			Action: "party:deactivate", Entity: "party",
			EntityID: fmt.Sprintf("%d", partyID),
		})
	}
	return nil
}

// ActiveSupplier resolves a party and checks it may appear on purchase
// orders.
func (s *Service) ActiveSupplier(ctx context.Context, businessID, partyID int64) (Party, error) {
	p, err := s.repo.Get(ctx, businessID, partyID)
	if err != nil {
		return Party{}, err
	}
	if !p.IsActive {
		return Party{}, shared.ValidationErrorf("party %d is deactivated", partyID)
	}
	if !p.Role.CanSupply() {
		return Party{}, shared.ValidationErrorf("party %d is not a supplier", partyID)
	}
	return p, nil
}
