package party

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meridian-ops/meridian/internal/shared"
)

// Role says which side of trade a party sits on.
type Role string

const (
	RoleSupplier Role = "supplier"
	RoleCustomer Role = "customer"
	RoleBoth     Role = "both"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleSupplier, RoleCustomer, RoleBoth:
		return true
	}
	return false
}

// CanSupply reports whether purchase orders may reference the party.
func (r Role) CanSupply() bool {
	return r == RoleSupplier || r == RoleBoth
}

// Party is a supplier or customer of a business.
type Party struct {
	ID         int64      `json:"id"`
	BusinessID int64      `json:"businessId"`
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	GSTIN      string     `json:"gstin,omitempty"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Address    string     `json:"address,omitempty"`
	IsActive   bool       `json:"isActive"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

var (
	titleCaser  = cases.Title(language.English, cases.NoLower)
	gstinFormat = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][0-9A-Z]Z[0-9A-Z]$`)
)

// CanonicalName trims and title-cases a party display name.
func CanonicalName(name string) string {
	return titleCaser.String(strings.TrimSpace(name))
}

// NormalizeGSTIN canonicalizes a GSTIN for the uniqueness check. The empty
// string stays empty; GSTIN is optional.
func NormalizeGSTIN(gstin string) string {
	return strings.ToUpper(strings.TrimSpace(gstin))
}

// ValidateGSTIN checks the 15-character Indian GST registration format.
func ValidateGSTIN(gstin string) error {
	if gstin == "" {
		return nil
	}
	if !gstinFormat.MatchString(gstin) {
		return shared.ValidationErrorf("gstin %q is not a valid 15-character GSTIN", gstin)
	}
	return nil
}
