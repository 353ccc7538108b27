package catalog

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meridian-ops/meridian/internal/ledger"
)

// Product is a sellable item. The stock counters live directly on the row so
// the ledger can lock and update them without a join.
type Product struct {
	ID         int64           `json:"id"`
	BusinessID int64           `json:"businessId"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit,omitempty"`
	Counters   ledger.Counters `json:"counters"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// NormalizeSKU canonicalizes a SKU for the per-business uniqueness check.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// CanonicalName trims and title-cases a product name for display.
func CanonicalName(name string) string {
	return titleCaser.String(strings.TrimSpace(name))
}
