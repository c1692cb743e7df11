package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store"
)

// UnitTable exposes the per-product set of sellable units: the base UOM plus
// one entry per alias. Alias rows without an explicit price get their price
// derived as base_price * factor at lookup time, so base price edits
// propagate without re-materializing anything.
type UnitTable struct {
	catalog store.Catalog
}

func NewUnitTable(catalog store.Catalog) *UnitTable {
	return &UnitTable{catalog: catalog}
}

func (u *UnitTable) UnitsFor(ctx context.Context, productID int64) ([]domain.UnitEntry, error) {
	entries, err := u.catalog.ListUnits(ctx, productID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i] = derivePrice(entries[i])
	}
	return entries, nil
}

// Lookup resolves an exact UOM for a product. The UOM must already be
// canonical; callers normalize short aliases ("kg") beforehand.
func (u *UnitTable) Lookup(ctx context.Context, productID int64, uom string) (*domain.UnitEntry, error) {
	entry, err := u.catalog.FindUnit(ctx, productID, uom)
	if err != nil {
		return nil, err
	}
	derived := derivePrice(*entry)
	return &derived, nil
}

func (u *UnitTable) MRPVariants(ctx context.Context, productID int64, uom string) ([]domain.MRPVariant, error) {
	return u.catalog.ListMRPVariants(ctx, productID, uom)
}

func derivePrice(entry domain.UnitEntry) domain.UnitEntry {
	if entry.Price.IsZero() && entry.Factor > 0 {
		entry.Price = entry.BasePrice.Mul(decimal.NewFromFloat(entry.Factor))
	}
	return entry
}
