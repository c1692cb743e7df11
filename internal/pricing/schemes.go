package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store"
)

// SchemeMatcher finds the single best-matching active promotional rule for a
// product line. Absence of a rule is a normal outcome, not an error.
type SchemeMatcher struct {
	catalog store.Catalog
	now     func() time.Time
}

func NewSchemeMatcher(catalog store.Catalog) *SchemeMatcher {
	return &SchemeMatcher{catalog: catalog, now: time.Now}
}

// BestRule returns the winning rule or nil. Filtering and the tie-break
// (highest min_qty, then highest benefit_value) are delegated to the store,
// matching how the catalog evaluates validity windows and targets.
func (m *SchemeMatcher) BestRule(ctx context.Context, productID int64, qty float64, uom string, mrp decimal.Decimal) (*domain.SchemeRule, error) {
	rule, err := m.catalog.FindBestSchemeRule(ctx, productID, qty, uom, mrp, m.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rule, nil
}
