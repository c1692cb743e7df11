package pricing

import (
	"context"
	"errors"
	"strings"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store"
)

// ErrUnresolvedProduct is returned when no tier of the identity resolver
// matches the token. Callers surface it as an empty row, not a failure.
var ErrUnresolvedProduct = errors.New("unresolved product")

const (
	// resolveThreshold is the trigram similarity floor for single-pick
	// resolution; searchThreshold is the looser floor for ranked search.
	resolveThreshold = 0.3
	searchThreshold  = 0.15
	searchLimit      = 15
)

// Resolver maps a scanned barcode or typed fragment to exactly one Variant.
// Matching is tiered; the first tier with a candidate wins and later tiers
// are never consulted.
type Resolver struct {
	catalog store.Catalog
}

func NewResolver(catalog store.Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve runs the tiers in order: exact product barcode, exact alias
// barcode, exact name, substring name, trigram fuzzy fallback.
func (r *Resolver) Resolve(ctx context.Context, token string) (*domain.Variant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnresolvedProduct
	}

	variant, err := r.catalog.FindVariantByBarcode(ctx, token)
	if err == nil {
		return variant, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	variant, err = r.catalog.FindProductByExactName(ctx, token)
	if err == nil {
		return variant, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	variant, err = r.catalog.FindProductByNameFragment(ctx, token)
	if err == nil {
		return variant, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return r.resolveFuzzy(ctx, token)
}

// resolveFuzzy compares the best product-tier and alias-tier candidates above
// the similarity floor. The higher score wins; a tie keeps the base product.
func (r *Resolver) resolveFuzzy(ctx context.Context, token string) (*domain.Variant, error) {
	product, err := r.catalog.FuzzyMatchProduct(ctx, token, resolveThreshold)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	alias, err := r.catalog.FuzzyMatchAlias(ctx, token, resolveThreshold)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	switch {
	case product != nil && alias != nil:
		if product.Similarity >= alias.Similarity {
			return &product.Variant, nil
		}
		return &alias.Variant, nil
	case product != nil:
		return &product.Variant, nil
	case alias != nil:
		return &alias.Variant, nil
	default:
		return nil, ErrUnresolvedProduct
	}
}

// Search is the general catalog search: ranked, capped, and with a looser
// similarity floor than single-pick resolution.
func (r *Resolver) Search(ctx context.Context, query string) ([]domain.CatalogHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return r.catalog.SearchCatalog(ctx, query, searchThreshold, searchLimit)
}
