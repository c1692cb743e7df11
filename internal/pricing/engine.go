package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store"
)

var thousand = decimal.NewFromInt(1000)

// Engine turns a (token, quantity, UOM, MRP) tuple into a priced LineItem.
// It is pure given a catalog snapshot: no callbacks, no internal state, and
// identical inputs produce identical line items.
type Engine struct {
	resolver *Resolver
	units    *UnitTable
	schemes  *SchemeMatcher
}

func NewEngine(catalog store.Catalog) *Engine {
	return &Engine{
		resolver: NewResolver(catalog),
		units:    NewUnitTable(catalog),
		schemes:  NewSchemeMatcher(catalog),
	}
}

func (e *Engine) Resolver() *Resolver   { return e.resolver }
func (e *Engine) UnitTable() *UnitTable { return e.units }

// PriceLine prices one bill row. Unknown UOMs fall back to the previously
// known rate rather than failing; the only hard failure is an unresolvable
// token. Non-positive quantities are priced as given; filtering them out of
// totals is the caller's job.
func (e *Engine) PriceLine(ctx context.Context, req domain.PriceLineRequest) (domain.LineItem, error) {
	variant := req.Variant
	if variant == nil {
		resolved, err := e.resolver.Resolve(ctx, req.Token)
		if err != nil {
			if errors.Is(err, ErrUnresolvedProduct) {
				return domain.LineItem{}, fmt.Errorf("%w: %q", ErrUnresolvedProduct, req.Token)
			}
			return domain.LineItem{}, err
		}
		variant = resolved
	}
	v := *variant

	uom := strings.TrimSpace(req.UOM)
	if uom == "" {
		uom = v.UOM
	}
	rate := v.Price
	mrp := req.MRP
	if mrp.IsZero() {
		mrp = v.MRP
	}

	// Re-derive the rate when the caller picked a UOM other than the
	// variant's own. An unknown UOM keeps the prior rate; billing must not
	// block on a data gap.
	if !strings.EqualFold(uom, v.UOM) {
		unit, err := e.units.Lookup(ctx, v.ProductID, uom)
		switch {
		case err == nil:
			uom = unit.UOM
			rate = unit.Price
			mrp = unit.MRP
			v.Factor = unit.Factor
		case errors.Is(err, store.ErrNotFound):
			// fallback, not an error
		default:
			return domain.LineItem{}, err
		}
	}

	if rate.IsZero() {
		rate = v.BasePrice.Mul(decimal.NewFromFloat(v.Factor))
	}

	subGram := isSubGramUOM(uom)
	qty := decimal.NewFromFloat(req.Quantity)
	effective := rate
	if subGram {
		effective = effective.Div(thousand)
	}
	gross := qty.Mul(effective)
	discount := decimal.Zero

	rule, err := e.schemes.BestRule(ctx, v.ProductID, req.Quantity, uom, mrp)
	if err != nil {
		return domain.LineItem{}, err
	}

	// A winning rule keyed to a different UOM forces one re-derivation pass:
	// switch the line to the rule's UOM, recompute the rate, and re-run the
	// matcher once. A further UOM switch suggested by the re-run is applied
	// without switching again; multi-hop chains are unsupported.
	if rule != nil && rule.TargetUOM != "" && !strings.EqualFold(rule.TargetUOM, uom) {
		if unit, lookupErr := e.units.Lookup(ctx, v.ProductID, rule.TargetUOM); lookupErr == nil {
			uom = unit.UOM
			rate = unit.Price
			mrp = unit.MRP
			v.Factor = unit.Factor
			if rate.IsZero() {
				rate = unit.BasePrice.Mul(decimal.NewFromFloat(unit.Factor))
			}
			subGram = isSubGramUOM(uom)
			effective = rate
			if subGram {
				effective = effective.Div(thousand)
			}
			gross = qty.Mul(effective)
		} else if !errors.Is(lookupErr, store.ErrNotFound) {
			return domain.LineItem{}, lookupErr
		}
		rule, err = e.schemes.BestRule(ctx, v.ProductID, req.Quantity, uom, mrp)
		if err != nil {
			return domain.LineItem{}, err
		}
	}

	schemeName := ""
	benefitType := ""
	if rule != nil {
		schemeName = rule.SchemeName
		benefitType = rule.BenefitType

		switch rule.BenefitType {
		case domain.BenefitAbsoluteRate:
			rate = rule.BenefitValue
			effective = rate
			if subGram {
				effective = effective.Div(thousand)
			}
			gross = qty.Mul(effective)
			discount = decimal.Zero
		case domain.BenefitPercent:
			discount = gross.Mul(rule.BenefitValue).Div(decimal.NewFromInt(100))
		case domain.BenefitAmount:
			perUnit := rule.BenefitValue
			if subGram {
				perUnit = perUnit.Div(thousand)
			}
			discount = qty.Mul(perUnit)
		}
	}

	return domain.LineItem{
		ProductID:   v.ProductID,
		Name:        v.Name,
		Barcode:     v.Barcode,
		UOM:         uom,
		Quantity:    req.Quantity,
		Rate:        rate,
		MRP:         mrp,
		Gross:       gross.Round(2),
		Discount:    discount.Round(2),
		LineAmount:  gross.Sub(discount).Round(2),
		SchemeName:  schemeName,
		BenefitType: benefitType,
	}, nil
}

// isSubGramUOM reports whether the UOM sells loose weight against a
// per-kilogram base rate, in which case rates divide by 1000.
func isSubGramUOM(uom string) bool {
	switch strings.ToLower(strings.TrimSpace(uom)) {
	case "g", "gram", "grams":
		return true
	default:
		return false
	}
}
