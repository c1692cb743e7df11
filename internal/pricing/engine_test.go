package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store/memory"
)

func newTestEngine() (*Engine, *memory.Store) {
	repo := memory.NewSeeded()
	return NewEngine(repo), repo
}

func resolveID(t *testing.T, e *Engine, barcode string) int64 {
	t.Helper()
	variant, err := e.Resolver().Resolve(context.Background(), barcode)
	if err != nil {
		t.Fatalf("resolve %q failed: %v", barcode, err)
	}
	return variant.ProductID
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceLineBaseProduct(t *testing.T) {
	engine, _ := newTestEngine()

	item, err := engine.PriceLine(context.Background(), domain.PriceLineRequest{
		Token:    "8901234003",
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if !item.Rate.Equal(dec("12")) {
		t.Fatalf("expected rate 12, got %s", item.Rate)
	}
	if !item.LineAmount.Equal(dec("24")) {
		t.Fatalf("expected line amount 24, got %s", item.LineAmount)
	}
	if item.SchemeName != "" {
		t.Fatalf("expected no scheme below min qty, got %q", item.SchemeName)
	}
}

func TestPriceLineAppliesPercentScheme(t *testing.T) {
	engine, _ := newTestEngine()

	item, err := engine.PriceLine(context.Background(), domain.PriceLineRequest{
		Token:    "8901234003",
		Quantity: 6,
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if item.SchemeName != "Maggi Bulk Offer" {
		t.Fatalf("expected bulk offer to apply, got %q", item.SchemeName)
	}
	if !item.Gross.Equal(dec("72")) {
		t.Fatalf("expected gross 72, got %s", item.Gross)
	}
	if !item.Discount.Equal(dec("7.2")) {
		t.Fatalf("expected discount 7.2, got %s", item.Discount)
	}
	if !item.LineAmount.Equal(dec("64.8")) {
		t.Fatalf("expected line amount 64.8, got %s", item.LineAmount)
	}
}

func TestPriceLineAliasPack(t *testing.T) {
	engine, _ := newTestEngine()

	item, err := engine.PriceLine(context.Background(), domain.PriceLineRequest{
		Token:    "8901234005-5",
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if !item.Rate.Equal(dec("540")) {
		t.Fatalf("expected pack rate 540, got %s", item.Rate)
	}
	if !item.LineAmount.Equal(dec("1080")) {
		t.Fatalf("expected line amount 1080, got %s", item.LineAmount)
	}
	if item.UOM != "kg" {
		t.Fatalf("expected pack uom kg, got %q", item.UOM)
	}
}

func TestPriceLineLooseGramsDivideRate(t *testing.T) {
	engine, _ := newTestEngine()

	item, err := engine.PriceLine(context.Background(), domain.PriceLineRequest{
		Token:    "8901234005",
		Quantity: 250,
		UOM:      "gram",
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	// 250 g against the per-kg base rate of 110.
	if !item.LineAmount.Equal(dec("27.5")) {
		t.Fatalf("expected line amount 27.5, got %s", item.LineAmount)
	}
	if !item.Rate.Equal(dec("110")) {
		t.Fatalf("expected displayed rate to stay 110, got %s", item.Rate)
	}
}

func TestPriceLineUnknownUOMKeepsRate(t *testing.T) {
	engine, _ := newTestEngine()

	item, err := engine.PriceLine(context.Background(), domain.PriceLineRequest{
		Token:    "8901234001",
		Quantity: 2,
		UOM:      "dozen",
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if !item.Rate.Equal(dec("55")) {
		t.Fatalf("expected rate to stay 55 for unknown uom, got %s", item.Rate)
	}
	if !item.LineAmount.Equal(dec("110")) {
		t.Fatalf("expected line amount 110, got %s", item.LineAmount)
	}
	if item.UOM != "dozen" {
		t.Fatalf("expected requested uom to stick, got %q", item.UOM)
	}
}

func TestPriceLineUnresolvedToken(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.PriceLine(context.Background(), domain.PriceLineRequest{
		Token:    "zzz-unknown",
		Quantity: 1,
	})
	if !errors.Is(err, ErrUnresolvedProduct) {
		t.Fatalf("expected ErrUnresolvedProduct, got %v", err)
	}
}

func TestSchemeTieBreakPrefersHigherMinQty(t *testing.T) {
	engine, repo := newTestEngine()
	ctx := context.Background()
	colaID := resolveID(t, engine, "8901234004")

	validTo := time.Now().UTC().AddDate(0, 0, 7)
	_, err := repo.CreateScheme(ctx, domain.Scheme{
		Name:      "Cola Ladder",
		ValidFrom: time.Now().UTC().AddDate(0, 0, -1),
		ValidTo:   &validTo,
		Active:    true,
		Rules: []domain.SchemeRule{
			{ProductID: colaID, MinQty: 5, BenefitType: domain.BenefitPercent, BenefitValue: dec("5")},
			{ProductID: colaID, MinQty: 10, BenefitType: domain.BenefitPercent, BenefitValue: dec("2")},
		},
	})
	if err != nil {
		t.Fatalf("create scheme failed: %v", err)
	}

	item, err := engine.PriceLine(ctx, domain.PriceLineRequest{
		Token:    "8901234004",
		Quantity: 12,
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	// At qty 12 both tiers match; the higher min_qty tier wins even though
	// its benefit is smaller.
	if !item.Discount.Equal(dec("8.4")) {
		t.Fatalf("expected 2%% tier discount 8.4, got %s", item.Discount)
	}
}

func TestAbsoluteRateBenefitReplacesRate(t *testing.T) {
	engine, repo := newTestEngine()
	ctx := context.Background()
	butterID := resolveID(t, engine, "8901234001")

	_, err := repo.CreateScheme(ctx, domain.Scheme{
		Name:      "Butter Flat Rate",
		ValidFrom: time.Now().UTC().AddDate(0, 0, -1),
		Active:    true,
		Rules: []domain.SchemeRule{
			{ProductID: butterID, MinQty: 1, BenefitType: domain.BenefitAbsoluteRate, BenefitValue: dec("50")},
		},
	})
	if err != nil {
		t.Fatalf("create scheme failed: %v", err)
	}

	item, err := engine.PriceLine(ctx, domain.PriceLineRequest{
		Token:    "8901234001",
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if !item.Rate.Equal(dec("50")) {
		t.Fatalf("expected overridden rate 50, got %s", item.Rate)
	}
	if !item.Discount.IsZero() {
		t.Fatalf("expected zero discount for absolute rate, got %s", item.Discount)
	}
	if !item.LineAmount.Equal(dec("100")) {
		t.Fatalf("expected line amount 100, got %s", item.LineAmount)
	}
}

func TestAmountBenefitPerUnit(t *testing.T) {
	engine, repo := newTestEngine()
	ctx := context.Background()
	saltID := resolveID(t, engine, "8901234002")

	_, err := repo.CreateScheme(ctx, domain.Scheme{
		Name:      "Salt Cashback",
		ValidFrom: time.Now().UTC().AddDate(0, 0, -1),
		Active:    true,
		Rules: []domain.SchemeRule{
			{ProductID: saltID, MinQty: 2, BenefitType: domain.BenefitAmount, BenefitValue: dec("2")},
		},
	})
	if err != nil {
		t.Fatalf("create scheme failed: %v", err)
	}

	item, err := engine.PriceLine(ctx, domain.PriceLineRequest{
		Token:    "8901234002",
		Quantity: 3,
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if !item.Discount.Equal(dec("6")) {
		t.Fatalf("expected per-unit discount 6, got %s", item.Discount)
	}
	if !item.LineAmount.Equal(dec("69")) {
		t.Fatalf("expected line amount 69, got %s", item.LineAmount)
	}
}

func TestInactiveSchemeNeverApplies(t *testing.T) {
	engine, repo := newTestEngine()
	ctx := context.Background()

	schemes, err := repo.ListSchemes(ctx)
	if err != nil || len(schemes) == 0 {
		t.Fatalf("expected seeded scheme, got %v", err)
	}
	if err := repo.SetSchemeActive(ctx, schemes[0].ID, false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	item, err := engine.PriceLine(ctx, domain.PriceLineRequest{
		Token:    "8901234003",
		Quantity: 6,
	})
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if item.SchemeName != "" {
		t.Fatalf("expected inactive scheme to be skipped, got %q", item.SchemeName)
	}
}

func TestPriceLineIsDeterministic(t *testing.T) {
	engine, _ := newTestEngine()
	req := domain.PriceLineRequest{Token: "8901234003", Quantity: 6}

	first, err := engine.PriceLine(context.Background(), req)
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	second, err := engine.PriceLine(context.Background(), req)
	if err != nil {
		t.Fatalf("price line failed: %v", err)
	}
	if !first.LineAmount.Equal(second.LineAmount) || first.SchemeName != second.SchemeName {
		t.Fatalf("expected identical pricing for identical inputs: %v vs %v", first, second)
	}
}
