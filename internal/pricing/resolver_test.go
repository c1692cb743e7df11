package pricing

import (
	"context"
	"errors"
	"testing"

	"kiranapos/backend/internal/domain"
)

func TestResolveBarcodeTier(t *testing.T) {
	engine, _ := newTestEngine()

	variant, err := engine.Resolver().Resolve(context.Background(), "8901234002")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if variant.Name != "Tata Salt 1kg" {
		t.Fatalf("expected Tata Salt 1kg, got %q", variant.Name)
	}
	if variant.IsAlias {
		t.Fatalf("expected base product, got alias")
	}
}

func TestResolveAliasBarcode(t *testing.T) {
	engine, _ := newTestEngine()

	variant, err := engine.Resolver().Resolve(context.Background(), "8901234005-5")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !variant.IsAlias {
		t.Fatalf("expected alias variant")
	}
	if variant.Factor != 5.0 {
		t.Fatalf("expected pack factor 5, got %v", variant.Factor)
	}
}

func TestResolveExactNameIgnoresCase(t *testing.T) {
	engine, _ := newTestEngine()

	variant, err := engine.Resolver().Resolve(context.Background(), "tata salt 1kg")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if variant.Barcode != "8901234002" {
		t.Fatalf("expected salt barcode, got %q", variant.Barcode)
	}
}

func TestResolveNameFragmentPicksFirstByName(t *testing.T) {
	engine, _ := newTestEngine()

	variant, err := engine.Resolver().Resolve(context.Background(), "Coca")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if variant.Name != "Coca Cola 500ml" {
		t.Fatalf("expected Coca Cola 500ml, got %q", variant.Name)
	}

	// Several products contain "a"; the lexicographically first name wins.
	variant, err = engine.Resolver().Resolve(context.Background(), "a")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if variant.Name != "Amul Butter 100g" {
		t.Fatalf("expected Amul Butter 100g, got %q", variant.Name)
	}
}

func TestResolveFuzzyTypo(t *testing.T) {
	engine, _ := newTestEngine()

	variant, err := engine.Resolver().Resolve(context.Background(), "Maggi Noodels 70g")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if variant.Barcode != "8901234003" {
		t.Fatalf("expected fuzzy match on Maggi, got %q (%s)", variant.Name, variant.Barcode)
	}
}

func TestResolveFuzzyAliasOutscoresProduct(t *testing.T) {
	engine, repo := newTestEngine()
	ctx := context.Background()

	oil, err := repo.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Fortune Sunflower Oil 1l", Barcode: "OILPACK1", Category: "Grocery",
		BaseUOM: "pcs", Price: dec("150"), MRP: dec("160"),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if _, err := repo.AddAlias(ctx, oil.ID, domain.AliasCreateRequest{
		Barcode: "OILPACK99", UOM: "box", MRP: dec("1580"), Price: dec("1480"),
		Factor: 10, PackQty: 10,
	}); err != nil {
		t.Fatalf("add alias failed: %v", err)
	}

	// "OILPACK9" is one trigram closer to the alias barcode than to the
	// product barcode, so the alias variant wins the fuzzy tier.
	variant, err := engine.Resolver().Resolve(ctx, "OILPACK9")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !variant.IsAlias {
		t.Fatalf("expected the alias variant, got %q", variant.Barcode)
	}
	if variant.Barcode != "OILPACK99" {
		t.Fatalf("expected alias barcode OILPACK99, got %q", variant.Barcode)
	}
}

func TestResolveFuzzyTieKeepsBaseProduct(t *testing.T) {
	engine, repo := newTestEngine()
	ctx := context.Background()

	talc, err := repo.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Zinc Talc 50g", Barcode: "ABCD1", Category: "Personal Care",
		BaseUOM: "pcs", Price: dec("40"), MRP: dec("45"),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	soap, err := repo.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Zest Soap 75g", Barcode: "ZSOAP75", Category: "Personal Care",
		BaseUOM: "pcs", Price: dec("30"), MRP: dec("32"),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if _, err := repo.AddAlias(ctx, soap.ID, domain.AliasCreateRequest{
		Barcode: "ABCD2", UOM: "box", MRP: dec("120"), Price: dec("110"),
		Factor: 4, PackQty: 4,
	}); err != nil {
		t.Fatalf("add alias failed: %v", err)
	}

	// "ABCD" scores identically against both barcodes; the base product
	// is preferred on a tie.
	variant, err := engine.Resolver().Resolve(ctx, "ABCD")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if variant.IsAlias {
		t.Fatalf("expected the base product on a tie, got alias %q", variant.Barcode)
	}
	if variant.ProductID != talc.ID {
		t.Fatalf("expected Zinc Talc, got %q", variant.Name)
	}
}

func TestResolveEmptyToken(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.Resolver().Resolve(context.Background(), "   ")
	if !errors.Is(err, ErrUnresolvedProduct) {
		t.Fatalf("expected ErrUnresolvedProduct, got %v", err)
	}
}

func TestSearchRanksAndCaps(t *testing.T) {
	engine, _ := newTestEngine()

	hits, err := engine.Resolver().Search(context.Background(), "cola")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit for cola")
	}
	if hits[0].Name != "Coca Cola 500ml" {
		t.Fatalf("expected Coca Cola 500ml as top hit, got %q", hits[0].Name)
	}
	if len(hits) > searchLimit {
		t.Fatalf("expected at most %d hits, got %d", searchLimit, len(hits))
	}

	hits, err = engine.Resolver().Search(context.Background(), "")
	if err != nil {
		t.Fatalf("empty search failed: %v", err)
	}
	if hits != nil {
		t.Fatalf("expected nil hits for empty query")
	}
}
