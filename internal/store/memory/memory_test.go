package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store"
)

func productIDByBarcode(t *testing.T, s *Store, barcode string) int64 {
	t.Helper()
	variant, err := s.FindVariantByBarcode(context.Background(), barcode)
	if err != nil {
		t.Fatalf("find %q failed: %v", barcode, err)
	}
	return variant.ProductID
}

func TestCreateProductRejectsDuplicateBarcode(t *testing.T) {
	s := NewSeeded()

	_, err := s.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Name: "Another Butter", Barcode: "8901234001", BaseUOM: "pcs",
		Price: dec("50"), MRP: dec("55"),
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAliasBarcodeCollidesWithProduct(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	saltID := productIDByBarcode(t, s, "8901234002")

	_, err := s.AddAlias(ctx, saltID, domain.AliasCreateRequest{
		Barcode: "8901234001", UOM: "pkt", MRP: dec("28"), Price: dec("25"), Factor: 1, PackQty: 1,
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate against existing product barcode, got %v", err)
	}
}

func TestSoftDeleteHidesProductFromLookups(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	colaID := productIDByBarcode(t, s, "8901234004")

	if err := s.SoftDeleteProduct(ctx, colaID, time.Now().UTC()); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	if _, err := s.FindVariantByBarcode(ctx, "8901234004"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted product to be invisible, got %v", err)
	}
	if _, err := s.FindProductByExactName(ctx, "Coca Cola 500ml"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted product to be invisible by name, got %v", err)
	}

	deleted, err := s.ListDeletedProducts(ctx)
	if err != nil || len(deleted) != 1 {
		t.Fatalf("expected one deleted product, got %d (%v)", len(deleted), err)
	}

	if err := s.RestoreProduct(ctx, colaID); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if _, err := s.FindVariantByBarcode(ctx, "8901234004"); err != nil {
		t.Fatalf("expected restored product to resolve, got %v", err)
	}
}

func TestPurgeRespectsRetentionCutoff(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	colaID := productIDByBarcode(t, s, "8901234004")
	saltID := productIDByBarcode(t, s, "8901234002")

	now := time.Now().UTC()
	if err := s.SoftDeleteProduct(ctx, colaID, now.AddDate(0, 0, -40)); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if err := s.SoftDeleteProduct(ctx, saltID, now); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	purged, err := s.PurgeDeletedProducts(ctx, now.Add(-domain.SoftDeleteRetention))
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected exactly the 40-day-old product purged, got %d", purged)
	}

	deleted, err := s.ListDeletedProducts(ctx)
	if err != nil || len(deleted) != 1 {
		t.Fatalf("expected the recent deletion to survive, got %d (%v)", len(deleted), err)
	}
}

func TestFindBestSchemeRuleHonorsWindowAndQty(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	maggiID := productIDByBarcode(t, s, "8901234003")
	today := time.Now().UTC()

	rule, err := s.FindBestSchemeRule(ctx, maggiID, 5, "pcs", dec("14"), today)
	if err != nil {
		t.Fatalf("expected seeded rule to match at min qty: %v", err)
	}
	if rule.SchemeName != "Maggi Bulk Offer" {
		t.Fatalf("unexpected scheme %q", rule.SchemeName)
	}

	if _, err := s.FindBestSchemeRule(ctx, maggiID, 4, "pcs", dec("14"), today); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no rule below min qty, got %v", err)
	}

	// Outside the validity window nothing matches.
	if _, err := s.FindBestSchemeRule(ctx, maggiID, 5, "pcs", dec("14"), today.AddDate(0, 0, 60)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no rule outside window, got %v", err)
	}
}

func TestFindBestSchemeRuleTargetMRP(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	saltID := productIDByBarcode(t, s, "8901234002")

	target := dec("30")
	_, err := s.CreateScheme(ctx, domain.Scheme{
		Name:      "Salt Batch Offer",
		ValidFrom: time.Now().UTC().AddDate(0, 0, -1),
		Active:    true,
		Rules: []domain.SchemeRule{
			{ProductID: saltID, MinQty: 1, TargetMRP: &target, BenefitType: domain.BenefitPercent, BenefitValue: dec("5")},
		},
	})
	if err != nil {
		t.Fatalf("create scheme failed: %v", err)
	}

	today := time.Now().UTC()
	if _, err := s.FindBestSchemeRule(ctx, saltID, 2, "pcs", dec("28"), today); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected mismatched MRP to be skipped, got %v", err)
	}
	rule, err := s.FindBestSchemeRule(ctx, saltID, 2, "pcs", dec("30"), today)
	if err != nil {
		t.Fatalf("expected matching MRP to hit: %v", err)
	}
	if !rule.BenefitValue.Equal(dec("5")) {
		t.Fatalf("unexpected benefit value %s", rule.BenefitValue)
	}
}

func TestListMRPVariantsDeduplicates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	colaID := productIDByBarcode(t, s, "8901234004")

	for i, barcode := range []string{"8901234004-a", "8901234004-b"} {
		_, err := s.AddAlias(ctx, colaID, domain.AliasCreateRequest{
			Barcode: barcode, UOM: "pkt", MRP: dec("45"), Price: dec("42"), Factor: 1, PackQty: 1,
		})
		if err != nil {
			t.Fatalf("add alias %d failed: %v", i, err)
		}
	}
	_, err := s.AddAlias(ctx, colaID, domain.AliasCreateRequest{
		Barcode: "8901234004-c", UOM: "pkt", MRP: dec("48"), Price: dec("44"), Factor: 1, PackQty: 1,
	})
	if err != nil {
		t.Fatalf("add alias failed: %v", err)
	}

	variants, err := s.ListMRPVariants(ctx, colaID, "pkt")
	if err != nil {
		t.Fatalf("list mrp variants failed: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected two distinct (mrp, price) tiers, got %d", len(variants))
	}
}

func TestUOMAliasesMapShortForms(t *testing.T) {
	s := NewSeeded()

	aliases, err := s.UOMAliases(context.Background())
	if err != nil {
		t.Fatalf("uom aliases failed: %v", err)
	}
	if aliases["kg"] != "kilogram" {
		t.Fatalf("expected kg to map to kilogram, got %q", aliases["kg"])
	}
	if aliases["g"] != "gram" {
		t.Fatalf("expected g to map to gram, got %q", aliases["g"])
	}
}

func TestSalesRoundTrip(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := domain.Sale{
		Timestamp:     time.Now().UTC(),
		Total:         dec("83"),
		PaymentMethod: "cash",
	}
	items := []domain.SaleItem{
		{ProductID: 1, Name: "Amul Butter 100g", Barcode: "8901234001", Quantity: 1, Price: dec("55"), UOM: "pcs", MRP: dec("60")},
	}

	created, err := s.CreateSale(ctx, sale, items)
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected sale id to be assigned")
	}

	stored, err := s.GetSaleItems(ctx, created.ID)
	if err != nil || len(stored) != 1 {
		t.Fatalf("expected one stored item, got %d (%v)", len(stored), err)
	}
	if !stored[0].Price.Equal(dec("55")) {
		t.Fatalf("unexpected stored price %s", stored[0].Price)
	}

	sales, err := s.ListSales(ctx, time.Now().UTC().Format("2006-01-02"), "")
	if err != nil || len(sales) != 1 {
		t.Fatalf("expected one sale for today, got %d (%v)", len(sales), err)
	}
}

func TestPurchasesRoundTrip(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	saltID := productIDByBarcode(t, s, "8901234002")
	now := time.Now().UTC()

	first, err := s.CreatePurchase(ctx, domain.Purchase{
		Timestamp: now.AddDate(0, 0, -7), SupplierName: "Metro Traders", InvoiceNo: "INV-41", Total: dec("100"),
	}, []domain.PurchaseItem{
		{ProductID: saltID, Name: "Tata Salt 1kg", Barcode: "8901234002", Quantity: 5, Rate: dec("20"), UOM: "pcs", MRP: dec("28")},
	})
	if err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
	second, err := s.CreatePurchase(ctx, domain.Purchase{
		Timestamp: now, SupplierName: "Metro Traders", InvoiceNo: "INV-42", Total: dec("110"),
	}, []domain.PurchaseItem{
		{ProductID: saltID, Name: "Tata Salt 1kg", Barcode: "8901234002", Quantity: 5, Rate: dec("22"), UOM: "pcs", MRP: dec("28")},
	})
	if err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
	if first.ID == 0 || second.ID == first.ID {
		t.Fatalf("expected distinct purchase ids, got %d and %d", first.ID, second.ID)
	}

	purchases, err := s.ListPurchases(ctx)
	if err != nil || len(purchases) != 2 {
		t.Fatalf("expected two purchases, got %d (%v)", len(purchases), err)
	}
	if purchases[0].InvoiceNo != "INV-42" {
		t.Fatalf("expected newest invoice first, got %q", purchases[0].InvoiceNo)
	}

	items, err := s.GetPurchaseItems(ctx, first.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one stored item, got %d (%v)", len(items), err)
	}
	if _, err := s.GetPurchaseItems(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown purchase, got %v", err)
	}

	register, err := s.ItemPurchaseRegister(ctx, saltID)
	if err != nil || len(register) != 2 {
		t.Fatalf("expected two register entries, got %d (%v)", len(register), err)
	}
	// Newest booking first.
	if !register[0].Rate.Equal(dec("22")) {
		t.Fatalf("expected latest rate on top, got %s", register[0].Rate)
	}
	if _, err := s.ItemPurchaseRegister(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}

	// Both invoices carry salt; each shows up once.
	found, err := s.SearchPurchasesByItem(ctx, "SALT")
	if err != nil || len(found) != 2 {
		t.Fatalf("expected both salt invoices, got %d (%v)", len(found), err)
	}

	suppliers, err := s.ListSuppliers(ctx)
	if err != nil {
		t.Fatalf("list suppliers failed: %v", err)
	}
	if len(suppliers) != 1 || suppliers[0] != "Metro Traders" {
		t.Fatalf("expected deduplicated supplier list, got %v", suppliers)
	}
}

func TestHeldSaleLifecycle(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	held, err := s.HoldSale(ctx, domain.HeldSale{
		HeldAt: time.Now().UTC(), Total: dec("24"), Username: "cashier1",
	}, []domain.SaleItem{
		{ProductID: 3, Name: "Maggi Noodles 70g", Barcode: "8901234003", Quantity: 2, Price: dec("12"), UOM: "pcs", MRP: dec("14")},
	})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}

	items, err := s.GetHeldSaleItems(ctx, held.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one held item, got %d (%v)", len(items), err)
	}

	if err := s.DeleteHeldSale(ctx, held.ID); err != nil {
		t.Fatalf("delete held failed: %v", err)
	}
	if _, err := s.GetHeldSaleItems(ctx, held.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected held sale to be gone, got %v", err)
	}
}
