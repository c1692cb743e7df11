package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"kiranapos/backend/internal/cache"
	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/pricing"
	"kiranapos/backend/internal/store"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "service").Logger()

// ErrAdminRequired is returned by management operations when the acting user
// lacks the admin role.
var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	engine      *pricing.Engine
	searchCache cache.SearchCache
	searchTTL   time.Duration
}

func New(repo store.Repository, searchCache cache.SearchCache, searchTTL time.Duration) *Service {
	if searchCache == nil {
		searchCache = cache.NoopSearchCache{}
	}
	if searchTTL <= 0 {
		searchTTL = 30 * time.Second
	}

	return &Service{
		repo:        repo,
		engine:      pricing.NewEngine(repo),
		searchCache: searchCache,
		searchTTL:   searchTTL,
	}
}

func (s *Service) requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrAdminRequired
	}
	return nil
}

// NormalizeUOM maps a short unit alias like "kg" to its canonical registry
// name. Unknown units pass through trimmed; the engine treats them as a
// fallback case, not an error.
func (s *Service) NormalizeUOM(ctx context.Context, uom string) string {
	uom = strings.TrimSpace(uom)
	if uom == "" {
		return ""
	}
	aliases, err := s.repo.UOMAliases(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("uom alias lookup failed, using unit as-is")
		return uom
	}
	if canonical, ok := aliases[strings.ToLower(uom)]; ok {
		return canonical
	}
	return uom
}

// --- Catalog reads ---

func (s *Service) Resolve(ctx context.Context, token string) (*domain.Variant, error) {
	return s.engine.Resolver().Resolve(ctx, token)
}

func (s *Service) SearchCatalog(ctx context.Context, query string) ([]domain.CatalogHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	key := "catalog:search:" + strings.ToLower(query)
	if hits, found, err := s.searchCache.Get(ctx, key); err != nil {
		logger.Warn().Err(err).Str("query", query).Msg("search cache get failed")
	} else if found {
		return hits, nil
	}

	hits, err := s.engine.Resolver().Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.searchCache.Set(ctx, key, hits, s.searchTTL); err != nil {
		logger.Warn().Err(err).Str("query", query).Msg("search cache set failed")
	}
	return hits, nil
}

func (s *Service) Units(ctx context.Context, productID int64) ([]domain.UnitEntry, error) {
	return s.engine.UnitTable().UnitsFor(ctx, productID)
}

func (s *Service) MRPVariants(ctx context.Context, productID int64, uom string) ([]domain.MRPVariant, error) {
	return s.engine.UnitTable().MRPVariants(ctx, productID, s.NormalizeUOM(ctx, uom))
}

// PriceLine prices a single prospective bill row without persisting anything.
func (s *Service) PriceLine(ctx context.Context, req domain.PriceLineRequest) (domain.LineItem, error) {
	req.UOM = s.NormalizeUOM(ctx, req.UOM)
	return s.engine.PriceLine(ctx, req)
}

// --- Product management ---

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	req.BaseUOM = s.NormalizeUOM(ctx, req.BaseUOM)
	created, err := s.repo.CreateProduct(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Info().Int64("product_id", created.ID).Str("barcode", created.Barcode).Msg("product created")
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if req.BaseUOM != nil {
		normalized := s.NormalizeUOM(ctx, *req.BaseUOM)
		req.BaseUOM = &normalized
	}
	return s.repo.UpdateProduct(ctx, id, req)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteProduct(ctx, id, time.Now().UTC()); err != nil {
		return err
	}
	logger.Info().Int64("product_id", id).Msg("product soft-deleted")
	return nil
}

func (s *Service) RestoreProduct(ctx context.Context, id int64) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.RestoreProduct(ctx, id)
}

func (s *Service) ListDeletedProducts(ctx context.Context) ([]domain.Product, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListDeletedProducts(ctx)
}

// PurgeDeletedProducts permanently removes products soft-deleted longer ago
// than the retention window.
func (s *Service) PurgeDeletedProducts(ctx context.Context) (int64, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-domain.SoftDeleteRetention)
	purged, err := s.repo.PurgeDeletedProducts(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		logger.Info().Int64("purged", purged).Msg("purged soft-deleted products")
	}
	return purged, nil
}

// --- Aliases ---

func (s *Service) AddAlias(ctx context.Context, productID int64, req domain.AliasCreateRequest) (*domain.Alias, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	req.UOM = s.NormalizeUOM(ctx, req.UOM)
	return s.repo.AddAlias(ctx, productID, req)
}

func (s *Service) ListAliases(ctx context.Context, productID int64) ([]domain.Alias, error) {
	return s.repo.ListAliases(ctx, productID)
}

func (s *Service) DeleteAlias(ctx context.Context, aliasID int64) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteAlias(ctx, aliasID)
}

// --- UOM registry ---

func (s *Service) AddUOM(ctx context.Context, name string, alias string) (*domain.UOM, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.AddUOM(ctx, name, alias)
}

func (s *Service) ListUOMs(ctx context.Context) ([]domain.UOM, error) {
	return s.repo.ListUOMs(ctx)
}

func (s *Service) DeleteUOM(ctx context.Context, name string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteUOM(ctx, name)
}

// --- Schemes ---

func (s *Service) CreateScheme(ctx context.Context, req domain.SchemeUpsertRequest) (*domain.Scheme, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	scheme, err := s.schemeFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	scheme.Active = true
	return s.repo.CreateScheme(ctx, *scheme)
}

func (s *Service) UpdateScheme(ctx context.Context, schemeID int64, req domain.SchemeUpsertRequest) (*domain.Scheme, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	scheme, err := s.schemeFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	scheme.ID = schemeID
	return s.repo.UpdateScheme(ctx, *scheme)
}

func (s *Service) schemeFromRequest(ctx context.Context, req domain.SchemeUpsertRequest) (*domain.Scheme, error) {
	if strings.TrimSpace(req.Name) == "" || len(req.Rules) == 0 {
		return nil, store.ErrInvalidInput
	}

	validFrom, err := time.Parse("2006-01-02", req.ValidFrom)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	scheme := domain.Scheme{
		Name:      strings.TrimSpace(req.Name),
		ValidFrom: validFrom,
	}
	if req.ValidTo != "" {
		validTo, err := time.Parse("2006-01-02", req.ValidTo)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		scheme.ValidTo = &validTo
	}

	for _, in := range req.Rules {
		if in.ProductID < 1 || in.MinQty < 0 {
			return nil, store.ErrInvalidInput
		}
		scheme.Rules = append(scheme.Rules, domain.SchemeRule{
			ProductID:    in.ProductID,
			MinQty:       in.MinQty,
			MaxQty:       in.MaxQty,
			TargetUOM:    s.NormalizeUOM(ctx, in.TargetUOM),
			TargetMRP:    in.TargetMRP,
			BenefitType:  in.BenefitType,
			BenefitValue: in.BenefitValue,
		})
	}
	return &scheme, nil
}

func (s *Service) DeleteScheme(ctx context.Context, schemeID int64) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteScheme(ctx, schemeID)
}

func (s *Service) ListSchemes(ctx context.Context) ([]domain.Scheme, error) {
	return s.repo.ListSchemes(ctx)
}

func (s *Service) SetSchemeActive(ctx context.Context, schemeID int64, active bool) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.SetSchemeActive(ctx, schemeID, active)
}

// --- Checkout and sales ---

// priceLines runs every sale line with a positive quantity through the
// engine. Zero and negative quantities are dropped, matching how the bill
// grid treats cleared rows.
func (s *Service) priceLines(ctx context.Context, lines []domain.SaleLineInput) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		item, err := s.engine.PriceLine(ctx, domain.PriceLineRequest{
			Token:    line.Barcode,
			Quantity: line.Quantity,
			UOM:      s.NormalizeUOM(ctx, line.UOM),
			MRP:      line.MRP,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func billTotals(items []domain.LineItem) (float64, decimal.Decimal) {
	totalQty := 0.0
	total := decimal.Zero
	for _, item := range items {
		totalQty += item.Quantity
		total = total.Add(item.LineAmount)
	}
	// Bill totals settle to whole currency units at the counter.
	return totalQty, total.Round(0)
}

func saleItemsFromLines(items []domain.LineItem) []domain.SaleItem {
	saleItems := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		saleItems = append(saleItems, domain.SaleItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Barcode:   item.Barcode,
			Quantity:  item.Quantity,
			Price:     item.Rate,
			UOM:       item.UOM,
			MRP:       item.MRP,
		})
	}
	return saleItems
}

// Checkout prices the submitted lines, persists the sale, and returns the
// rounded bill. A non-zero SaleID reprices and replaces an existing sale.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	items, err := s.priceLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	totalQty, total := billTotals(items)

	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = "cash"
	}

	var customerID *int64
	if mobile := strings.TrimSpace(req.CustomerMobile); mobile != "" {
		customer, err := s.repo.FindCustomerByMobile(ctx, mobile)
		switch {
		case err == nil:
			customerID = &customer.ID
		case errors.Is(err, store.ErrNotFound):
			// anonymous sale
		default:
			return nil, err
		}
	}

	sale := domain.Sale{
		ID:            req.SaleID,
		Timestamp:     time.Now().UTC(),
		Total:         total,
		PaymentMethod: paymentMethod,
		CustomerID:    customerID,
	}
	saleItems := saleItemsFromLines(items)

	if req.SaleID > 0 {
		if err := s.repo.UpdateSale(ctx, sale, saleItems); err != nil {
			return nil, err
		}
	} else {
		created, err := s.repo.CreateSale(ctx, sale, saleItems)
		if err != nil {
			return nil, err
		}
		sale = *created
	}

	logger.Info().Int64("sale_id", sale.ID).Str("total", total.String()).Int("lines", len(items)).Msg("sale recorded")
	return &domain.CheckoutResponse{
		SaleID:        sale.ID,
		PaymentMethod: sale.PaymentMethod,
		Items:         items,
		TotalQty:      totalQty,
		Total:         total,
		CreatedAt:     sale.Timestamp.Format(time.RFC3339),
	}, nil
}

func (s *Service) ListSales(ctx context.Context, date string, query string) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, date, query)
}

func (s *Service) SaleItems(ctx context.Context, saleID int64) ([]domain.SaleItem, error) {
	return s.repo.GetSaleItems(ctx, saleID)
}

// --- Held bills ---

func (s *Service) HoldBill(ctx context.Context, req domain.HoldBillRequest) (*domain.HeldSale, error) {
	items, err := s.priceLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	_, total := billTotals(items)

	username := ""
	if actor, ok := ActorFromContext(ctx); ok {
		username = actor.Username
	}

	return s.repo.HoldSale(ctx, domain.HeldSale{
		HeldAt:   time.Now().UTC(),
		Total:    total,
		Username: username,
	}, saleItemsFromLines(items))
}

func (s *Service) ListHeldBills(ctx context.Context) ([]domain.HeldSale, error) {
	return s.repo.ListHeldSales(ctx)
}

// RecallHeldBill reprices a parked bill against the current catalog and
// removes the hold. Prices and schemes may have changed since the bill was
// parked, so the stored amounts are advisory only.
func (s *Service) RecallHeldBill(ctx context.Context, heldID int64) (*domain.RecallResponse, error) {
	stored, err := s.repo.GetHeldSaleItems(ctx, heldID)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.SaleLineInput, 0, len(stored))
	for _, item := range stored {
		lines = append(lines, domain.SaleLineInput{
			Barcode:  item.Barcode,
			Quantity: item.Quantity,
			UOM:      item.UOM,
			MRP:      item.MRP,
		})
	}
	items, err := s.priceLines(ctx, lines)
	if err != nil {
		return nil, err
	}
	_, total := billTotals(items)

	if err := s.repo.DeleteHeldSale(ctx, heldID); err != nil {
		return nil, err
	}
	return &domain.RecallResponse{HeldID: heldID, Items: items, Total: total}, nil
}

// --- Purchases ---

// RecordPurchase books a supplier invoice. Item tokens go through the same
// tiered lookup the bill grid uses, so a barcode, an exact name, or a close
// typo all land on the right product. Rows with a non-positive quantity are
// skipped.
func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseCreateRequest) (*domain.Purchase, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}

	items := make([]domain.PurchaseItem, 0, len(req.Lines))
	total := decimal.Zero
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			continue
		}
		variant, err := s.engine.Resolver().Resolve(ctx, line.Barcode)
		if err != nil {
			return nil, err
		}
		uom := s.NormalizeUOM(ctx, line.UOM)
		if uom == "" {
			uom = variant.UOM
		}
		mrp := line.MRP
		if mrp.IsZero() {
			mrp = variant.MRP
		}
		total = total.Add(line.Rate.Mul(decimal.NewFromFloat(line.Quantity)))
		items = append(items, domain.PurchaseItem{
			ProductID: variant.ProductID,
			Name:      variant.Name,
			Barcode:   variant.Barcode,
			Quantity:  line.Quantity,
			Rate:      line.Rate,
			UOM:       uom,
			MRP:       mrp,
		})
	}
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		Timestamp:    time.Now().UTC(),
		SupplierName: strings.TrimSpace(req.SupplierName),
		InvoiceNo:    strings.TrimSpace(req.InvoiceNo),
		Total:        total.Round(2),
	}, items)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int64("purchase_id", created.ID).
		Str("supplier", created.SupplierName).
		Str("total", created.Total.String()).
		Int("lines", len(items)).
		Msg("purchase recorded")
	return created, nil
}

func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx)
}

func (s *Service) PurchaseItems(ctx context.Context, purchaseID int64) ([]domain.PurchaseItem, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetPurchaseItems(ctx, purchaseID)
}

// ItemPurchaseRegister resolves a token to a product and returns its purchase
// history, newest first.
func (s *Service) ItemPurchaseRegister(ctx context.Context, token string) ([]domain.PurchaseRegisterEntry, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	variant, err := s.engine.Resolver().Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.repo.ItemPurchaseRegister(ctx, variant.ProductID)
}

func (s *Service) SearchPurchasesByItem(ctx context.Context, query string) ([]domain.Purchase, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.repo.SearchPurchasesByItem(ctx, query)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]string, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx)
}

// --- Customers ---

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	return s.repo.CreateCustomer(ctx, req)
}

func (s *Service) FindCustomerByMobile(ctx context.Context, mobile string) (*domain.Customer, error) {
	return s.repo.FindCustomerByMobile(ctx, strings.TrimSpace(mobile))
}

// --- Users ---

func (s *Service) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (*domain.CashierUser, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(req.Password) < 6 {
		return nil, store.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      "cashier",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	logger.Info().Str("username", username).Msg("cashier created")
	return &domain.CashierUser{
		Username:  user.Username,
		Role:      user.Role,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (s *Service) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	cashiers := make([]domain.CashierUser, 0, len(users))
	for _, u := range users {
		cashiers = append(cashiers, domain.CashierUser{
			Username:  u.Username,
			Role:      u.Role,
			Active:    u.Active,
			CreatedAt: u.CreatedAt,
		})
	}
	return cashiers, nil
}

// ChangePassword lets a user rotate their own credential; admins may rotate
// anyone's.
func (s *Service) ChangePassword(ctx context.Context, username string, newPassword string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrAdminRequired
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if actor.Role != "admin" && actor.Username != username {
		return ErrAdminRequired
	}
	if len(newPassword) < 6 {
		return store.ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdateUserPassword(ctx, username, string(hash))
}
