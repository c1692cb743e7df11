package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kiranapos/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("duplicate")
)

// Catalog is the read contract the pricing engine consumes. Implementations
// must exclude soft-deleted products from every lookup.
type Catalog interface {
	// FindVariantByBarcode checks product barcodes first, then alias
	// barcodes, and returns the matching variant.
	FindVariantByBarcode(ctx context.Context, barcode string) (*domain.Variant, error)
	// FindProductByExactName matches a product name case-insensitively.
	FindProductByExactName(ctx context.Context, name string) (*domain.Variant, error)
	// FindProductByNameFragment matches a case-insensitive substring of the
	// product name; among several matches the lexicographically first name wins.
	FindProductByNameFragment(ctx context.Context, fragment string) (*domain.Variant, error)
	// FuzzyMatchProduct returns the best product whose name or barcode has a
	// trigram similarity to token above threshold.
	FuzzyMatchProduct(ctx context.Context, token string, threshold float64) (*domain.ScoredVariant, error)
	// FuzzyMatchAlias returns the best alias whose barcode has a trigram
	// similarity to token above threshold.
	FuzzyMatchAlias(ctx context.Context, token string, threshold float64) (*domain.ScoredVariant, error)
	// SearchCatalog ranks products and aliases against query by
	// max(name similarity, barcode similarity) descending, then name.
	SearchCatalog(ctx context.Context, query string, threshold float64, limit int) ([]domain.CatalogHit, error)

	// ListUnits returns the base UOM row plus one row per alias.
	ListUnits(ctx context.Context, productID int64) ([]domain.UnitEntry, error)
	// FindUnit resolves an exact UOM for a product (base or alias).
	FindUnit(ctx context.Context, productID int64, uom string) (*domain.UnitEntry, error)
	// ListMRPVariants returns deduplicated (mrp, price) tiers for a product+UOM.
	ListMRPVariants(ctx context.Context, productID int64, uom string) ([]domain.MRPVariant, error)
	// UOMAliases maps lowercase short aliases to canonical UOM names.
	UOMAliases(ctx context.Context) (map[string]string, error)

	// FindBestSchemeRule applies the scheme filter and tie-break: active
	// scheme, today within validity, qty within [min_qty, max_qty], UOM and
	// MRP targets either absent or equal; highest min_qty wins, then highest
	// benefit_value.
	FindBestSchemeRule(ctx context.Context, productID int64, qty float64, uom string, mrp decimal.Decimal, today time.Time) (*domain.SchemeRule, error)
}

// Repository is the full persistence surface: the engine's read contract plus
// the management writes of the host application.
type Repository interface {
	Catalog

	CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SoftDeleteProduct(ctx context.Context, id int64, at time.Time) error
	RestoreProduct(ctx context.Context, id int64) error
	ListDeletedProducts(ctx context.Context) ([]domain.Product, error)
	PurgeDeletedProducts(ctx context.Context, olderThan time.Time) (int64, error)

	AddAlias(ctx context.Context, productID int64, req domain.AliasCreateRequest) (*domain.Alias, error)
	ListAliases(ctx context.Context, productID int64) ([]domain.Alias, error)
	DeleteAlias(ctx context.Context, aliasID int64) error

	AddUOM(ctx context.Context, name string, alias string) (*domain.UOM, error)
	ListUOMs(ctx context.Context) ([]domain.UOM, error)
	DeleteUOM(ctx context.Context, name string) error

	CreateScheme(ctx context.Context, scheme domain.Scheme) (*domain.Scheme, error)
	UpdateScheme(ctx context.Context, scheme domain.Scheme) (*domain.Scheme, error)
	DeleteScheme(ctx context.Context, schemeID int64) error
	ListSchemes(ctx context.Context) ([]domain.Scheme, error)
	ListSchemeRules(ctx context.Context, schemeID int64) ([]domain.SchemeRule, error)
	SetSchemeActive(ctx context.Context, schemeID int64, active bool) error

	CreateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) error
	ListSales(ctx context.Context, date string, query string) ([]domain.Sale, error)
	GetSaleItems(ctx context.Context, saleID int64) ([]domain.SaleItem, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase, items []domain.PurchaseItem) (*domain.Purchase, error)
	ListPurchases(ctx context.Context) ([]domain.Purchase, error)
	GetPurchaseItems(ctx context.Context, purchaseID int64) ([]domain.PurchaseItem, error)
	// ItemPurchaseRegister lists every booked purchase line of one product,
	// newest first.
	ItemPurchaseRegister(ctx context.Context, productID int64) ([]domain.PurchaseRegisterEntry, error)
	// SearchPurchasesByItem finds invoices containing an item whose name or
	// barcode matches the query substring, case-insensitively.
	SearchPurchasesByItem(ctx context.Context, query string) ([]domain.Purchase, error)
	ListSuppliers(ctx context.Context) ([]string, error)

	HoldSale(ctx context.Context, held domain.HeldSale, items []domain.SaleItem) (*domain.HeldSale, error)
	ListHeldSales(ctx context.Context) ([]domain.HeldSale, error)
	GetHeldSaleItems(ctx context.Context, heldID int64) ([]domain.SaleItem, error)
	DeleteHeldSale(ctx context.Context, heldID int64) error

	CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error)
	FindCustomerByMobile(ctx context.Context, mobile string) (*domain.Customer, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
