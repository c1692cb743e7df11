package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode"`
	Category  string          `json:"category"`
	BaseUOM   string          `json:"base_uom"`
	Price     decimal.Decimal `json:"price"`
	MRP       decimal.Decimal `json:"mrp"`
	Deleted   bool            `json:"deleted,omitempty"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

type ProductCreateRequest struct {
	Name     string          `json:"name"`
	Barcode  string          `json:"barcode"`
	Category string          `json:"category"`
	BaseUOM  string          `json:"base_uom"`
	Price    decimal.Decimal `json:"price"`
	MRP      decimal.Decimal `json:"mrp"`
}

type ProductUpdateRequest struct {
	Name     *string          `json:"name,omitempty"`
	Barcode  *string          `json:"barcode,omitempty"`
	Category *string          `json:"category,omitempty"`
	BaseUOM  *string          `json:"base_uom,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	MRP      *decimal.Decimal `json:"mrp,omitempty"`
}

// Alias is an alternate pack size or unit of an existing product,
// e.g. a "case of 24" with its own barcode and printed MRP.
type Alias struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Barcode   string          `json:"barcode"`
	UOM       string          `json:"uom"`
	MRP       decimal.Decimal `json:"mrp"`
	Price     decimal.Decimal `json:"price"`
	Factor    float64         `json:"factor"`
	PackQty   float64         `json:"pack_qty"`
}

type AliasCreateRequest struct {
	Barcode string          `json:"barcode"`
	UOM     string          `json:"uom"`
	MRP     decimal.Decimal `json:"mrp"`
	Price   decimal.Decimal `json:"price"`
	Factor  float64         `json:"factor"`
	PackQty float64         `json:"pack_qty"`
}

// Variant is the normalized resolution result: a product sold either in its
// base form or through one of its packaging aliases. Exactly one Variant
// exists per distinct barcode.
type Variant struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode"`
	Category  string          `json:"category"`
	UOM       string          `json:"uom"`
	MRP       decimal.Decimal `json:"mrp"`
	Price     decimal.Decimal `json:"price"`
	Factor    float64         `json:"factor"`
	PackQty   float64         `json:"pack_qty"`
	BasePrice decimal.Decimal `json:"base_price"`
	BaseMRP   decimal.Decimal `json:"base_mrp"`
	IsAlias   bool            `json:"is_alias"`
}

// ScoredVariant carries a trigram similarity score alongside a fuzzy-matched
// variant, so the resolver can compare candidates across tiers.
type ScoredVariant struct {
	Variant    Variant `json:"variant"`
	Similarity float64 `json:"similarity"`
}

// CatalogHit is one ranked row of a general catalog search.
type CatalogHit struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	Barcode    string          `json:"barcode"`
	Category   string          `json:"category"`
	UOM        string          `json:"uom"`
	MRP        decimal.Decimal `json:"mrp"`
	Price      decimal.Decimal `json:"price"`
	Similarity float64         `json:"similarity"`
}

// UnitEntry is one row of a product's unit table: the base UOM (factor 1.0)
// or an alias UOM with its own pricing.
type UnitEntry struct {
	UOM       string          `json:"uom"`
	Price     decimal.Decimal `json:"price"`
	MRP       decimal.Decimal `json:"mrp"`
	Factor    float64         `json:"factor"`
	BasePrice decimal.Decimal `json:"base_price"`
	BaseMRP   decimal.Decimal `json:"base_mrp"`
}

// MRPVariant is one (mrp, price) tier for a product+UOM pair; the same SKU
// can sit on the shelf in batches with different printed MRPs.
type MRPVariant struct {
	MRP   decimal.Decimal `json:"mrp"`
	Price decimal.Decimal `json:"price"`
}

type UOM struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

type Scheme struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	ValidFrom time.Time    `json:"valid_from"`
	ValidTo   *time.Time   `json:"valid_to,omitempty"`
	Active    bool         `json:"active"`
	Rules     []SchemeRule `json:"rules,omitempty"`
}

type SchemeRule struct {
	ID           int64            `json:"id"`
	SchemeID     int64            `json:"scheme_id"`
	SchemeName   string           `json:"scheme_name,omitempty"`
	ProductID    int64            `json:"product_id"`
	MinQty       float64          `json:"min_qty"`
	MaxQty       *float64         `json:"max_qty,omitempty"`
	TargetUOM    string           `json:"target_uom,omitempty"`
	TargetMRP    *decimal.Decimal `json:"target_mrp,omitempty"`
	BenefitType  string           `json:"benefit_type"`
	BenefitValue decimal.Decimal  `json:"benefit_value"`
}

type SchemeUpsertRequest struct {
	Name      string            `json:"name"`
	ValidFrom string            `json:"valid_from"`
	ValidTo   string            `json:"valid_to,omitempty"`
	Rules     []SchemeRuleInput `json:"rules"`
}

type SchemeRuleInput struct {
	ProductID    int64            `json:"product_id"`
	MinQty       float64          `json:"min_qty"`
	MaxQty       *float64         `json:"max_qty,omitempty"`
	TargetUOM    string           `json:"target_uom,omitempty"`
	TargetMRP    *decimal.Decimal `json:"target_mrp,omitempty"`
	BenefitType  string           `json:"benefit_type"`
	BenefitValue decimal.Decimal  `json:"benefit_value"`
}

// LineItem is the engine's output: one fully priced bill row. It is created
// fresh per pricing call and never mutated afterwards.
type LineItem struct {
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Barcode     string          `json:"barcode"`
	UOM         string          `json:"uom"`
	Quantity    float64         `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	MRP         decimal.Decimal `json:"mrp"`
	Gross       decimal.Decimal `json:"gross"`
	Discount    decimal.Decimal `json:"discount"`
	LineAmount  decimal.Decimal `json:"line_amount"`
	SchemeName  string          `json:"scheme_name,omitempty"`
	BenefitType string          `json:"benefit_type,omitempty"`
}

// PriceLineRequest is the engine's single inbound operation. Either Token or
// Variant must be set; a non-nil Variant skips identity resolution.
type PriceLineRequest struct {
	Token    string          `json:"token"`
	Variant  *Variant        `json:"-"`
	Quantity float64         `json:"quantity"`
	UOM      string          `json:"uom"`
	MRP      decimal.Decimal `json:"mrp"`
}

// UnmarshalJSON applies the bill-grid tolerance for malformed numeric cells
// while still rejecting unknown fields.
func (p *PriceLineRequest) UnmarshalJSON(data []byte) error {
	var aux struct {
		Token    string          `json:"token"`
		Quantity json.RawMessage `json:"quantity"`
		UOM      string          `json:"uom"`
		MRP      json.RawMessage `json:"mrp"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	p.Token = aux.Token
	p.UOM = aux.UOM
	p.Quantity = lenientFloat(aux.Quantity)
	p.MRP = lenientDecimal(aux.MRP)
	return nil
}

type SaleLineInput struct {
	Barcode  string          `json:"barcode"`
	Quantity float64         `json:"quantity"`
	UOM      string          `json:"uom"`
	MRP      decimal.Decimal `json:"mrp"`
}

// UnmarshalJSON tolerates malformed quantity/mrp cells: a bill line typed
// badly degrades to a zero-amount row instead of aborting the whole bill.
// Numbers may arrive as JSON numbers or as strings.
func (l *SaleLineInput) UnmarshalJSON(data []byte) error {
	var aux struct {
		Barcode  string          `json:"barcode"`
		Quantity json.RawMessage `json:"quantity"`
		UOM      string          `json:"uom"`
		MRP      json.RawMessage `json:"mrp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.Barcode = aux.Barcode
	l.UOM = aux.UOM
	l.Quantity = lenientFloat(aux.Quantity)
	l.MRP = lenientDecimal(aux.MRP)
	return nil
}

func lenientFloat(raw json.RawMessage) float64 {
	s := rawNumericString(raw)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func lenientDecimal(raw json.RawMessage) decimal.Decimal {
	s := rawNumericString(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func rawNumericString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			return ""
		}
		return strings.TrimSpace(unquoted)
	}
	return s
}

type CheckoutRequest struct {
	SaleID         int64           `json:"sale_id,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	CustomerMobile string          `json:"customer_mobile,omitempty"`
	Lines          []SaleLineInput `json:"lines"`
}

type CheckoutResponse struct {
	SaleID        int64           `json:"sale_id"`
	PaymentMethod string          `json:"payment_method"`
	Items         []LineItem      `json:"items"`
	TotalQty      float64         `json:"total_qty"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     string          `json:"created_at"`
}

type Sale struct {
	ID             int64           `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	CustomerName   string          `json:"customer_name,omitempty"`
	CustomerMobile string          `json:"customer_mobile,omitempty"`
}

type SaleItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode"`
	Quantity  float64         `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	UOM       string          `json:"uom"`
	MRP       decimal.Decimal `json:"mrp"`
}

type HeldSale struct {
	ID       int64           `json:"id"`
	HeldAt   time.Time       `json:"held_at"`
	Total    decimal.Decimal `json:"total"`
	Username string          `json:"username"`
	Items    []SaleItem      `json:"items,omitempty"`
}

type HoldBillRequest struct {
	Lines []SaleLineInput `json:"lines"`
}

type RecallResponse struct {
	HeldID int64           `json:"held_id"`
	Items  []LineItem      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// Purchase is one supplier invoice booked through the purchase entry grid.
type Purchase struct {
	ID           int64           `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	SupplierName string          `json:"supplier_name"`
	InvoiceNo    string          `json:"invoice_no"`
	Total        decimal.Decimal `json:"total"`
}

type PurchaseItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode"`
	Quantity  float64         `json:"quantity"`
	Rate      decimal.Decimal `json:"rate"`
	UOM       string          `json:"uom"`
	MRP       decimal.Decimal `json:"mrp"`
}

type PurchaseLineInput struct {
	Barcode  string          `json:"barcode"`
	Quantity float64         `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
	UOM      string          `json:"uom"`
	MRP      decimal.Decimal `json:"mrp"`
}

// UnmarshalJSON mirrors the sale-line tolerance: a badly typed quantity, rate,
// or mrp cell degrades to zero instead of rejecting the whole invoice.
func (l *PurchaseLineInput) UnmarshalJSON(data []byte) error {
	var aux struct {
		Barcode  string          `json:"barcode"`
		Quantity json.RawMessage `json:"quantity"`
		Rate     json.RawMessage `json:"rate"`
		UOM      string          `json:"uom"`
		MRP      json.RawMessage `json:"mrp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.Barcode = aux.Barcode
	l.UOM = aux.UOM
	l.Quantity = lenientFloat(aux.Quantity)
	l.Rate = lenientDecimal(aux.Rate)
	l.MRP = lenientDecimal(aux.MRP)
	return nil
}

type PurchaseCreateRequest struct {
	SupplierName string              `json:"supplier_name"`
	InvoiceNo    string              `json:"invoice_no"`
	Lines        []PurchaseLineInput `json:"lines"`
}

// PurchaseRegisterEntry is one row of a product's purchase register: when and
// from whom the item was last bought, and at what rate.
type PurchaseRegisterEntry struct {
	Timestamp    time.Time       `json:"timestamp"`
	SupplierName string          `json:"supplier_name"`
	InvoiceNo    string          `json:"invoice_no"`
	Quantity     float64         `json:"quantity"`
	Rate         decimal.Decimal `json:"rate"`
	UOM          string          `json:"uom"`
	MRP          decimal.Decimal `json:"mrp"`
}

type Customer struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

type CustomerCreateRequest struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	BenefitPercent      = "percent"
	BenefitAmount       = "amount"
	BenefitAbsoluteRate = "absolute_rate"
)

// SoftDeleteRetention is how long a soft-deleted product is kept before a
// purge may remove it physically.
const SoftDeleteRetention = 30 * 24 * time.Hour
