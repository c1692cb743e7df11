package memory

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "memory-store").Logger()

// Store is an in-memory Repository used by tests and by dev mode when no
// DATABASE_URL is configured.
type Store struct {
	mu          sync.RWMutex
	seqProduct  int64
	seqAlias    int64
	seqUOM      int64
	seqScheme   int64
	seqRule     int64
	seqSale     int64
	seqHeld     int64
	seqPurchase int64
	seqCustomer int64

	products      map[int64]domain.Product
	aliases       map[int64]domain.Alias
	uoms          map[int64]domain.UOM
	schemes       map[int64]domain.Scheme
	rules         map[int64]domain.SchemeRule
	sales         map[int64]domain.Sale
	saleItems     map[int64][]domain.SaleItem
	held          map[int64]domain.HeldSale
	heldItems     map[int64][]domain.SaleItem
	purchases     map[int64]domain.Purchase
	purchaseItems map[int64][]domain.PurchaseItem
	customers     map[int64]domain.Customer
	users         map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:      make(map[int64]domain.Product),
		aliases:       make(map[int64]domain.Alias),
		uoms:          make(map[int64]domain.UOM),
		schemes:       make(map[int64]domain.Scheme),
		rules:         make(map[int64]domain.SchemeRule),
		sales:         make(map[int64]domain.Sale),
		saleItems:     make(map[int64][]domain.SaleItem),
		held:          make(map[int64]domain.HeldSale),
		heldItems:     make(map[int64][]domain.SaleItem),
		purchases:     make(map[int64]domain.Purchase),
		purchaseItems: make(map[int64][]domain.PurchaseItem),
		customers:     make(map[int64]domain.Customer),
		users:         make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a small kirana catalog: a few
// packaged goods, a loose-weight rice SKU with a 5 kg pack alias, the common
// UOMs, and one active bulk scheme.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	for _, u := range []struct{ name, alias string }{
		{"gram", "g"},
		{"kilogram", "kg"},
		{"packet", "pkt"},
		{"box", "bx"},
		{"pcs", ""},
	} {
		_, _ = s.AddUOM(ctx, u.name, u.alias)
	}

	seedProducts := []domain.ProductCreateRequest{
		{Name: "Amul Butter 100g", Barcode: "8901234001", Category: "Dairy", BaseUOM: "pcs", Price: dec("55"), MRP: dec("60")},
		{Name: "Tata Salt 1kg", Barcode: "8901234002", Category: "Grocery", BaseUOM: "pcs", Price: dec("25"), MRP: dec("28")},
		{Name: "Maggi Noodles 70g", Barcode: "8901234003", Category: "Snacks", BaseUOM: "pcs", Price: dec("12"), MRP: dec("14")},
		{Name: "Coca Cola 500ml", Barcode: "8901234004", Category: "Beverages", BaseUOM: "pcs", Price: dec("35"), MRP: dec("40")},
		{Name: "Basmati Rice", Barcode: "8901234005", Category: "Grocery", BaseUOM: "kg", Price: dec("110"), MRP: dec("120")},
	}
	ids := make([]int64, 0, len(seedProducts))
	for _, req := range seedProducts {
		p, err := s.CreateProduct(ctx, req)
		if err != nil {
			logger.Fatal().Err(err).Str("barcode", req.Barcode).Msg("seed product failed")
		}
		ids = append(ids, p.ID)
	}

	rice := ids[4]
	_, _ = s.AddAlias(ctx, rice, domain.AliasCreateRequest{
		Barcode: "8901234005-5", UOM: "kg", MRP: dec("580"), Price: dec("540"), Factor: 5.0, PackQty: 5.0,
	})

	validTo := time.Now().UTC().AddDate(0, 0, 30)
	_, _ = s.CreateScheme(ctx, domain.Scheme{
		Name:      "Maggi Bulk Offer",
		ValidFrom: time.Now().UTC().AddDate(0, 0, -1),
		ValidTo:   &validTo,
		Active:    true,
		Rules: []domain.SchemeRule{
			{ProductID: ids[2], MinQty: 5, TargetUOM: "pcs", BenefitType: domain.BenefitPercent, BenefitValue: dec("10")},
		},
	})

	_, _ = s.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Walk-in Customer", Mobile: "0000000000"})
	_, _ = s.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Rahul Sharma", Mobile: "9988776655"})

	s.seedUsers()
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; unset
// variables fall back to dev defaults with a logged warning. Production runs
// use PostgreSQL, never this seed.
func (s *Store) seedUsers() {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cash123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logger.Warn().Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier1", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		s.users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- Catalog: resolution ---

func variantFromProduct(p domain.Product) domain.Variant {
	return domain.Variant{
		ProductID: p.ID,
		Name:      p.Name,
		Barcode:   p.Barcode,
		Category:  p.Category,
		UOM:       p.BaseUOM,
		MRP:       p.MRP,
		Price:     p.Price,
		Factor:    1.0,
		PackQty:   1.0,
		BasePrice: p.Price,
		BaseMRP:   p.MRP,
		IsAlias:   false,
	}
}

func variantFromAlias(a domain.Alias, p domain.Product) domain.Variant {
	return domain.Variant{
		ProductID: p.ID,
		Name:      p.Name,
		Barcode:   a.Barcode,
		Category:  p.Category,
		UOM:       a.UOM,
		MRP:       a.MRP,
		Price:     a.Price,
		Factor:    a.Factor,
		PackQty:   a.PackQty,
		BasePrice: p.Price,
		BaseMRP:   p.MRP,
		IsAlias:   true,
	}
}

func (s *Store) FindVariantByBarcode(_ context.Context, barcode string) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if !p.Deleted && p.Barcode == barcode {
			v := variantFromProduct(p)
			return &v, nil
		}
	}
	for _, a := range s.aliases {
		if a.Barcode != barcode {
			continue
		}
		p, ok := s.products[a.ProductID]
		if !ok || p.Deleted {
			continue
		}
		v := variantFromAlias(a, p)
		return &v, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindProductByExactName(_ context.Context, name string) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if !p.Deleted && strings.EqualFold(p.Name, name) {
			v := variantFromProduct(p)
			return &v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindProductByNameFragment(_ context.Context, fragment string) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(fragment)
	var best *domain.Product
	for id := range s.products {
		p := s.products[id]
		if p.Deleted || !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if best == nil || p.Name < best.Name {
			candidate := p
			best = &candidate
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	v := variantFromProduct(*best)
	return &v, nil
}

func (s *Store) FuzzyMatchProduct(_ context.Context, token string, threshold float64) (*domain.ScoredVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.ScoredVariant
	for _, p := range s.products {
		if p.Deleted {
			continue
		}
		score := similarity(p.Name, token)
		if b := similarity(p.Barcode, token); b > score {
			score = b
		}
		if score <= threshold {
			continue
		}
		if best == nil || score > best.Similarity {
			best = &domain.ScoredVariant{Variant: variantFromProduct(p), Similarity: score}
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) FuzzyMatchAlias(_ context.Context, token string, threshold float64) (*domain.ScoredVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.ScoredVariant
	for _, a := range s.aliases {
		p, ok := s.products[a.ProductID]
		if !ok || p.Deleted {
			continue
		}
		score := similarity(a.Barcode, token)
		if score <= threshold {
			continue
		}
		if best == nil || score > best.Similarity {
			best = &domain.ScoredVariant{Variant: variantFromAlias(a, p), Similarity: score}
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) SearchCatalog(_ context.Context, query string, threshold float64, limit int) ([]domain.CatalogHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	hits := make([]domain.CatalogHit, 0, limit)

	consider := func(hit domain.CatalogHit, name, barcode string) {
		simN := similarity(name, query)
		simB := similarity(barcode, query)
		score := simN
		if simB > score {
			score = simB
		}
		substring := strings.Contains(strings.ToLower(name), needle) ||
			strings.Contains(strings.ToLower(barcode), needle)
		if score <= threshold && !substring {
			return
		}
		hit.Similarity = score
		hits = append(hits, hit)
	}

	for _, p := range s.products {
		if p.Deleted {
			continue
		}
		consider(domain.CatalogHit{
			ProductID: p.ID, Name: p.Name, Barcode: p.Barcode,
			Category: p.Category, UOM: p.BaseUOM, MRP: p.MRP, Price: p.Price,
		}, p.Name, p.Barcode)
	}
	for _, a := range s.aliases {
		p, ok := s.products[a.ProductID]
		if !ok || p.Deleted {
			continue
		}
		consider(domain.CatalogHit{
			ProductID: p.ID, Name: p.Name, Barcode: a.Barcode,
			Category: p.Category, UOM: a.UOM, MRP: a.MRP, Price: a.Price,
		}, p.Name, a.Barcode)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Name < hits[j].Name
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// --- Catalog: units ---

func (s *Store) ListUnits(_ context.Context, productID int64) ([]domain.UnitEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok || p.Deleted {
		return nil, store.ErrNotFound
	}

	entries := []domain.UnitEntry{{
		UOM: p.BaseUOM, Price: p.Price, MRP: p.MRP, Factor: 1.0,
		BasePrice: p.Price, BaseMRP: p.MRP,
	}}
	for _, a := range s.sortedAliasesFor(productID) {
		entries = append(entries, domain.UnitEntry{
			UOM: a.UOM, Price: a.Price, MRP: a.MRP, Factor: a.Factor,
			BasePrice: p.Price, BaseMRP: p.MRP,
		})
	}
	return entries, nil
}

func (s *Store) FindUnit(_ context.Context, productID int64, uom string) (*domain.UnitEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok || p.Deleted {
		return nil, store.ErrNotFound
	}
	if p.BaseUOM == uom {
		return &domain.UnitEntry{
			UOM: p.BaseUOM, Price: p.Price, MRP: p.MRP, Factor: 1.0,
			BasePrice: p.Price, BaseMRP: p.MRP,
		}, nil
	}
	for _, a := range s.sortedAliasesFor(productID) {
		if a.UOM == uom {
			return &domain.UnitEntry{
				UOM: a.UOM, Price: a.Price, MRP: a.MRP, Factor: a.Factor,
				BasePrice: p.Price, BaseMRP: p.MRP,
			}, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListMRPVariants(_ context.Context, productID int64, uom string) ([]domain.MRPVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok || p.Deleted {
		return nil, store.ErrNotFound
	}

	variants := make([]domain.MRPVariant, 0, 4)
	if p.BaseUOM == uom {
		variants = append(variants, domain.MRPVariant{MRP: p.MRP, Price: p.Price})
	}
	for _, a := range s.sortedAliasesFor(productID) {
		if a.UOM == uom {
			variants = append(variants, domain.MRPVariant{MRP: a.MRP, Price: a.Price})
		}
	}

	seen := make(map[string]struct{}, len(variants))
	unique := variants[:0]
	for _, v := range variants {
		key := v.MRP.String() + "|" + v.Price.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, v)
	}
	return unique, nil
}

func (s *Store) UOMAliases(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapping := make(map[string]string, len(s.uoms))
	for _, u := range s.uoms {
		if u.Alias != "" {
			mapping[strings.ToLower(u.Alias)] = u.Name
		}
	}
	return mapping, nil
}

func (s *Store) sortedAliasesFor(productID int64) []domain.Alias {
	aliases := make([]domain.Alias, 0, 4)
	for _, a := range s.aliases {
		if a.ProductID == productID {
			aliases = append(aliases, a)
		}
	}
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].ID < aliases[j].ID })
	return aliases
}

// --- Catalog: schemes ---

func (s *Store) FindBestSchemeRule(_ context.Context, productID int64, qty float64, uom string, mrp decimal.Decimal, today time.Time) (*domain.SchemeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := dateOnly(today)
	candidates := make([]domain.SchemeRule, 0, 4)
	for _, r := range s.rules {
		if r.ProductID != productID {
			continue
		}
		scheme, ok := s.schemes[r.SchemeID]
		if !ok || !scheme.Active {
			continue
		}
		if day.Before(dateOnly(scheme.ValidFrom)) {
			continue
		}
		if scheme.ValidTo != nil && day.After(dateOnly(*scheme.ValidTo)) {
			continue
		}
		if qty < r.MinQty {
			continue
		}
		if r.MaxQty != nil && qty > *r.MaxQty {
			continue
		}
		if uom == "" {
			if r.TargetUOM != "" {
				continue
			}
		} else if r.TargetUOM != "" && r.TargetUOM != uom {
			continue
		}
		if r.TargetMRP != nil && !r.TargetMRP.Equal(mrp) {
			continue
		}
		r.SchemeName = scheme.Name
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil, store.ErrNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MinQty != candidates[j].MinQty {
			return candidates[i].MinQty > candidates[j].MinQty
		}
		return candidates[i].BenefitValue.Cmp(candidates[j].BenefitValue) > 0
	})
	best := candidates[0]
	return &best, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// --- Products ---

func (s *Store) CreateProduct(_ context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.BaseUOM = strings.TrimSpace(req.BaseUOM)
	if req.Name == "" || req.Barcode == "" || req.BaseUOM == "" || !req.Price.IsPositive() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.barcodeTakenLocked(req.Barcode, 0, 0) {
		return nil, store.ErrDuplicate
	}

	s.seqProduct++
	p := domain.Product{
		ID:       s.seqProduct,
		Name:     req.Name,
		Barcode:  req.Barcode,
		Category: strings.TrimSpace(req.Category),
		BaseUOM:  req.BaseUOM,
		Price:    req.Price,
		MRP:      req.MRP,
	}
	s.products[p.ID] = p
	return &p, nil
}

func (s *Store) UpdateProduct(_ context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, store.ErrInvalidInput
		}
		p.Name = name
	}
	if req.Barcode != nil {
		barcode := strings.TrimSpace(*req.Barcode)
		if barcode == "" {
			return nil, store.ErrInvalidInput
		}
		if barcode != p.Barcode && s.barcodeTakenLocked(barcode, id, 0) {
			return nil, store.ErrDuplicate
		}
		p.Barcode = barcode
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.BaseUOM != nil {
		uom := strings.TrimSpace(*req.BaseUOM)
		if uom == "" {
			return nil, store.ErrInvalidInput
		}
		p.BaseUOM = uom
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, store.ErrInvalidInput
		}
		p.Price = *req.Price
	}
	if req.MRP != nil {
		p.MRP = *req.MRP
	}
	s.products[id] = p
	return &p, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Deleted {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) SoftDeleteProduct(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Deleted = true
	p.DeletedAt = &at
	s.products[id] = p
	return nil
}

func (s *Store) RestoreProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Deleted = false
	p.DeletedAt = nil
	s.products[id] = p
	return nil
}

func (s *Store) ListDeletedProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.Deleted {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool {
		ti, tj := products[i].DeletedAt, products[j].DeletedAt
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.After(*tj)
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (s *Store) PurgeDeletedProducts(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, p := range s.products {
		if p.Deleted && p.DeletedAt != nil && p.DeletedAt.Before(olderThan) {
			delete(s.products, id)
			for aliasID, a := range s.aliases {
				if a.ProductID == id {
					delete(s.aliases, aliasID)
				}
			}
			purged++
		}
	}
	return purged, nil
}

func (s *Store) barcodeTakenLocked(barcode string, exceptProduct int64, exceptAlias int64) bool {
	for _, p := range s.products {
		if p.ID != exceptProduct && p.Barcode == barcode {
			return true
		}
	}
	for _, a := range s.aliases {
		if a.ID != exceptAlias && a.Barcode == barcode {
			return true
		}
	}
	return false
}

// --- Aliases ---

func (s *Store) AddAlias(_ context.Context, productID int64, req domain.AliasCreateRequest) (*domain.Alias, error) {
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.UOM = strings.TrimSpace(req.UOM)
	if req.Barcode == "" || req.UOM == "" || req.Factor <= 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return nil, store.ErrNotFound
	}
	if s.barcodeTakenLocked(req.Barcode, 0, 0) {
		return nil, store.ErrDuplicate
	}

	s.seqAlias++
	a := domain.Alias{
		ID:        s.seqAlias,
		ProductID: productID,
		Barcode:   req.Barcode,
		UOM:       req.UOM,
		MRP:       req.MRP,
		Price:     req.Price,
		Factor:    req.Factor,
		PackQty:   req.PackQty,
	}
	if a.PackQty <= 0 {
		a.PackQty = 1.0
	}
	s.aliases[a.ID] = a
	return &a, nil
}

func (s *Store) ListAliases(_ context.Context, productID int64) ([]domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[productID]; !ok {
		return nil, store.ErrNotFound
	}
	return s.sortedAliasesFor(productID), nil
}

func (s *Store) DeleteAlias(_ context.Context, aliasID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.aliases[aliasID]; !ok {
		return store.ErrNotFound
	}
	delete(s.aliases, aliasID)
	return nil
}

// --- UOM registry ---

func (s *Store) AddUOM(_ context.Context, name string, alias string) (*domain.UOM, error) {
	name = strings.TrimSpace(name)
	alias = strings.TrimSpace(alias)
	if name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.uoms {
		if strings.EqualFold(u.Name, name) {
			return nil, store.ErrDuplicate
		}
	}
	s.seqUOM++
	u := domain.UOM{ID: s.seqUOM, Name: name, Alias: alias}
	s.uoms[u.ID] = u
	return &u, nil
}

func (s *Store) ListUOMs(_ context.Context) ([]domain.UOM, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uoms := make([]domain.UOM, 0, len(s.uoms))
	for _, u := range s.uoms {
		uoms = append(uoms, u)
	}
	sort.Slice(uoms, func(i, j int) bool { return uoms[i].ID < uoms[j].ID })
	return uoms, nil
}

func (s *Store) DeleteUOM(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.uoms {
		if strings.EqualFold(u.Name, name) {
			delete(s.uoms, id)
			return nil
		}
	}
	return store.ErrNotFound
}

// --- Schemes ---

func (s *Store) CreateScheme(_ context.Context, scheme domain.Scheme) (*domain.Scheme, error) {
	if strings.TrimSpace(scheme.Name) == "" || len(scheme.Rules) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, r := range scheme.Rules {
		if !validBenefitType(r.BenefitType) {
			return nil, store.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqScheme++
	scheme.ID = s.seqScheme
	rules := scheme.Rules
	scheme.Rules = nil
	s.schemes[scheme.ID] = scheme
	for _, r := range rules {
		s.seqRule++
		r.ID = s.seqRule
		r.SchemeID = scheme.ID
		s.rules[r.ID] = r
	}
	saved := scheme
	saved.Rules = s.rulesForLocked(scheme.ID)
	return &saved, nil
}

func (s *Store) UpdateScheme(_ context.Context, scheme domain.Scheme) (*domain.Scheme, error) {
	if strings.TrimSpace(scheme.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schemes[scheme.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = scheme.Name
	existing.ValidFrom = scheme.ValidFrom
	existing.ValidTo = scheme.ValidTo

	for id, r := range s.rules {
		if r.SchemeID == scheme.ID {
			delete(s.rules, id)
		}
	}
	for _, r := range scheme.Rules {
		if !validBenefitType(r.BenefitType) {
			return nil, store.ErrInvalidInput
		}
		s.seqRule++
		r.ID = s.seqRule
		r.SchemeID = scheme.ID
		s.rules[r.ID] = r
	}
	s.schemes[scheme.ID] = existing

	saved := existing
	saved.Rules = s.rulesForLocked(scheme.ID)
	return &saved, nil
}

func (s *Store) DeleteScheme(_ context.Context, schemeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemes[schemeID]; !ok {
		return store.ErrNotFound
	}
	delete(s.schemes, schemeID)
	for id, r := range s.rules {
		if r.SchemeID == schemeID {
			delete(s.rules, id)
		}
	}
	return nil
}

func (s *Store) ListSchemes(_ context.Context) ([]domain.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schemes := make([]domain.Scheme, 0, len(s.schemes))
	for _, scheme := range s.schemes {
		scheme.Rules = s.rulesForLocked(scheme.ID)
		schemes = append(schemes, scheme)
	}
	sort.Slice(schemes, func(i, j int) bool { return schemes[i].ID < schemes[j].ID })
	return schemes, nil
}

func (s *Store) ListSchemeRules(_ context.Context, schemeID int64) ([]domain.SchemeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.schemes[schemeID]; !ok {
		return nil, store.ErrNotFound
	}
	return s.rulesForLocked(schemeID), nil
}

func (s *Store) SetSchemeActive(_ context.Context, schemeID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheme, ok := s.schemes[schemeID]
	if !ok {
		return store.ErrNotFound
	}
	scheme.Active = active
	s.schemes[schemeID] = scheme
	return nil
}

func (s *Store) rulesForLocked(schemeID int64) []domain.SchemeRule {
	rules := make([]domain.SchemeRule, 0, 4)
	for _, r := range s.rules {
		if r.SchemeID == schemeID {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

func validBenefitType(t string) bool {
	switch t {
	case domain.BenefitPercent, domain.BenefitAmount, domain.BenefitAbsoluteRate:
		return true
	default:
		return false
	}
}

// --- Sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.Sale, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqSale++
	sale.ID = s.seqSale
	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now().UTC()
	}
	s.sales[sale.ID] = sale
	s.saleItems[sale.ID] = append([]domain.SaleItem(nil), items...)
	return &sale, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale, items []domain.SaleItem) error {
	if len(items) == 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sales[sale.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Total = sale.Total
	existing.PaymentMethod = sale.PaymentMethod
	existing.CustomerID = sale.CustomerID
	s.sales[sale.ID] = existing
	s.saleItems[sale.ID] = append([]domain.SaleItem(nil), items...)
	return nil
}

func (s *Store) ListSales(_ context.Context, date string, query string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if date != "" && sale.Timestamp.UTC().Format("2006-01-02") != date {
			continue
		}
		if sale.CustomerID != nil {
			if c, ok := s.customers[*sale.CustomerID]; ok {
				sale.CustomerName = c.Name
				sale.CustomerMobile = c.Mobile
			}
		}
		if needle != "" {
			idText := strconv.FormatInt(sale.ID, 10)
			if !strings.Contains(strings.ToLower(sale.CustomerName), needle) &&
				!strings.Contains(sale.CustomerMobile, needle) &&
				!strings.Contains(idText, needle) {
				continue
			}
		}
		sales = append(sales, sale)
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].Timestamp.After(sales[j].Timestamp) })
	return sales, nil
}

func (s *Store) GetSaleItems(_ context.Context, saleID int64) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.saleItems[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]domain.SaleItem(nil), items...), nil
}

// --- Purchases ---

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase, items []domain.PurchaseItem) (*domain.Purchase, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqPurchase++
	purchase.ID = s.seqPurchase
	if purchase.Timestamp.IsZero() {
		purchase.Timestamp = time.Now().UTC()
	}
	s.purchases[purchase.ID] = purchase
	s.purchaseItems[purchase.ID] = append([]domain.PurchaseItem(nil), items...)
	return &purchase, nil
}

func (s *Store) ListPurchases(_ context.Context) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	purchases := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		purchases = append(purchases, p)
	}
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].Timestamp.After(purchases[j].Timestamp) })
	return purchases, nil
}

func (s *Store) GetPurchaseItems(_ context.Context, purchaseID int64) ([]domain.PurchaseItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.purchaseItems[purchaseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]domain.PurchaseItem(nil), items...), nil
}

func (s *Store) ItemPurchaseRegister(_ context.Context, productID int64) ([]domain.PurchaseRegisterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Soft-deleted products keep their purchase history; only a missing id
	// is an error.
	if _, ok := s.products[productID]; !ok {
		return nil, store.ErrNotFound
	}

	entries := make([]domain.PurchaseRegisterEntry, 0, 8)
	for purchaseID, items := range s.purchaseItems {
		purchase, ok := s.purchases[purchaseID]
		if !ok {
			continue
		}
		for _, item := range items {
			if item.ProductID != productID {
				continue
			}
			entries = append(entries, domain.PurchaseRegisterEntry{
				Timestamp:    purchase.Timestamp,
				SupplierName: purchase.SupplierName,
				InvoiceNo:    purchase.InvoiceNo,
				Quantity:     item.Quantity,
				Rate:         item.Rate,
				UOM:          item.UOM,
				MRP:          item.MRP,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries, nil
}

func (s *Store) SearchPurchasesByItem(_ context.Context, query string) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	purchases := make([]domain.Purchase, 0, 8)
	for purchaseID, items := range s.purchaseItems {
		purchase, ok := s.purchases[purchaseID]
		if !ok {
			continue
		}
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Name), needle) ||
				strings.Contains(strings.ToLower(item.Barcode), needle) {
				purchases = append(purchases, purchase)
				break
			}
		}
	}
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].Timestamp.After(purchases[j].Timestamp) })
	return purchases, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.purchases))
	suppliers := make([]string, 0, len(s.purchases))
	for _, p := range s.purchases {
		if p.SupplierName == "" {
			continue
		}
		if _, dup := seen[p.SupplierName]; dup {
			continue
		}
		seen[p.SupplierName] = struct{}{}
		suppliers = append(suppliers, p.SupplierName)
	}
	sort.Strings(suppliers)
	return suppliers, nil
}

// --- Held bills ---

func (s *Store) HoldSale(_ context.Context, held domain.HeldSale, items []domain.SaleItem) (*domain.HeldSale, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqHeld++
	held.ID = s.seqHeld
	if held.HeldAt.IsZero() {
		held.HeldAt = time.Now().UTC()
	}
	held.Items = nil
	s.held[held.ID] = held
	s.heldItems[held.ID] = append([]domain.SaleItem(nil), items...)
	return &held, nil
}

func (s *Store) ListHeldSales(_ context.Context) ([]domain.HeldSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := make([]domain.HeldSale, 0, len(s.held))
	for _, h := range s.held {
		held = append(held, h)
	}
	sort.Slice(held, func(i, j int) bool { return held[i].HeldAt.After(held[j].HeldAt) })
	return held, nil
}

func (s *Store) GetHeldSaleItems(_ context.Context, heldID int64) ([]domain.SaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.heldItems[heldID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]domain.SaleItem(nil), items...), nil
}

func (s *Store) DeleteHeldSale(_ context.Context, heldID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.held[heldID]; !ok {
		return store.ErrNotFound
	}
	delete(s.held, heldID)
	delete(s.heldItems, heldID)
	return nil
}

// --- Customers ---

func (s *Store) CreateCustomer(_ context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Mobile = strings.TrimSpace(req.Mobile)
	if req.Name == "" || req.Mobile == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customers {
		if c.Mobile == req.Mobile {
			return nil, store.ErrDuplicate
		}
	}
	s.seqCustomer++
	c := domain.Customer{ID: s.seqCustomer, Name: req.Name, Mobile: req.Mobile}
	s.customers[c.ID] = c
	return &c, nil
}

func (s *Store) FindCustomerByMobile(_ context.Context, mobile string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.Mobile == mobile {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

// --- Users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrDuplicate
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[username] = u
	return nil
}
