package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"kiranapos/backend/internal/domain"
	"kiranapos/backend/internal/store"
)

// Store is the PostgreSQL Repository. Fuzzy lookups rely on the pg_trgm
// extension being installed.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productVariantColumns = `
	p.id, p.name, p.barcode, COALESCE(p.category,''), p.base_uom, p.mrp, p.price
`

const aliasVariantColumns = `
	p.id, p.name, a.barcode, COALESCE(p.category,''), a.uom, a.mrp, a.price,
	a.factor, a.pack_qty, p.price, p.mrp
`

func scanProductVariant(row *sql.Row) (*domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(&v.ProductID, &v.Name, &v.Barcode, &v.Category, &v.UOM, &v.MRP, &v.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	v.Factor = 1.0
	v.PackQty = 1.0
	v.BasePrice = v.Price
	v.BaseMRP = v.MRP
	return &v, nil
}

func scanAliasVariant(row *sql.Row) (*domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(&v.ProductID, &v.Name, &v.Barcode, &v.Category, &v.UOM, &v.MRP, &v.Price,
		&v.Factor, &v.PackQty, &v.BasePrice, &v.BaseMRP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	v.IsAlias = true
	return &v, nil
}

// --- Catalog: resolution ---

func (s *Store) FindVariantByBarcode(ctx context.Context, barcode string) (*domain.Variant, error) {
	v, err := scanProductVariant(s.db.QueryRowContext(ctx, `
		SELECT `+productVariantColumns+`
		FROM products p
		WHERE p.deleted = false AND p.barcode = $1
	`, barcode))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	return scanAliasVariant(s.db.QueryRowContext(ctx, `
		SELECT `+aliasVariantColumns+`
		FROM product_aliases a
		JOIN products p ON p.id = a.product_id
		WHERE p.deleted = false AND a.barcode = $1
	`, barcode))
}

func (s *Store) FindProductByExactName(ctx context.Context, name string) (*domain.Variant, error) {
	return scanProductVariant(s.db.QueryRowContext(ctx, `
		SELECT `+productVariantColumns+`
		FROM products p
		WHERE p.deleted = false AND p.name ILIKE $1
		LIMIT 1
	`, name))
}

func (s *Store) FindProductByNameFragment(ctx context.Context, fragment string) (*domain.Variant, error) {
	return scanProductVariant(s.db.QueryRowContext(ctx, `
		SELECT `+productVariantColumns+`
		FROM products p
		WHERE p.deleted = false AND p.name ILIKE '%' || $1 || '%'
		ORDER BY p.name
		LIMIT 1
	`, fragment))
}

func (s *Store) FuzzyMatchProduct(ctx context.Context, token string, threshold float64) (*domain.ScoredVariant, error) {
	var sv domain.ScoredVariant
	err := s.db.QueryRowContext(ctx, `
		SELECT `+productVariantColumns+`,
			GREATEST(similarity(p.name, $1), similarity(p.barcode, $1)) AS sim
		FROM products p
		WHERE p.deleted = false
			AND GREATEST(similarity(p.name, $1), similarity(p.barcode, $1)) > $2
		ORDER BY sim DESC
		LIMIT 1
	`, token, threshold).Scan(
		&sv.Variant.ProductID, &sv.Variant.Name, &sv.Variant.Barcode, &sv.Variant.Category,
		&sv.Variant.UOM, &sv.Variant.MRP, &sv.Variant.Price, &sv.Similarity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sv.Variant.Factor = 1.0
	sv.Variant.PackQty = 1.0
	sv.Variant.BasePrice = sv.Variant.Price
	sv.Variant.BaseMRP = sv.Variant.MRP
	return &sv, nil
}

func (s *Store) FuzzyMatchAlias(ctx context.Context, token string, threshold float64) (*domain.ScoredVariant, error) {
	var sv domain.ScoredVariant
	err := s.db.QueryRowContext(ctx, `
		SELECT `+aliasVariantColumns+`, similarity(a.barcode, $1) AS sim
		FROM product_aliases a
		JOIN products p ON p.id = a.product_id
		WHERE p.deleted = false AND similarity(a.barcode, $1) > $2
		ORDER BY sim DESC
		LIMIT 1
	`, token, threshold).Scan(
		&sv.Variant.ProductID, &sv.Variant.Name, &sv.Variant.Barcode, &sv.Variant.Category,
		&sv.Variant.UOM, &sv.Variant.MRP, &sv.Variant.Price,
		&sv.Variant.Factor, &sv.Variant.PackQty, &sv.Variant.BasePrice, &sv.Variant.BaseMRP,
		&sv.Similarity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sv.Variant.IsAlias = true
	return &sv, nil
}

func (s *Store) SearchCatalog(ctx context.Context, query string, threshold float64, limit int) ([]domain.CatalogHit, error) {
	if limit < 1 {
		limit = 15
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, barcode, category, uom, mrp, price, sim
		FROM (
			SELECT p.id AS product_id, p.name, p.barcode, COALESCE(p.category,'') AS category,
				p.base_uom AS uom, p.mrp, p.price,
				GREATEST(similarity(p.name, $1), similarity(p.barcode, $1)) AS sim,
				(p.name ILIKE '%' || $1 || '%' OR p.barcode ILIKE '%' || $1 || '%') AS substr
			FROM products p
			WHERE p.deleted = false
			UNION ALL
			SELECT p.id, p.name, a.barcode, COALESCE(p.category,''),
				a.uom, a.mrp, a.price,
				GREATEST(similarity(p.name, $1), similarity(a.barcode, $1)) AS sim,
				(p.name ILIKE '%' || $1 || '%' OR a.barcode ILIKE '%' || $1 || '%') AS substr
			FROM product_aliases a
			JOIN products p ON p.id = a.product_id
			WHERE p.deleted = false
		) candidates
		WHERE sim > $2 OR substr
		ORDER BY sim DESC, name
		LIMIT $3
	`, query, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]domain.CatalogHit, 0, limit)
	for rows.Next() {
		var hit domain.CatalogHit
		if err := rows.Scan(&hit.ProductID, &hit.Name, &hit.Barcode, &hit.Category, &hit.UOM, &hit.MRP, &hit.Price, &hit.Similarity); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

// --- Catalog: units ---

func (s *Store) ListUnits(ctx context.Context, productID int64) ([]domain.UnitEntry, error) {
	var base domain.UnitEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT base_uom, price, mrp
		FROM products
		WHERE id = $1 AND deleted = false
	`, productID).Scan(&base.UOM, &base.Price, &base.MRP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	base.Factor = 1.0
	base.BasePrice = base.Price
	base.BaseMRP = base.MRP

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.uom, a.price, a.mrp, a.factor
		FROM product_aliases a
		WHERE a.product_id = $1
		ORDER BY a.id ASC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.UnitEntry{base}
	for rows.Next() {
		entry := domain.UnitEntry{BasePrice: base.Price, BaseMRP: base.MRP}
		if err := rows.Scan(&entry.UOM, &entry.Price, &entry.MRP, &entry.Factor); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) FindUnit(ctx context.Context, productID int64, uom string) (*domain.UnitEntry, error) {
	entries, err := s.ListUnits(ctx, productID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].UOM == uom {
			return &entries[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListMRPVariants(ctx context.Context, productID int64, uom string) ([]domain.MRPVariant, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Deleted {
		return nil, store.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT mrp, price
		FROM (
			SELECT mrp, price FROM products WHERE id = $1 AND base_uom = $2
			UNION ALL
			SELECT mrp, price FROM product_aliases WHERE product_id = $1 AND uom = $2
		) tiers
		ORDER BY mrp ASC
	`, productID, uom)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make([]domain.MRPVariant, 0, 4)
	for rows.Next() {
		var v domain.MRPVariant
		if err := rows.Scan(&v.MRP, &v.Price); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return variants, nil
}

func (s *Store) UOMAliases(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, alias
		FROM uoms
		WHERE alias IS NOT NULL AND alias <> ''
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mapping := make(map[string]string, 16)
	for rows.Next() {
		var name, alias string
		if err := rows.Scan(&name, &alias); err != nil {
			return nil, err
		}
		mapping[strings.ToLower(alias)] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mapping, nil
}

// --- Catalog: schemes ---

func (s *Store) FindBestSchemeRule(ctx context.Context, productID int64, qty float64, uom string, mrp decimal.Decimal, today time.Time) (*domain.SchemeRule, error) {
	var rule domain.SchemeRule
	var maxQty sql.NullFloat64
	var targetUOM sql.NullString
	var targetMRP decimal.NullDecimal
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.scheme_id, sc.name, r.product_id, r.min_qty, r.max_qty,
			r.target_uom, r.target_mrp, r.benefit_type, r.benefit_value
		FROM scheme_rules r
		JOIN schemes sc ON sc.id = r.scheme_id
		WHERE r.product_id = $1
			AND sc.active = true
			AND $2 >= r.min_qty
			AND (r.max_qty IS NULL OR $2 <= r.max_qty)
			AND $5::date BETWEEN sc.valid_from AND COALESCE(sc.valid_to, DATE '9999-12-31')
			AND (
				($3 = '' AND r.target_uom IS NULL)
				OR ($3 <> '' AND (r.target_uom IS NULL OR r.target_uom = $3))
			)
			AND (r.target_mrp IS NULL OR r.target_mrp = $4)
		ORDER BY r.min_qty DESC, r.benefit_value DESC
		LIMIT 1
	`, productID, qty, uom, mrp, today).Scan(
		&rule.ID, &rule.SchemeID, &rule.SchemeName, &rule.ProductID, &rule.MinQty,
		&maxQty, &targetUOM, &targetMRP, &rule.BenefitType, &rule.BenefitValue,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if maxQty.Valid {
		rule.MaxQty = &maxQty.Float64
	}
	if targetUOM.Valid {
		rule.TargetUOM = targetUOM.String
	}
	if targetMRP.Valid {
		rule.TargetMRP = &targetMRP.Decimal
	}
	return &rule, nil
}

// --- Products ---

func (s *Store) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.BaseUOM = strings.TrimSpace(req.BaseUOM)
	if req.Name == "" || req.Barcode == "" || req.BaseUOM == "" || !req.Price.IsPositive() {
		return nil, store.ErrInvalidInput
	}

	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, barcode, category, base_uom, price, mrp, deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,false,now(),now())
		RETURNING id, name, barcode, COALESCE(category,''), base_uom, price, mrp
	`, req.Name, req.Barcode, strings.TrimSpace(req.Category), req.BaseUOM, req.Price, req.MRP).Scan(
		&p.ID, &p.Name, &p.Barcode, &p.Category, &p.BaseUOM, &p.Price, &p.MRP,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (*domain.Product, error) {
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
	}
	if req.Barcode != nil {
		next.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Category != nil {
		next.Category = strings.TrimSpace(*req.Category)
	}
	if req.BaseUOM != nil {
		next.BaseUOM = strings.TrimSpace(*req.BaseUOM)
	}
	if req.Price != nil {
		next.Price = *req.Price
	}
	if req.MRP != nil {
		next.MRP = *req.MRP
	}
	if next.Name == "" || next.Barcode == "" || next.BaseUOM == "" || !next.Price.IsPositive() {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, category = $4, base_uom = $5, price = $6, mrp = $7, updated_at = now()
		WHERE id = $1
	`, id, next.Name, next.Barcode, next.Category, next.BaseUOM, next.Price, next.MRP)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &next, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, barcode, COALESCE(category,''), base_uom, price, mrp, deleted, deleted_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Barcode, &p.Category, &p.BaseUOM, &p.Price, &p.MRP, &p.Deleted, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if deletedAt.Valid {
		at := deletedAt.Time.UTC()
		p.DeletedAt = &at
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.listProductsWhere(ctx, `deleted = false`, `ORDER BY name`)
}

func (s *Store) ListDeletedProducts(ctx context.Context) ([]domain.Product, error) {
	return s.listProductsWhere(ctx, `deleted = true`, `ORDER BY deleted_at DESC NULLS LAST, id`)
}

func (s *Store) listProductsWhere(ctx context.Context, where string, order string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, barcode, COALESCE(category,''), base_uom, price, mrp, deleted, deleted_at
		FROM products
		WHERE `+where+`
		`+order)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		var deletedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &p.Barcode, &p.Category, &p.BaseUOM, &p.Price, &p.MRP, &p.Deleted, &deletedAt); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			at := deletedAt.Time.UTC()
			p.DeletedAt = &at
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) SoftDeleteProduct(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET deleted = true, deleted_at = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RestoreProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET deleted = false, deleted_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) PurgeDeletedProducts(ctx context.Context, olderThan time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM product_aliases
		WHERE product_id IN (
			SELECT id FROM products WHERE deleted = true AND deleted_at < $1
		)
	`, olderThan)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM products
		WHERE deleted = true AND deleted_at < $1
	`, olderThan)
	if err != nil {
		return 0, err
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return purged, nil
}

// --- Aliases ---

func (s *Store) AddAlias(ctx context.Context, productID int64, req domain.AliasCreateRequest) (*domain.Alias, error) {
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.UOM = strings.TrimSpace(req.UOM)
	if req.Barcode == "" || req.UOM == "" || req.Factor <= 0 {
		return nil, store.ErrInvalidInput
	}
	if req.PackQty <= 0 {
		req.PackQty = 1.0
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	var a domain.Alias
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO product_aliases (product_id, barcode, uom, mrp, price, factor, pack_qty, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		RETURNING id, product_id, barcode, uom, mrp, price, factor, pack_qty
	`, productID, req.Barcode, req.UOM, req.MRP, req.Price, req.Factor, req.PackQty).Scan(
		&a.ID, &a.ProductID, &a.Barcode, &a.UOM, &a.MRP, &a.Price, &a.Factor, &a.PackQty,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAliases(ctx context.Context, productID int64) ([]domain.Alias, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, barcode, uom, mrp, price, factor, pack_qty
		FROM product_aliases
		WHERE product_id = $1
		ORDER BY id ASC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aliases := make([]domain.Alias, 0, 8)
	for rows.Next() {
		var a domain.Alias
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Barcode, &a.UOM, &a.MRP, &a.Price, &a.Factor, &a.PackQty); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return aliases, nil
}

func (s *Store) DeleteAlias(ctx context.Context, aliasID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_aliases WHERE id = $1`, aliasID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- UOM registry ---

func (s *Store) AddUOM(ctx context.Context, name string, alias string) (*domain.UOM, error) {
	name = strings.TrimSpace(name)
	alias = strings.TrimSpace(alias)
	if name == "" {
		return nil, store.ErrInvalidInput
	}

	var u domain.UOM
	var aliasNull sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO uoms (name, alias)
		VALUES ($1, NULLIF($2,''))
		RETURNING id, name, alias
	`, name, alias).Scan(&u.ID, &u.Name, &aliasNull)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	if aliasNull.Valid {
		u.Alias = aliasNull.String
	}
	return &u, nil
}

func (s *Store) ListUOMs(ctx context.Context) ([]domain.UOM, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(alias,'')
		FROM uoms
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uoms := make([]domain.UOM, 0, 16)
	for rows.Next() {
		var u domain.UOM
		if err := rows.Scan(&u.ID, &u.Name, &u.Alias); err != nil {
			return nil, err
		}
		uoms = append(uoms, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return uoms, nil
}

func (s *Store) DeleteUOM(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uoms WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Schemes ---

func (s *Store) CreateScheme(ctx context.Context, scheme domain.Scheme) (*domain.Scheme, error) {
	if strings.TrimSpace(scheme.Name) == "" || len(scheme.Rules) == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO schemes (name, valid_from, valid_to, active, created_at)
		VALUES ($1,$2,$3,$4,now())
		RETURNING id
	`, scheme.Name, scheme.ValidFrom, nullTime(scheme.ValidTo), scheme.Active).Scan(&scheme.ID)
	if err != nil {
		return nil, err
	}

	rules, err := insertRulesTx(ctx, tx, scheme.ID, scheme.Rules)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	scheme.Rules = rules
	return &scheme, nil
}

func (s *Store) UpdateScheme(ctx context.Context, scheme domain.Scheme) (*domain.Scheme, error) {
	if strings.TrimSpace(scheme.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE schemes
		SET name = $2, valid_from = $3, valid_to = $4
		WHERE id = $1
	`, scheme.ID, scheme.Name, scheme.ValidFrom, nullTime(scheme.ValidTo))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM scheme_rules WHERE scheme_id = $1`, scheme.ID)
	if err != nil {
		return nil, err
	}
	rules, err := insertRulesTx(ctx, tx, scheme.ID, scheme.Rules)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	scheme.Rules = rules
	return &scheme, nil
}

func insertRulesTx(ctx context.Context, tx *sql.Tx, schemeID int64, inputs []domain.SchemeRule) ([]domain.SchemeRule, error) {
	rules := make([]domain.SchemeRule, 0, len(inputs))
	for _, r := range inputs {
		switch r.BenefitType {
		case domain.BenefitPercent, domain.BenefitAmount, domain.BenefitAbsoluteRate:
		default:
			return nil, store.ErrInvalidInput
		}
		r.SchemeID = schemeID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO scheme_rules (scheme_id, product_id, min_qty, max_qty, target_uom, target_mrp, benefit_type, benefit_value)
			VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8)
			RETURNING id
		`, schemeID, r.ProductID, r.MinQty, nullFloat(r.MaxQty), r.TargetUOM, nullDecimal(r.TargetMRP), r.BenefitType, r.BenefitValue).Scan(&r.ID)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (s *Store) DeleteScheme(ctx context.Context, schemeID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schemes WHERE id = $1`, schemeID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSchemes(ctx context.Context) ([]domain.Scheme, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, valid_from, valid_to, active
		FROM schemes
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schemes := make([]domain.Scheme, 0, 16)
	for rows.Next() {
		var scheme domain.Scheme
		var validTo sql.NullTime
		if err := rows.Scan(&scheme.ID, &scheme.Name, &scheme.ValidFrom, &validTo, &scheme.Active); err != nil {
			return nil, err
		}
		if validTo.Valid {
			to := validTo.Time.UTC()
			scheme.ValidTo = &to
		}
		schemes = append(schemes, scheme)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range schemes {
		rules, err := s.ListSchemeRules(ctx, schemes[i].ID)
		if err != nil {
			return nil, err
		}
		schemes[i].Rules = rules
	}
	return schemes, nil
}

func (s *Store) ListSchemeRules(ctx context.Context, schemeID int64) ([]domain.SchemeRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.scheme_id, sc.name, r.product_id, r.min_qty, r.max_qty,
			COALESCE(r.target_uom,''), r.target_mrp, r.benefit_type, r.benefit_value
		FROM scheme_rules r
		JOIN schemes sc ON sc.id = r.scheme_id
		WHERE r.scheme_id = $1
		ORDER BY r.id ASC
	`, schemeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]domain.SchemeRule, 0, 8)
	for rows.Next() {
		var r domain.SchemeRule
		var maxQty sql.NullFloat64
		var targetMRP decimal.NullDecimal
		if err := rows.Scan(&r.ID, &r.SchemeID, &r.SchemeName, &r.ProductID, &r.MinQty, &maxQty, &r.TargetUOM, &targetMRP, &r.BenefitType, &r.BenefitValue); err != nil {
			return nil, err
		}
		if maxQty.Valid {
			r.MaxQty = &maxQty.Float64
		}
		if targetMRP.Valid {
			r.TargetMRP = &targetMRP.Decimal
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) SetSchemeActive(ctx context.Context, schemeID int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schemes
		SET active = $2
		WHERE id = $1
	`, schemeID, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Sales ---

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) (*domain.Sale, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (ts, total, payment_method, customer_id)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, sale.Timestamp, sale.Total, sale.PaymentMethod, nullInt64(sale.CustomerID)).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}

	if err := insertSaleItemsTx(ctx, tx, sale.ID, items); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem) error {
	if len(items) == 0 {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET total = $2, payment_method = $3, customer_id = $4
		WHERE id = $1
	`, sale.ID, sale.Total, sale.PaymentMethod, nullInt64(sale.CustomerID))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, sale.ID)
	if err != nil {
		return err
	}
	if err := insertSaleItemsTx(ctx, tx, sale.ID, items); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSaleItemsTx(ctx context.Context, tx *sql.Tx, saleID int64, items []domain.SaleItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, name, barcode, qty, price, uom, mrp)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, saleID, item.ProductID, item.Name, item.Barcode, item.Quantity, item.Price, item.UOM, item.MRP)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, date string, query string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.ts, s.total, s.payment_method, s.customer_id,
			COALESCE(c.name,''), COALESCE(c.mobile,'')
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		WHERE ($1 = '' OR s.ts::date = $1::date)
			AND ($2 = ''
				OR c.name ILIKE '%' || $2 || '%'
				OR c.mobile LIKE '%' || $2 || '%'
				OR s.id::text LIKE '%' || $2 || '%')
		ORDER BY s.ts DESC
	`, date, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var customerID sql.NullInt64
		if err := rows.Scan(&sale.ID, &sale.Timestamp, &sale.Total, &sale.PaymentMethod, &customerID, &sale.CustomerName, &sale.CustomerMobile); err != nil {
			return nil, err
		}
		sale.Timestamp = sale.Timestamp.UTC()
		if customerID.Valid {
			id := customerID.Int64
			sale.CustomerID = &id
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetSaleItems(ctx context.Context, saleID int64) ([]domain.SaleItem, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT true FROM sales WHERE id = $1`, saleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return s.querySaleItems(ctx, `SELECT product_id, name, barcode, qty, price, uom, mrp FROM sale_items WHERE sale_id = $1 ORDER BY id ASC`, saleID)
}

func (s *Store) querySaleItems(ctx context.Context, query string, id int64) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Barcode, &item.Quantity, &item.Price, &item.UOM, &item.MRP); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// --- Purchases ---

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase, items []domain.PurchaseItem) (*domain.Purchase, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.Timestamp.IsZero() {
		purchase.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO purchases (ts, supplier_name, invoice_no, total)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, purchase.Timestamp, purchase.SupplierName, purchase.InvoiceNo, purchase.Total).Scan(&purchase.ID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_items (purchase_id, product_id, name, barcode, qty, rate, uom, mrp)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, purchase.ID, item.ProductID, item.Name, item.Barcode, item.Quantity, item.Rate, item.UOM, item.MRP)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (s *Store) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT id, ts, supplier_name, invoice_no, total
		FROM purchases
		ORDER BY ts DESC
	`)
}

func (s *Store) GetPurchaseItems(ctx context.Context, purchaseID int64) ([]domain.PurchaseItem, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT true FROM purchases WHERE id = $1`, purchaseID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, barcode, qty, rate, uom, mrp
		FROM purchase_items
		WHERE purchase_id = $1
		ORDER BY id ASC
	`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PurchaseItem, 0, 8)
	for rows.Next() {
		var item domain.PurchaseItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Barcode, &item.Quantity, &item.Rate, &item.UOM, &item.MRP); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ItemPurchaseRegister(ctx context.Context, productID int64) ([]domain.PurchaseRegisterEntry, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.ts, p.supplier_name, p.invoice_no, pi.qty, pi.rate, pi.uom, pi.mrp
		FROM purchase_items pi
		JOIN purchases p ON p.id = pi.purchase_id
		WHERE pi.product_id = $1
		ORDER BY p.ts DESC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.PurchaseRegisterEntry, 0, 16)
	for rows.Next() {
		var entry domain.PurchaseRegisterEntry
		if err := rows.Scan(&entry.Timestamp, &entry.SupplierName, &entry.InvoiceNo, &entry.Quantity, &entry.Rate, &entry.UOM, &entry.MRP); err != nil {
			return nil, err
		}
		entry.Timestamp = entry.Timestamp.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) SearchPurchasesByItem(ctx context.Context, query string) ([]domain.Purchase, error) {
	return s.queryPurchases(ctx, `
		SELECT DISTINCT p.id, p.ts, p.supplier_name, p.invoice_no, p.total
		FROM purchases p
		JOIN purchase_items pi ON pi.purchase_id = p.id
		WHERE pi.name ILIKE '%' || $1 || '%' OR pi.barcode ILIKE '%' || $1 || '%'
		ORDER BY p.ts DESC
	`, strings.TrimSpace(query))
}

func (s *Store) ListSuppliers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT supplier_name
		FROM purchases
		WHERE supplier_name <> ''
		ORDER BY supplier_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]string, 0, 16)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) queryPurchases(ctx context.Context, query string, args ...any) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.SupplierName, &p.InvoiceNo, &p.Total); err != nil {
			return nil, err
		}
		p.Timestamp = p.Timestamp.UTC()
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

// --- Held bills ---

func (s *Store) HoldSale(ctx context.Context, held domain.HeldSale, items []domain.SaleItem) (*domain.HeldSale, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if held.HeldAt.IsZero() {
		held.HeldAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO held_sales (held_at, total, username)
		VALUES ($1,$2,$3)
		RETURNING id
	`, held.HeldAt, held.Total, held.Username).Scan(&held.ID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO held_sale_items (held_sale_id, product_id, name, barcode, qty, price, uom, mrp)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, held.ID, item.ProductID, item.Name, item.Barcode, item.Quantity, item.Price, item.UOM, item.MRP)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	held.Items = nil
	return &held, nil
}

func (s *Store) ListHeldSales(ctx context.Context) ([]domain.HeldSale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, held_at, total, username
		FROM held_sales
		ORDER BY held_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	held := make([]domain.HeldSale, 0, 16)
	for rows.Next() {
		var h domain.HeldSale
		if err := rows.Scan(&h.ID, &h.HeldAt, &h.Total, &h.Username); err != nil {
			return nil, err
		}
		h.HeldAt = h.HeldAt.UTC()
		held = append(held, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return held, nil
}

func (s *Store) GetHeldSaleItems(ctx context.Context, heldID int64) ([]domain.SaleItem, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT true FROM held_sales WHERE id = $1`, heldID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return s.querySaleItems(ctx, `SELECT product_id, name, barcode, qty, price, uom, mrp FROM held_sale_items WHERE held_sale_id = $1 ORDER BY id ASC`, heldID)
}

func (s *Store) DeleteHeldSale(ctx context.Context, heldID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM held_sales WHERE id = $1`, heldID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Customers ---

func (s *Store) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Mobile = strings.TrimSpace(req.Mobile)
	if req.Name == "" || req.Mobile == "" {
		return nil, store.ErrInvalidInput
	}

	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, mobile, created_at)
		VALUES ($1,$2,now())
		RETURNING id, name, mobile
	`, req.Name, req.Mobile).Scan(&c.ID, &c.Name, &c.Mobile)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindCustomerByMobile(ctx context.Context, mobile string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, mobile
		FROM customers
		WHERE mobile = $1
	`, mobile).Scan(&c.ID, &c.Name, &c.Mobile)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(
		&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullFloat(val *float64) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullInt64(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
