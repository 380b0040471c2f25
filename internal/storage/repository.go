package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
)

const productColumns = `id, store, sku, url, title, image_url, category,
        target_price, current_price, lowest_price, highest_price,
        is_active, created_at, updated_at`

const (
	insertProductSQL = `INSERT INTO products (
        store, sku, url, title, image_url, target_price,
        current_price, lowest_price, highest_price
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING ` + productColumns + `;`

	getProductSQL = `SELECT ` + productColumns + `
    FROM products WHERE id = $1;`

	getProductByStoreSKUSQL = `SELECT ` + productColumns + `
    FROM products WHERE store = $1 AND sku = $2;`

	listProductsSQL = `SELECT ` + productColumns + `
    FROM products ORDER BY id;`

	listActiveProductsSQL = `SELECT ` + productColumns + `
    FROM products WHERE is_active = TRUE ORDER BY id;`

	listActiveByCategorySQL = `SELECT ` + productColumns + `
    FROM products
    WHERE category = $1 AND is_active = TRUE AND current_price IS NOT NULL
    ORDER BY current_price ASC, id ASC;`

	updateProductPricesSQL = `UPDATE products
    SET current_price = $2,
        lowest_price  = LEAST(COALESCE(lowest_price, $2), $2),
        highest_price = GREATEST(COALESCE(highest_price, $2), $2),
        updated_at    = NOW()
    WHERE id = $1;`

	setTargetPriceSQL = `UPDATE products
    SET target_price = $2, is_active = TRUE, updated_at = NOW()
    WHERE id = $1;`

	setCategorySQL = `UPDATE products
    SET category = $2, updated_at = NOW()
    WHERE id = $1;`

	setProductActiveSQL = `UPDATE products
    SET is_active = $2, updated_at = NOW()
    WHERE id = $1;`

	purgeProductSQL = `DELETE FROM products WHERE id = $1;`

	listCategoriesSQL = `SELECT category, COUNT(*)
    FROM products
    WHERE category IS NOT NULL AND is_active = TRUE
    GROUP BY category
    ORDER BY category;`

	listUncategorizedSQL = `SELECT ` + productColumns + `
    FROM products
    WHERE category IS NULL AND is_active = TRUE
    ORDER BY id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ProductStore defines persistence operations for products.
type ProductStore interface {
	InsertProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductByStoreSKU(ctx context.Context, store, sku string) (Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	ListActiveByCategory(ctx context.Context, category string) ([]Product, error)
	ListUncategorized(ctx context.Context) ([]Product, error)
	ListCategories(ctx context.Context) ([]CategoryCount, error)
	UpdateProductPrices(ctx context.Context, id int64, current decimal.Decimal) error
	SetTargetPrice(ctx context.Context, id int64, target decimal.Decimal) error
	SetCategory(ctx context.Context, id int64, category string) error
	SetProductActive(ctx context.Context, id int64, active bool) error
	PurgeProduct(ctx context.Context, id int64) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// CategoryCount is one row of the category listing.
type CategoryCount struct {
	Category string
	Products int
}

// Store aggregates access to products, price history, and alert states.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertProduct persists a new product and returns the stored row.
func (s *Store) InsertProduct(ctx context.Context, p Product) (Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return Product{}, err
	}

	row := pool.QueryRow(ctx, insertProductSQL,
		p.Store,
		p.SKU,
		p.URL,
		p.Title,
		p.ImageURL,
		decimalString(p.TargetPrice),
		decimalString(p.CurrentPrice),
		decimalString(p.LowestPrice),
		decimalString(p.HighestPrice),
	)

	stored, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return stored, nil
}

// GetProduct fetches a product by id.
func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return Product{}, err
	}

	p, err := scanProduct(pool.QueryRow(ctx, getProductSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProductByStoreSKU fetches a product by its natural key.
func (s *Store) GetProductByStoreSKU(ctx context.Context, store, sku string) (Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return Product{}, err
	}

	p, err := scanProduct(pool.QueryRow(ctx, getProductByStoreSKUSQL, store, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product by store/sku: %w", err)
	}
	return p, nil
}

// ListProducts lists products, optionally restricted to active ones.
func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := listProductsSQL
	if activeOnly {
		query = listActiveProductsSQL
	}
	return s.queryProducts(ctx, query)
}

// ListActiveByCategory lists active priced products carrying the exact label.
func (s *Store) ListActiveByCategory(ctx context.Context, category string) ([]Product, error) {
	return s.queryProducts(ctx, listActiveByCategorySQL, category)
}

// ListUncategorized lists active products with no category label yet.
func (s *Store) ListUncategorized(ctx context.Context) ([]Product, error) {
	return s.queryProducts(ctx, listUncategorizedSQL)
}

// ListCategories lists assigned category labels with product counts.
func (s *Store) ListCategories(ctx context.Context) ([]CategoryCount, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCategoriesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list categories: %w", queryErr)
	}
	defer rows.Close()

	counts := make([]CategoryCount, 0)
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Products); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// UpdateProductPrices sets the current price and folds it into the running
// lowest/highest bounds.
func (s *Store) UpdateProductPrices(ctx context.Context, id int64, current decimal.Decimal) error {
	return s.execOne(ctx, updateProductPricesSQL, "update product prices", id, current.String())
}

// SetTargetPrice updates the target price and reactivates the product.
func (s *Store) SetTargetPrice(ctx context.Context, id int64, target decimal.Decimal) error {
	return s.execOne(ctx, setTargetPriceSQL, "set target price", id, target.String())
}

// SetCategory assigns the category label produced by the categorizer.
func (s *Store) SetCategory(ctx context.Context, id int64, category string) error {
	return s.execOne(ctx, setCategorySQL, "set category", id, category)
}

// SetProductActive toggles the soft-delete flag.
func (s *Store) SetProductActive(ctx context.Context, id int64, active bool) error {
	return s.execOne(ctx, setProductActiveSQL, "set product active", id, active)
}

// PurgeProduct hard-deletes a product; history and alert states cascade.
func (s *Store) PurgeProduct(ctx context.Context, id int64) error {
	return s.execOne(ctx, purgeProductSQL, "purge product", id)
}

func (s *Store) execOne(ctx context.Context, query, op string, args ...any) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, query, args...)
	if execErr != nil {
		return fmt.Errorf("%s: %w", op, execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list products: %w", queryErr)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, scanErr := scanProduct(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		imageURL sql.NullString
		category sql.NullString
		target   sql.NullString
		current  sql.NullString
		lowest   sql.NullString
		highest  sql.NullString
	)

	if err := row.Scan(
		&p.ID,
		&p.Store,
		&p.SKU,
		&p.URL,
		&p.Title,
		&imageURL,
		&category,
		&target,
		&current,
		&lowest,
		&highest,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Product{}, err
	}

	if imageURL.Valid {
		v := imageURL.String
		p.ImageURL = &v
	}
	if category.Valid {
		v := category.String
		p.Category = &v
	}

	var err error
	if p.TargetPrice, err = parseNullDecimal(target, "target_price"); err != nil {
		return Product{}, err
	}
	if p.CurrentPrice, err = parseNullDecimal(current, "current_price"); err != nil {
		return Product{}, err
	}
	if p.LowestPrice, err = parseNullDecimal(lowest, "lowest_price"); err != nil {
		return Product{}, err
	}
	if p.HighestPrice, err = parseNullDecimal(highest, "highest_price"); err != nil {
		return Product{}, err
	}

	return p, nil
}

func parseDecimal(v, column string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", column, err)
	}
	return d, nil
}

func parseNullDecimal(v sql.NullString, column string) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", column, err)
	}
	return &d, nil
}

func decimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

var _ ProductStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
