package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProductRepository defines the interface for product persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	ListByType(ctx context.Context, productTypeID string) ([]Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id string) error
}

// SQLiteProductRepository implements ProductRepository using SQLite.
type SQLiteProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new SQLite-backed product repository.
func NewProductRepository(db *sql.DB) *SQLiteProductRepository {
	return &SQLiteProductRepository{db: db}
}

const productColumns = "id, brand, package_quantity, package_size, delivered_at, product_type_id, person_id, created_at, updated_at"

// Create inserts a new product. The ID is generated if empty; the referenced
// product type and person must exist.
func (r *SQLiteProductRepository) Create(ctx context.Context, product *Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	if product.ID == "" {
		product.ID = "prd-" + uuid.NewString()[:8]
	}
	if product.DeliveredAt.IsZero() {
		product.DeliveredAt = time.Now().UTC()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	product.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	product.UpdatedAt = product.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, brand, package_quantity, package_size, delivered_at, product_type_id, person_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.Brand, product.PackageQuantity, product.PackageSize,
		product.DeliveredAt.UTC().Format(time.RFC3339),
		product.ProductTypeID, product.PersonID, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return r.referenceError(ctx, product)
		}
		return fmt.Errorf("creating product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by ID.
func (r *SQLiteProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id)
	return scanProduct(row)
}

// List returns all products ordered by delivery date, most recent first.
func (r *SQLiteProductRepository) List(ctx context.Context) ([]Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products ORDER BY delivered_at DESC, id ASC")
}

// ListByType returns all products of a given product type.
func (r *SQLiteProductRepository) ListByType(ctx context.Context, productTypeID string) ([]Product, error) {
	return r.list(ctx,
		"SELECT "+productColumns+" FROM products WHERE product_type_id = ? ORDER BY delivered_at DESC, id ASC",
		productTypeID)
}

func (r *SQLiteProductRepository) list(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// Update modifies a product's mutable fields.
func (r *SQLiteProductRepository) Update(ctx context.Context, product *Product) error {
	if err := product.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	product.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET brand = ?, package_quantity = ?, package_size = ?, delivered_at = ?,
		     product_type_id = ?, person_id = ?, updated_at = ?
		 WHERE id = ?`,
		product.Brand, product.PackageQuantity, product.PackageSize,
		product.DeliveredAt.UTC().Format(time.RFC3339),
		product.ProductTypeID, product.PersonID, now, product.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return r.referenceError(ctx, product)
		}
		return fmt.Errorf("updating product: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes a product by ID.
func (r *SQLiteProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

// referenceError resolves which foreign key reference failed so callers get a
// specific not-found error instead of a raw constraint message.
func (r *SQLiteProductRepository) referenceError(ctx context.Context, product *Product) error {
	var n int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM product_types WHERE id = ?", product.ProductTypeID).Scan(&n); err == nil && n == 0 {
		return ErrProductTypeNotFound
	}
	return ErrPersonNotFound
}

func scanProduct(s scanner) (*Product, error) {
	var p Product
	var deliveredAt, createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Brand, &p.PackageQuantity, &p.PackageSize,
		&deliveredAt, &p.ProductTypeID, &p.PersonID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scanning product: %w", err)
	}

	p.DeliveredAt, _ = time.Parse(time.RFC3339, deliveredAt) //nolint:errcheck // format is controlled
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)     //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)     //nolint:errcheck // format is controlled
	return &p, nil
}
