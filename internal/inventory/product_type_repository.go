package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProductTypeRepository defines the interface for product type persistence.
type ProductTypeRepository interface {
	Create(ctx context.Context, productType *ProductType) error
	GetByID(ctx context.Context, id string) (*ProductType, error)
	List(ctx context.Context) ([]ProductType, error)
	Update(ctx context.Context, productType *ProductType) error
	Delete(ctx context.Context, id string) error
}

// SQLiteProductTypeRepository implements ProductTypeRepository using SQLite.
type SQLiteProductTypeRepository struct {
	db *sql.DB
}

// NewProductTypeRepository creates a new SQLite-backed product type repository.
func NewProductTypeRepository(db *sql.DB) *SQLiteProductTypeRepository {
	return &SQLiteProductTypeRepository{db: db}
}

// Create inserts a new product type. The ID is generated if empty.
func (r *SQLiteProductTypeRepository) Create(ctx context.Context, productType *ProductType) error {
	if err := productType.Validate(); err != nil {
		return err
	}
	if productType.ID == "" {
		productType.ID = "ptp-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	productType.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	productType.UpdatedAt = productType.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO product_types (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		productType.ID, productType.Name, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating product type: %w", err)
	}
	return nil
}

// GetByID retrieves a product type by ID.
func (r *SQLiteProductTypeRepository) GetByID(ctx context.Context, id string) (*ProductType, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM product_types WHERE id = ?", id)
	return scanProductType(row)
}

// List returns all product types ordered by name.
func (r *SQLiteProductTypeRepository) List(ctx context.Context) ([]ProductType, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, created_at, updated_at FROM product_types ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("listing product types: %w", err)
	}
	defer rows.Close()

	types := []ProductType{}
	for rows.Next() {
		pt, err := scanProductType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, *pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product types: %w", err)
	}
	return types, nil
}

// Update modifies a product type's name.
func (r *SQLiteProductTypeRepository) Update(ctx context.Context, productType *ProductType) error {
	if err := productType.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	productType.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE product_types SET name = ?, updated_at = ? WHERE id = ?`,
		productType.Name, now, productType.ID,
	)
	if err != nil {
		return fmt.Errorf("updating product type: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProductTypeNotFound
	}
	return nil
}

// Delete removes a product type. A type still referenced by products is
// rejected with ErrProductTypeInUse.
func (r *SQLiteProductTypeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM product_types WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductTypeInUse
		}
		return fmt.Errorf("deleting product type: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrProductTypeNotFound
	}
	return nil
}

func scanProductType(s scanner) (*ProductType, error) {
	var pt ProductType
	var createdAt, updatedAt string

	err := s.Scan(&pt.ID, &pt.Name, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductTypeNotFound
		}
		return nil, fmt.Errorf("scanning product type: %w", err)
	}

	pt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	pt.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &pt, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// isForeignKeyViolation checks if a SQLite error is a FOREIGN KEY constraint
// violation.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
