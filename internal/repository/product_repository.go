package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"spyshop-admin/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrProductConflict indicates the row was concurrently modified or
	// deleted between read and write (version mismatch).
	ErrProductConflict = errors.New("product was modified concurrently")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context) ([]*domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product and assigns the database-generated identity
// and initial version back onto the entity.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (name, description, photo_url, price, sort_number, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, version
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Description,
		product.PhotoURL,
		product.Price,
		product.SortNumber,
		product.CategoryID,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID, &product.Version)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update overwrites all mutable fields of an existing product. The version
// read earlier must still match; zero rows affected means the row was
// concurrently modified or deleted and the caller decides which.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $3, description = $4, photo_url = $5, price = $6,
		    sort_number = $7, category_id = $8, updated_at = $9,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Version,
		product.Name,
		product.Description,
		product.PhotoURL,
		product.Price,
		product.SortNumber,
		product.CategoryID,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductConflict
	}

	product.Version++
	return nil
}

// Delete removes a product row
func (r *productRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID with its category eagerly loaded
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT p.id, p.name, p.description, p.photo_url, p.price, p.sort_number,
		       p.category_id, p.version, p.created_at, p.updated_at,
		       c.id, c.name, c.created_at
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`

	product := &domain.Product{}
	category := &domain.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.PhotoURL,
		&product.Price,
		&product.SortNumber,
		&product.CategoryID,
		&product.Version,
		&product.CreatedAt,
		&product.UpdatedAt,
		&category.ID,
		&category.Name,
		&category.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	product.Category = category
	return product, nil
}

// Exists reports whether a product row with the given ID is present.
// Used to demote update conflicts on vanished rows to not-found.
func (r *productRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}

	return exists, nil
}

// List retrieves all products in the default display order
func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, name, description, photo_url, price, sort_number,
		       category_id, version, created_at, updated_at
		FROM products
		ORDER BY sort_number ASC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Description,
			&product.PhotoURL,
			&product.Price,
			&product.SortNumber,
			&product.CategoryID,
			&product.Version,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
