package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"artisan-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for catalog data access. Products
// are immutable after creation; listing order is insertion order
// (created_at, then id as a tiebreaker).
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	// List returns a page of products in insertion order plus the total
	// count. Offset semantics: a page observed while rows are inserted
	// concurrently may shift; callers needing a fixed reference use the
	// product ID, never the position.
	List(ctx context.Context, limit, offset int) ([]*domain.Product, int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// ByOrdinal returns the record at insertion position n, counting from
	// zero. Kept for ordinal addressing of the catalog; O(n) per lookup.
	ByOrdinal(ctx context.Context, n int) (*domain.Product, error)
	Count(ctx context.Context) (int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `
	id, name, price, artisan_email, image_key, image_filename,
	model_key, model_filename, story, color_options, material_options,
	design_options, created_at
`

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (
			id, name, price, artisan_email, image_key, image_filename,
			model_key, model_filename, story, color_options, material_options,
			design_options, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.ArtisanEmail,
		product.Image.Key,
		product.Image.Filename,
		product.Model.Key,
		product.Model.Filename,
		product.Story,
		product.Customization.Color,
		product.Customization.Material,
		product.Customization.Design,
		product.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// List retrieves a page of products in insertion order with the total count
func (r *productRepository) List(ctx context.Context, limit, offset int) ([]*domain.Product, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`, productColumns)

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// FindByID retrieves a product by its stable identifier
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE id = $1
	`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	return product, nil
}

// ByOrdinal retrieves the product at insertion position n
func (r *productRepository) ByOrdinal(ctx context.Context, n int) (*domain.Product, error) {
	if n < 0 {
		return nil, ErrProductNotFound
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		ORDER BY created_at ASC, id ASC
		LIMIT 1 OFFSET $1
	`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, n))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	return product, nil
}

// Count returns the number of products in the catalog
func (r *productRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.ArtisanEmail,
		&product.Image.Key,
		&product.Image.Filename,
		&product.Model.Key,
		&product.Model.Filename,
		&product.Story,
		&product.Customization.Color,
		&product.Customization.Material,
		&product.Customization.Design,
		&product.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return product, nil
}
