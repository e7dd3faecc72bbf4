package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"paperbloom/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepository defines the interface for product data access,
// including the conditional stock mutations backing reservations.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)

	// Reserve atomically decrements stock by quantity if enough is
	// available, reporting whether the decrement happened.
	Reserve(ctx context.Context, id uuid.UUID, quantity int) (bool, error)

	// Release returns quantity units to stock.
	Release(ctx context.Context, id uuid.UUID, quantity int) error

	// StockByIDs returns current stock for the given product ids. Unknown
	// ids are simply absent from the result.
	StockByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, category, price, stock, discount, rating_average, rating_count, image_url, details, created_at`

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	record, err := product.Record()
	if err != nil {
		return fmt.Errorf("failed to encode product details: %w", err)
	}

	query := `
		INSERT INTO products (id, name, category, price, stock, discount, rating_average, rating_count, image_url, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		string(product.Category),
		product.Price,
		product.Stock,
		product.Discount,
		product.Rating.Average,
		product.Rating.Count,
		product.ImageURL,
		[]byte(record.Details),
		product.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update updates an existing product in the database using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	record, err := product.Record()
	if err != nil {
		return fmt.Errorf("failed to encode product details: %w", err)
	}

	query := `
		UPDATE products
		SET name = $2, category = $3, price = $4, stock = $5, discount = $6,
		    rating_average = $7, rating_count = $8, image_url = $9, details = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		string(product.Category),
		product.Price,
		product.Stock,
		product.Discount,
		product.Rating.Average,
		product.Rating.Count,
		product.ImageURL,
		[]byte(record.Details),
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
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

// Delete removes a product from the database using parameterized queries
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
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

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves the full catalog ordered by creation time
func (r *productRepository) List(ctx context.Context) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY created_at DESC`, productColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
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

// Reserve decrements stock only when enough units remain, in a single
// conditional update so concurrent reservations cannot oversell.
func (r *productRepository) Reserve(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	query := `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return true, nil
	}

	// Distinguish "not enough stock" from "no such product".
	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	if !exists {
		return false, ErrProductNotFound
	}
	return false, nil
}

// Release returns units to stock
func (r *productRepository) Release(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `UPDATE products SET stock = stock + $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
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

// StockByIDs returns current stock levels for the requested ids
func (r *productRepository) StockByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]int{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT id, stock FROM products WHERE id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[uuid.UUID]int, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var stock int
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels[id] = stock
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock levels: %w", err)
	}

	return levels, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProduct reads one product row and rebuilds the typed union through
// the same total conversion used for catalog records, so a corrupt details
// column surfaces as an error instead of a half-typed product.
func scanProduct(row rowScanner) (*domain.Product, error) {
	var raw domain.RawProduct
	var details []byte

	err := row.Scan(
		&raw.ID,
		&raw.Name,
		&raw.Category,
		&raw.Price,
		&raw.Stock,
		&raw.Discount,
		&raw.Rating.Average,
		&raw.Rating.Count,
		&raw.ImageURL,
		&details,
		&raw.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	raw.Details = details

	product, err := domain.ProductFromRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("stored product is malformed: %w", err)
	}
	return product, nil
}
