package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperbloom/internal/domain"
	"paperbloom/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("not enough stock available")
	ErrInvalidProduct    = errors.New("invalid product record")
)

// ProductService defines the business logic over the product catalog,
// including the reservation operations the cart collaborates with.
type ProductService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Create(ctx context.Context, record domain.RawProduct) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, record domain.RawProduct) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Reserve places a hold on quantity units. It fails closed: the hold
	// exists only when the returned error is nil.
	Reserve(ctx context.Context, id uuid.UUID, quantity int) error

	// Release returns quantity units to the available pool.
	Release(ctx context.Context, id uuid.UUID, quantity int) error

	// StockLevels reports current stock for the given products.
	StockLevels(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
}

type productService struct {
	productRepo repository.ProductRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

// List returns the full catalog
func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Get returns one product by id
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create validates the record through the total conversion and stores it.
// A fresh id and creation timestamp are assigned when absent.
func (s *productService) Create(ctx context.Context, record domain.RawProduct) (*domain.Product, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	product, err := domain.ProductFromRecord(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// Update replaces a product's fields, keeping its identity
func (s *productService) Update(ctx context.Context, id uuid.UUID, record domain.RawProduct) (*domain.Product, error) {
	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	record.ID = id.String()
	record.CreatedAt = existing.CreatedAt

	product, err := domain.ProductFromRecord(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// Delete removes a product
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.productRepo.Delete(ctx, id)
}

// Reserve holds quantity units of a product for a cart
func (s *productService) Reserve(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	reserved, err := s.productRepo.Reserve(ctx, id, quantity)
	if err != nil {
		return err
	}
	if !reserved {
		return ErrInsufficientStock
	}
	return nil
}

// Release returns previously held units to stock
func (s *productService) Release(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.productRepo.Release(ctx, id, quantity)
}

// StockLevels reports current stock for the given products
func (s *productService) StockLevels(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	levels, err := s.productRepo.StockByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock levels: %w", err)
	}
	return levels, nil
}
