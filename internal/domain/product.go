package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category tags the three product variants carried by the catalog.
type Category string

const (
	CategoryBook       Category = "book"
	CategoryStationery Category = "stationery"
	CategoryFlower     Category = "flower"
)

var (
	ErrUnknownCategory = errors.New("unknown product category")
	ErrDetailsMismatch = errors.New("product details do not match category")
	ErrMissingDetails  = errors.New("product details missing")
	ErrInvalidPrice    = errors.New("product price must be non-negative")
	ErrInvalidStock    = errors.New("product stock must be non-negative")
	ErrInvalidDiscount = errors.New("product discount must be between 0 and 100")
	ErrMissingName     = errors.New("product name missing")
)

// ParseCategory normalizes a raw category tag. The upstream catalog spells
// the stationery tag both ways, so both are accepted on input.
func ParseCategory(tag string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "book":
		return CategoryBook, nil
	case "stationery", "stationary":
		return CategoryStationery, nil
	case "flower":
		return CategoryFlower, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, tag)
	}
}

// Rating is the aggregate review score carried by every product.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// BookDetails is the variant payload for book products.
type BookDetails struct {
	Author          string `json:"author"`
	Genre           string `json:"genre"`
	Language        string `json:"language"`
	Publisher       string `json:"publisher"`
	Pages           int    `json:"pages"`
	PublicationYear int    `json:"publication_year"`
	ISBN            string `json:"isbn"`
}

// StationeryDetails is the variant payload for stationery products.
type StationeryDetails struct {
	Brand    string   `json:"brand"`
	Type     string   `json:"type"`
	Material string   `json:"material"`
	Colors   []string `json:"colors"`
}

// FlowerDetails is the variant payload for flower products.
type FlowerDetails struct {
	Color        string `json:"color"`
	Season       string `json:"season"`
	Freshness    int    `json:"freshness"`
	LifespanDays int    `json:"lifespan_days"`
}

// Product is the unified catalog entry. Exactly one of Book, Stationery or
// Flower is non-nil, and it always matches Category. Construct products via
// ProductFromRecord so that invariant holds.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	Discount  float64   `json:"discount"`
	Rating    Rating    `json:"rating"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`

	Book       *BookDetails       `json:"book,omitempty"`
	Stationery *StationeryDetails `json:"stationery,omitempty"`
	Flower     *FlowerDetails     `json:"flower,omitempty"`
}

// RawProduct is the wire shape of a catalog record: common fields plus an
// untyped details payload interpreted according to the category tag.
type RawProduct struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     float64         `json:"price"`
	Stock     int             `json:"stock"`
	Discount  float64         `json:"discount"`
	Rating    Rating          `json:"rating"`
	ImageURL  string          `json:"image_url"`
	CreatedAt time.Time       `json:"created_at"`
	Details   json.RawMessage `json:"details"`
}

// ProductFromRecord converts a raw catalog record into a Product. It is
// total: every malformed record yields a nil product and a descriptive
// error, never a partially-typed product. Records whose details payload
// does not match the declared category tag are rejected.
func ProductFromRecord(raw RawProduct) (*Product, error) {
	id, err := uuid.Parse(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", raw.ID, err)
	}

	if strings.TrimSpace(raw.Name) == "" {
		return nil, ErrMissingName
	}
	if raw.Price < 0 {
		return nil, ErrInvalidPrice
	}
	if raw.Stock < 0 {
		return nil, ErrInvalidStock
	}
	if raw.Discount < 0 || raw.Discount > 100 {
		return nil, ErrInvalidDiscount
	}

	category, err := ParseCategory(raw.Category)
	if err != nil {
		return nil, err
	}

	product := &Product{
		ID:        id,
		Name:      raw.Name,
		Category:  category,
		Price:     raw.Price,
		Stock:     raw.Stock,
		Discount:  raw.Discount,
		Rating:    raw.Rating,
		ImageURL:  raw.ImageURL,
		CreatedAt: raw.CreatedAt,
	}

	if len(raw.Details) == 0 || string(raw.Details) == "null" {
		return nil, ErrMissingDetails
	}

	switch category {
	case CategoryBook:
		var details BookDetails
		if err := json.Unmarshal(raw.Details, &details); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDetailsMismatch, err)
		}
		if details.Author == "" {
			return nil, fmt.Errorf("%w: book without author", ErrDetailsMismatch)
		}
		product.Book = &details
	case CategoryStationery:
		var details StationeryDetails
		if err := json.Unmarshal(raw.Details, &details); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDetailsMismatch, err)
		}
		if details.Brand == "" {
			return nil, fmt.Errorf("%w: stationery without brand", ErrDetailsMismatch)
		}
		product.Stationery = &details
	case CategoryFlower:
		var details FlowerDetails
		if err := json.Unmarshal(raw.Details, &details); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDetailsMismatch, err)
		}
		if details.Color == "" {
			return nil, fmt.Errorf("%w: flower without color", ErrDetailsMismatch)
		}
		product.Flower = &details
	}

	return product, nil
}

// Record converts a Product back to its wire shape.
func (p *Product) Record() (RawProduct, error) {
	var payload interface{}
	switch p.Category {
	case CategoryBook:
		if p.Book != nil {
			payload = p.Book
		}
	case CategoryStationery:
		if p.Stationery != nil {
			payload = p.Stationery
		}
	case CategoryFlower:
		if p.Flower != nil {
			payload = p.Flower
		}
	}
	if payload == nil {
		return RawProduct{}, ErrMissingDetails
	}

	details, err := json.Marshal(payload)
	if err != nil {
		return RawProduct{}, fmt.Errorf("failed to marshal product details: %w", err)
	}

	return RawProduct{
		ID:        p.ID.String(),
		Name:      p.Name,
		Category:  string(p.Category),
		Price:     p.Price,
		Stock:     p.Stock,
		Discount:  p.Discount,
		Rating:    p.Rating,
		ImageURL:  p.ImageURL,
		CreatedAt: p.CreatedAt,
		Details:   details,
	}, nil
}

// EffectivePrice returns the discounted unit price when a discount is set,
// otherwise the list price.
func (p *Product) EffectivePrice() float64 {
	if p.Discount > 0 {
		return p.Price * (1 - p.Discount/100)
	}
	return p.Price
}

// InStock reports whether the product has at least one sellable unit.
func (p *Product) InStock() bool {
	return p.Stock > 0
}
