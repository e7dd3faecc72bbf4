package catalog

import (
	"sort"
	"strings"

	"paperbloom/internal/domain"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the ordering of the derived view.
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByPriceAsc  SortKey = "price_asc"
	SortByPriceDesc SortKey = "price_desc"
	SortByRating    SortKey = "rating"
	SortByNewest    SortKey = "newest"
)

// StockFilter selects the availability predicate.
type StockFilter string

const (
	StockAll        StockFilter = "all"
	StockInStock    StockFilter = "in_stock"
	StockOutOfStock StockFilter = "out_of_stock"
)

// CategoryAll is the category selector meaning "no category constraint".
const CategoryAll domain.Category = "all"

// PriceRange is an inclusive price band. Max <= 0 means unbounded above.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// IntRange is an inclusive integer band. Max <= 0 means unbounded above.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r IntRange) contains(v int) bool {
	if v < r.Min {
		return false
	}
	return r.Max <= 0 || v <= r.Max
}

// BookFacets are the filter dimensions applied to book products only.
type BookFacets struct {
	Genre     string   `json:"genre"`
	Author    string   `json:"author"`
	Language  string   `json:"language"`
	Publisher string   `json:"publisher"`
	Years     IntRange `json:"years"`
	Pages     IntRange `json:"pages"`
}

// StationeryFacets are the filter dimensions applied to stationery only.
type StationeryFacets struct {
	Brand    string `json:"brand"`
	Color    string `json:"color"`
	Material string `json:"material"`
	Type     string `json:"type"`
}

// FlowerFacets are the filter dimensions applied to flowers only.
type FlowerFacets struct {
	Color     string   `json:"color"`
	Season    string   `json:"season"`
	Freshness IntRange `json:"freshness"`
	Lifespan  IntRange `json:"lifespan"`
}

// Criteria is the full declarative filter/sort state. Facets belonging to a
// category other than the selected one stay stored but are only applied to
// products of their own category.
type Criteria struct {
	Search         string           `json:"search"`
	Category       domain.Category  `json:"category"`
	Price          PriceRange       `json:"price"`
	MinRating      float64          `json:"min_rating"`
	Stock          StockFilter      `json:"stock"`
	DiscountedOnly bool             `json:"discounted_only"`
	Sort           SortKey          `json:"sort"`
	Book           BookFacets       `json:"book"`
	Stationery     StationeryFacets `json:"stationery"`
	Flower         FlowerFacets     `json:"flower"`
}

// DefaultCriteria returns the unconstrained criteria: every product matches
// and the view is sorted by name.
func DefaultCriteria() Criteria {
	return Criteria{
		Category: CategoryAll,
		Stock:    StockAll,
		Sort:     SortByName,
	}
}

// Update is a partial criteria change; nil fields leave the current value
// untouched. Facet groups are replaced wholesale when set, matching the
// shallow-merge semantics of SetFilters.
type Update struct {
	Search         *string
	Category       *domain.Category
	Price          *PriceRange
	MinRating      *float64
	Stock          *StockFilter
	DiscountedOnly *bool
	Sort           *SortKey
	Book           *BookFacets
	Stationery     *StationeryFacets
	Flower         *FlowerFacets
}

// Apply merges the update into the criteria.
func (u Update) Apply(c *Criteria) {
	if u.Search != nil {
		c.Search = *u.Search
	}
	if u.Category != nil {
		c.Category = *u.Category
	}
	if u.Price != nil {
		c.Price = *u.Price
	}
	if u.MinRating != nil {
		c.MinRating = *u.MinRating
	}
	if u.Stock != nil {
		c.Stock = *u.Stock
	}
	if u.DiscountedOnly != nil {
		c.DiscountedOnly = *u.DiscountedOnly
	}
	if u.Sort != nil {
		c.Sort = *u.Sort
	}
	if u.Book != nil {
		c.Book = *u.Book
	}
	if u.Stationery != nil {
		c.Stationery = *u.Stationery
	}
	if u.Flower != nil {
		c.Flower = *u.Flower
	}
}

// Matches reports whether the product passes every active predicate.
func (c Criteria) Matches(p *domain.Product) bool {
	if c.Category != "" && c.Category != CategoryAll && p.Category != c.Category {
		return false
	}

	if !c.matchesSearch(p) {
		return false
	}

	if p.Price < c.Price.Min {
		return false
	}
	if c.Price.Max > 0 && p.Price > c.Price.Max {
		return false
	}

	if c.MinRating > 0 && p.Rating.Average < c.MinRating {
		return false
	}

	switch c.Stock {
	case StockInStock:
		if p.Stock <= 0 {
			return false
		}
	case StockOutOfStock:
		if p.Stock > 0 {
			return false
		}
	}

	if c.DiscountedOnly && p.Discount <= 0 {
		return false
	}

	// Facets constrain only products of their own category.
	switch p.Category {
	case domain.CategoryBook:
		return c.matchesBook(p.Book)
	case domain.CategoryStationery:
		return c.matchesStationery(p.Stationery)
	case domain.CategoryFlower:
		return c.matchesFlower(p.Flower)
	}
	return true
}

func (c Criteria) matchesSearch(p *domain.Product) bool {
	query := strings.TrimSpace(c.Search)
	if query == "" {
		return true
	}
	query = strings.ToLower(query)

	if strings.Contains(strings.ToLower(p.Name), query) {
		return true
	}
	switch {
	case p.Book != nil:
		if strings.Contains(strings.ToLower(p.Book.Author), query) {
			return true
		}
	case p.Stationery != nil:
		if strings.Contains(strings.ToLower(p.Stationery.Brand), query) {
			return true
		}
		for _, color := range p.Stationery.Colors {
			if strings.Contains(strings.ToLower(color), query) {
				return true
			}
		}
	case p.Flower != nil:
		if strings.Contains(strings.ToLower(p.Flower.Color), query) {
			return true
		}
	}
	return false
}

func (c Criteria) matchesBook(d *domain.BookDetails) bool {
	if d == nil {
		return false
	}
	f := c.Book
	if f.Genre != "" && !strings.EqualFold(f.Genre, d.Genre) {
		return false
	}
	if f.Author != "" && !strings.Contains(strings.ToLower(d.Author), strings.ToLower(f.Author)) {
		return false
	}
	if f.Language != "" && !strings.EqualFold(f.Language, d.Language) {
		return false
	}
	if f.Publisher != "" && !strings.EqualFold(f.Publisher, d.Publisher) {
		return false
	}
	if !f.Years.contains(d.PublicationYear) {
		return false
	}
	if !f.Pages.contains(d.Pages) {
		return false
	}
	return true
}

func (c Criteria) matchesStationery(d *domain.StationeryDetails) bool {
	if d == nil {
		return false
	}
	f := c.Stationery
	if f.Brand != "" && !strings.EqualFold(f.Brand, d.Brand) {
		return false
	}
	if f.Material != "" && !strings.EqualFold(f.Material, d.Material) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(f.Type, d.Type) {
		return false
	}
	if f.Color != "" {
		found := false
		for _, color := range d.Colors {
			if strings.EqualFold(f.Color, color) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c Criteria) matchesFlower(d *domain.FlowerDetails) bool {
	if d == nil {
		return false
	}
	f := c.Flower
	if f.Color != "" && !strings.EqualFold(f.Color, d.Color) {
		return false
	}
	if f.Season != "" && !strings.EqualFold(f.Season, d.Season) {
		return false
	}
	if !f.Freshness.contains(d.Freshness) {
		return false
	}
	if !f.Lifespan.contains(d.LifespanDays) {
		return false
	}
	return true
}

// sortProducts orders the slice in place by the given key. The sort is
// stable, so ties keep catalog order.
func sortProducts(products []*domain.Product, key SortKey) {
	switch key {
	case SortByPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case SortByPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case SortByRating:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Rating.Average > products[j].Rating.Average
		})
	case SortByNewest:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	default:
		collator := collate.New(language.English, collate.Loose)
		sort.SliceStable(products, func(i, j int) bool {
			return collator.CompareString(products[i].Name, products[j].Name) < 0
		})
	}
}
