package domain

import (
	"github.com/google/uuid"
)

// LineItem is one product entry in a cart. Stock is the number of units that
// could still be reserved for this line as of the last sync with the
// inventory source, not the server's authoritative stock. MaxStock is the
// highest quantity the line can reach without a fresh reservation, so
// Quantity + Stock == MaxStock holds at all times.
type LineItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url"`
	Price     float64   `json:"price"`
	Discount  float64   `json:"discount"`
	Category  Category  `json:"category"`
	Quantity  int       `json:"quantity"`
	Stock     int       `json:"stock"`
	MaxStock  int       `json:"max_stock"`
}

// NewLineItem builds the initial line for a product whose first unit has
// just been reserved: quantity 1, with the server stock at reservation time
// as the reachable ceiling.
func NewLineItem(p *Product) LineItem {
	return LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		ImageURL:  p.ImageURL,
		Price:     p.Price,
		Discount:  p.Discount,
		Category:  p.Category,
		Quantity:  1,
		Stock:     p.Stock - 1,
		MaxStock:  p.Stock,
	}
}

// EffectivePrice returns the discounted unit price when a discount is set,
// otherwise the list price.
func (li LineItem) EffectivePrice() float64 {
	if li.Discount > 0 {
		return li.Price * (1 - li.Discount/100)
	}
	return li.Price
}

// Subtotal is the effective price of the line across its quantity.
func (li LineItem) Subtotal() float64 {
	return li.EffectivePrice() * float64(li.Quantity)
}

// DiscountAmount is how much the discount saves across the line's quantity.
func (li LineItem) DiscountAmount() float64 {
	if li.Discount <= 0 {
		return 0
	}
	return (li.Price - li.EffectivePrice()) * float64(li.Quantity)
}

// Resync recomputes the line's reservation bookkeeping from a fresh
// authoritative server stock, keeping the locally chosen quantity. The
// server stock excludes units this line already holds, so the new ceiling
// is serverStock + Quantity.
func (li *LineItem) Resync(serverStock int) {
	if serverStock < 0 {
		serverStock = 0
	}
	li.MaxStock = serverStock + li.Quantity
	li.Stock = serverStock
}
