package cart

import (
	"context"
	"sync"
	"time"

	"paperbloom/internal/domain"
	"paperbloom/internal/inventory"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Messages surfaced to the user on reservation failures.
const (
	MsgOutOfStock     = "Product out of stock!"
	MsgNotEnoughStock = "Not enough stock available!"
	MsgItemNotInCart  = "Item not found in cart."
)

// Result is the structured outcome of a user-initiated cart operation.
// Failures are values, never panics, so callers can render them inline.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok() Result             { return Result{Success: true} }
func fail(msg string) Result { return Result{Success: false, Message: msg} }

// Store maintains the active identity's cart, coordinates stock
// reservations with the inventory collaborator, and mirrors every mutation
// to durable storage. Network calls happen outside the lock; only the
// synchronous sections touch shared state.
type Store struct {
	inventory inventory.Client
	storage   Storage
	logger    *zap.Logger

	mu       sync.Mutex
	identity string
	items    []domain.LineItem
}

// NewStore creates a cart store and loads the guest cart from storage. A
// storage failure degrades to an empty cart; memory stays authoritative for
// the session.
func NewStore(ctx context.Context, inv inventory.Client, storage Storage, logger *zap.Logger) *Store {
	s := &Store{
		inventory: inv,
		storage:   storage,
		logger:    logger,
	}

	items, err := storage.Load(ctx, StorageKey(""))
	if err != nil {
		logger.Warn("Failed to load guest cart, starting empty", zap.Error(err))
	}
	s.items = items
	return s
}

// AddItem puts one unit of the product in the cart, reserving it with the
// inventory collaborator first. Adding an item already in the cart reserves
// one more unit, bounded by the line's reachable ceiling; the bound is
// checked before any network call.
func (s *Store) AddItem(ctx context.Context, product *domain.Product) Result {
	s.mu.Lock()
	if line, found := s.findLocked(product.ID); found {
		if line.Quantity+1 > line.MaxStock {
			s.mu.Unlock()
			return fail(MsgNotEnoughStock)
		}
		target := line.Quantity + 1
		s.mu.Unlock()
		return s.reserveDelta(ctx, product.ID, target)
	}

	if !product.InStock() {
		s.mu.Unlock()
		return fail(MsgOutOfStock)
	}
	s.mu.Unlock()

	granted, message := s.inventory.Reserve(ctx, product.ID, 1)
	if !granted {
		if message == "" {
			message = MsgNotEnoughStock
		}
		return fail(message)
	}

	s.mu.Lock()
	if line, found := s.findLocked(product.ID); found {
		// Another add for the same product won the race; fold this
		// reservation into the existing line.
		line.Quantity++
		line.MaxStock++
		s.persistLocked(ctx)
		s.mu.Unlock()
		return ok()
	}
	s.items = append(s.items, domain.NewLineItem(product))
	s.persistLocked(ctx)
	s.mu.Unlock()
	return ok()
}

// UpdateQuantity moves a line to the target quantity. Targets at or below
// zero remove the line. Increases reserve the delta all-or-nothing;
// decreases release the delta best-effort, applying the local change
// regardless of the release outcome.
func (s *Store) UpdateQuantity(ctx context.Context, productID uuid.UUID, target int) Result {
	if target <= 0 {
		s.RemoveItem(ctx, productID)
		return ok()
	}

	s.mu.Lock()
	line, found := s.findLocked(productID)
	if !found {
		s.mu.Unlock()
		return fail(MsgItemNotInCart)
	}

	current := line.Quantity
	if target == current {
		s.mu.Unlock()
		return ok()
	}

	if target > current {
		if target > line.MaxStock {
			s.mu.Unlock()
			return fail(MsgNotEnoughStock)
		}
		s.mu.Unlock()
		return s.reserveDelta(ctx, productID, target)
	}

	s.mu.Unlock()

	if !s.inventory.Release(ctx, productID, current-target) {
		s.logger.Warn("Release failed, applying local quantity change anyway",
			zap.String("product_id", productID.String()),
			zap.Int("released", current-target),
		)
	}

	s.mu.Lock()
	if line, found := s.findLocked(productID); found {
		line.Quantity = target
		line.Stock = line.MaxStock - target
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	return ok()
}

// reserveDelta reserves up to the target quantity for an existing line and
// applies the change only if the whole delta was granted.
func (s *Store) reserveDelta(ctx context.Context, productID uuid.UUID, target int) Result {
	s.mu.Lock()
	line, found := s.findLocked(productID)
	if !found {
		s.mu.Unlock()
		return fail(MsgItemNotInCart)
	}
	delta := target - line.Quantity
	s.mu.Unlock()
	if delta <= 0 {
		return ok()
	}

	granted, message := s.inventory.Reserve(ctx, productID, delta)
	if !granted {
		if message == "" {
			message = MsgNotEnoughStock
		}
		return fail(message)
	}

	s.mu.Lock()
	if line, found := s.findLocked(productID); found {
		line.Quantity = target
		line.Stock = line.MaxStock - target
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	return ok()
}

// RemoveItem releases the line's full held quantity and deletes it. The
// deletion applies whether or not the release call succeeds.
func (s *Store) RemoveItem(ctx context.Context, productID uuid.UUID) {
	s.mu.Lock()
	line, found := s.findLocked(productID)
	if !found {
		s.mu.Unlock()
		return
	}
	held := line.Quantity
	s.mu.Unlock()

	if !s.inventory.Release(ctx, productID, held) {
		s.logger.Warn("Release on remove failed, deleting line anyway",
			zap.String("product_id", productID.String()),
			zap.Int("released", held),
		)
	}

	s.mu.Lock()
	s.deleteLocked(productID)
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// Clear empties the cart. Outside a purchase every line's quantity is
// released back to inventory first, best-effort per line. At the tail of a
// completed purchase reservations are intentionally kept; they convert to a
// real decrement on the order side.
func (s *Store) Clear(ctx context.Context, isPurchase bool) {
	s.mu.Lock()
	held := make([]domain.LineItem, len(s.items))
	copy(held, s.items)
	s.mu.Unlock()

	if !isPurchase {
		for _, line := range held {
			if !s.inventory.Release(ctx, line.ProductID, line.Quantity) {
				s.logger.Warn("Release on clear failed",
					zap.String("product_id", line.ProductID.String()),
					zap.Int("released", line.Quantity),
				)
			}
		}
	}

	s.mu.Lock()
	s.items = nil
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// Sync re-fetches authoritative stock for every held product and recomputes
// each line's reservation bookkeeping around the locally held quantity. A
// transport failure skips the cycle; the next tick reconciles.
func (s *Store) Sync(ctx context.Context) {
	s.mu.Lock()
	ids := make([]uuid.UUID, len(s.items))
	for i, line := range s.items {
		ids[i] = line.ProductID
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	levels, err := s.inventory.StockLevels(ctx, ids)
	if err != nil {
		s.logger.Warn("Stock sync skipped", zap.Error(err))
		return
	}

	s.mu.Lock()
	for i := range s.items {
		if stock, known := levels[s.items[i].ProductID]; known {
			s.items[i].Resync(stock)
		}
	}
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// StartSyncLoop re-syncs on the given interval until ctx is done.
func (s *Store) StartSyncLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sync(ctx)
			}
		}
	}()
}

// SetIdentity switches the active cart to the given user identity (empty
// string means guest). The outgoing cart is persisted under its own key and
// the incoming identity's stored cart, or an empty one, becomes active. A
// sync follows immediately to reconcile stock.
func (s *Store) SetIdentity(ctx context.Context, userID string) {
	s.mu.Lock()
	if s.identity == userID {
		s.mu.Unlock()
		return
	}

	s.persistLocked(ctx)

	items, err := s.storage.Load(ctx, StorageKey(userID))
	if err != nil {
		s.logger.Warn("Failed to load cart for identity, starting empty",
			zap.String("storage_key", StorageKey(userID)),
			zap.Error(err),
		)
		items = nil
	}
	s.identity = userID
	s.items = items
	s.mu.Unlock()

	s.Sync(ctx)
}

// Identity returns the active user identity, empty for guest.
func (s *Store) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Items returns a copy of the cart's line items.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Item looks up a line by product id.
func (s *Store) Item(productID uuid.UUID) (domain.LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if line, found := s.findLocked(productID); found {
		return *line, true
	}
	return domain.LineItem{}, false
}

// TotalItems is the sum of quantities across all lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, line := range s.items {
		total += line.Quantity
	}
	return total
}

// TotalPrice is the sum of effective line subtotals.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, line := range s.items {
		total += line.Subtotal()
	}
	return total
}

// TotalDiscount is the amount saved across the cart.
func (s *Store) TotalDiscount() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, line := range s.items {
		total += line.DiscountAmount()
	}
	return total
}

// DiscountPercent is the cart-wide saving as a percentage of the
// undiscounted total. An empty or undiscounted cart reports zero.
func (s *Store) DiscountPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gross := 0.0
	saved := 0.0
	for _, line := range s.items {
		gross += line.Price * float64(line.Quantity)
		saved += line.DiscountAmount()
	}
	if gross <= 0 {
		return 0
	}
	return saved / gross * 100
}

func (s *Store) findLocked(productID uuid.UUID) (*domain.LineItem, bool) {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return &s.items[i], true
		}
	}
	return nil, false
}

func (s *Store) deleteLocked(productID uuid.UUID) {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// persistLocked mirrors the current cart to durable storage. Persistence
// failures are logged; in-memory state stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.storage.Save(ctx, StorageKey(s.identity), s.items); err != nil {
		s.logger.Warn("Failed to persist cart",
			zap.String("storage_key", StorageKey(s.identity)),
			zap.Error(err),
		)
	}
}
