package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paperbloom/internal/domain"

	"go.uber.org/zap"
)

// Fetcher retrieves the raw catalog from its upstream source.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]domain.RawProduct, error)
}

// Store holds the full product catalog and a derived filtered/sorted view.
// The catalog is fetched once; everything after that is in-memory
// computation driven by filter updates.
type Store struct {
	fetcher   Fetcher
	logger    *zap.Logger
	debouncer *Debouncer

	mu          sync.Mutex
	products    []*domain.Product
	filtered    []*domain.Product
	criteria    Criteria
	initialized bool
	fetching    bool
	fetchErr    error
}

// NewStore creates a catalog store. Filter recomputation is debounced by the
// given delay so bursts of SetFilters calls collapse into one recompute; a
// non-positive delay recomputes synchronously.
func NewStore(fetcher Fetcher, debounce time.Duration, logger *zap.Logger) *Store {
	return &Store{
		fetcher:   fetcher,
		logger:    logger,
		debouncer: NewDebouncer(debounce),
		criteria:  DefaultCriteria(),
		filtered:  []*domain.Product{},
	}
}

// FetchProducts loads the catalog from the fetcher. It is idempotent: once a
// fetch has succeeded, or while one is in flight, the call is a no-op. On
// failure the error is recorded and the store stays uninitialized so a retry
// can succeed. Malformed records are logged and dropped individually; they
// never fail the batch.
func (s *Store) FetchProducts(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized || s.fetching {
		s.mu.Unlock()
		return nil
	}
	s.fetching = true
	s.mu.Unlock()

	raws, err := s.fetcher.FetchProducts(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false

	if err != nil {
		s.fetchErr = fmt.Errorf("failed to fetch catalog: %w", err)
		s.logger.Error("Catalog fetch failed", zap.Error(err))
		return s.fetchErr
	}

	products := make([]*domain.Product, 0, len(raws))
	for _, raw := range raws {
		product, convErr := domain.ProductFromRecord(raw)
		if convErr != nil {
			s.logger.Warn("Dropping malformed catalog record",
				zap.String("product_id", raw.ID),
				zap.String("category", raw.Category),
				zap.Error(convErr),
			)
			continue
		}
		products = append(products, product)
	}

	s.products = products
	s.initialized = true
	s.fetchErr = nil
	s.recomputeLocked()

	s.logger.Info("Catalog loaded",
		zap.Int("records", len(raws)),
		zap.Int("products", len(products)),
	)
	return nil
}

// SetFilters shallow-merges the update into the current criteria and
// schedules a debounced recompute. The view that eventually materializes
// always reflects the latest merged criteria.
func (s *Store) SetFilters(update Update) {
	s.mu.Lock()
	update.Apply(&s.criteria)
	s.mu.Unlock()

	s.debouncer.Schedule(s.recompute)
}

// ClearFilters resets the criteria to defaults and recomputes immediately.
func (s *Store) ClearFilters() {
	s.mu.Lock()
	s.criteria = DefaultCriteria()
	s.recomputeLocked()
	s.mu.Unlock()

	s.debouncer.Stop()
}

// FlushFilters forces any pending debounced recompute to run now.
func (s *Store) FlushFilters() {
	s.debouncer.Flush()
}

// Close cancels any pending recompute.
func (s *Store) Close() {
	s.debouncer.Stop()
}

func (s *Store) recompute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

// recomputeLocked rebuilds the derived view from the full product list and
// the current criteria. A predicate failure on one product excludes that
// product only; the view itself always materializes.
func (s *Store) recomputeLocked() {
	filtered := make([]*domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if s.safeMatches(product) {
			filtered = append(filtered, product)
		}
	}
	sortProducts(filtered, s.criteria.Sort)
	s.filtered = filtered
}

// safeMatches treats a panicking predicate as non-matching.
func (s *Store) safeMatches(p *domain.Product) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Filter predicate failed for product",
				zap.String("product_id", p.ID.String()),
				zap.Any("error", r),
			)
			matched = false
		}
	}()
	return s.criteria.Matches(p)
}

// Products returns a copy of the full catalog.
func (s *Store) Products() []*domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// FilteredProducts returns a copy of the current derived view.
func (s *Store) FilteredProducts() []*domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Product, len(s.filtered))
	copy(out, s.filtered)
	return out
}

// Criteria returns the current filter criteria snapshot.
func (s *Store) Criteria() Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Initialized reports whether a catalog fetch has succeeded.
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// FetchErr returns the error recorded by the last failed fetch, if any.
func (s *Store) FetchErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchErr
}

// UniqueGenres lists the distinct genres across book products.
func (s *Store) UniqueGenres() []string {
	return s.uniqueValues(domain.CategoryBook, func(p *domain.Product) []string {
		return []string{p.Book.Genre}
	})
}

// UniqueLanguages lists the distinct languages across book products.
func (s *Store) UniqueLanguages() []string {
	return s.uniqueValues(domain.CategoryBook, func(p *domain.Product) []string {
		return []string{p.Book.Language}
	})
}

// UniquePublishers lists the distinct publishers across book products.
func (s *Store) UniquePublishers() []string {
	return s.uniqueValues(domain.CategoryBook, func(p *domain.Product) []string {
		return []string{p.Book.Publisher}
	})
}

// UniqueBrands lists the distinct brands across stationery products.
func (s *Store) UniqueBrands() []string {
	return s.uniqueValues(domain.CategoryStationery, func(p *domain.Product) []string {
		return []string{p.Stationery.Brand}
	})
}

// UniqueMaterials lists the distinct materials across stationery products.
func (s *Store) UniqueMaterials() []string {
	return s.uniqueValues(domain.CategoryStationery, func(p *domain.Product) []string {
		return []string{p.Stationery.Material}
	})
}

// UniqueStationeryTypes lists the distinct sub-types across stationery.
func (s *Store) UniqueStationeryTypes() []string {
	return s.uniqueValues(domain.CategoryStationery, func(p *domain.Product) []string {
		return []string{p.Stationery.Type}
	})
}

// UniqueStationeryColors lists the distinct colors across stationery.
func (s *Store) UniqueStationeryColors() []string {
	return s.uniqueValues(domain.CategoryStationery, func(p *domain.Product) []string {
		return p.Stationery.Colors
	})
}

// UniqueFlowerColors lists the distinct colors across flower products.
func (s *Store) UniqueFlowerColors() []string {
	return s.uniqueValues(domain.CategoryFlower, func(p *domain.Product) []string {
		return []string{p.Flower.Color}
	})
}

// UniqueSeasons lists the distinct seasons across flower products.
func (s *Store) UniqueSeasons() []string {
	return s.uniqueValues(domain.CategoryFlower, func(p *domain.Product) []string {
		return []string{p.Flower.Season}
	})
}

// uniqueValues collects distinct non-empty facet values across products of
// one category. Products with the wrong or missing detail payload are
// skipped, so a malformed field never produces an empty entry.
func (s *Store) uniqueValues(category domain.Category, extract func(*domain.Product) []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	values := []string{}
	for _, product := range s.products {
		if product.Category != category {
			continue
		}
		switch category {
		case domain.CategoryBook:
			if product.Book == nil {
				continue
			}
		case domain.CategoryStationery:
			if product.Stationery == nil {
				continue
			}
		case domain.CategoryFlower:
			if product.Flower == nil {
				continue
			}
		}
		for _, value := range extract(product) {
			if value == "" {
				continue
			}
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			values = append(values, value)
		}
	}
	return values
}
