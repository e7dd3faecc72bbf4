package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"paperbloom/internal/cart"
	"paperbloom/internal/catalog"
	"paperbloom/internal/config"
	"paperbloom/internal/domain"
	"paperbloom/internal/inventory"
	"paperbloom/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// storefront is an interactive shopping session against the inventory API:
// it loads the catalog once, filters it locally, and runs a cart whose stock
// reservations are coordinated with the server.

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inventory client doubles as the catalog source
	client := inventory.NewHTTPClient(cfg.Catalog.SourceURL, log)

	// Cart persistence: Redis when reachable, in-memory otherwise
	storage := newCartStorage(ctx, cfg.Redis, log)

	catalogStore := catalog.NewStore(client, cfg.Catalog.FilterDebounce, log)
	defer catalogStore.Close()

	cartStore := cart.NewStore(ctx, client, storage, log)
	cartStore.StartSyncLoop(ctx, cfg.Cart.SyncInterval)

	if err := catalogStore.FetchProducts(ctx); err != nil {
		log.Fatal("Failed to load catalog", zap.String("source", cfg.Catalog.SourceURL), zap.Error(err))
	}

	sess := &session{
		catalog: catalogStore,
		cart:    cartStore,
		log:     log,
		out:     os.Stdout,
	}
	sess.run(ctx, os.Stdin)
}

// newCartStorage prefers Redis and degrades to process memory when Redis is
// unreachable, so a session still works without infrastructure.
func newCartStorage(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) cart.Storage {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unreachable, cart will not survive this session", zap.Error(err))
		client.Close()
		return cart.NewMemoryStorage()
	}
	return cart.NewRedisStorage(client)
}

type session struct {
	catalog *catalog.Store
	cart    *cart.Store
	log     *zap.Logger
	out     io.Writer
}

func (s *session) run(ctx context.Context, in io.Reader) {
	fmt.Fprintf(s.out, "paperbloom storefront — %d products loaded, type 'help' for commands\n", len(s.catalog.Products()))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		command, args := fields[0], fields[1:]

		switch command {
		case "help":
			s.printHelp()
		case "list":
			s.printProducts()
		case "search":
			term := strings.Join(args, " ")
			s.catalog.SetFilters(catalog.Update{Search: &term})
			s.catalog.FlushFilters()
			s.printProducts()
		case "category":
			s.setCategory(args)
		case "instock":
			f := catalog.StockInStock
			s.catalog.SetFilters(catalog.Update{Stock: &f})
			s.catalog.FlushFilters()
			s.printProducts()
		case "sort":
			s.setSort(args)
		case "clear":
			s.catalog.ClearFilters()
			s.printProducts()
		case "add":
			s.addToCart(ctx, args)
		case "qty":
			s.updateQuantity(ctx, args)
		case "remove":
			s.removeFromCart(ctx, args)
		case "cart":
			s.printCart()
		case "checkout":
			s.cart.Clear(ctx, true)
			fmt.Fprintln(s.out, "Order placed, cart cleared.")
		case "empty":
			s.cart.Clear(ctx, false)
			fmt.Fprintln(s.out, "Cart emptied, held stock returned.")
		case "login":
			if len(args) != 1 {
				fmt.Fprintln(s.out, "usage: login <user-id>")
				continue
			}
			s.cart.SetIdentity(ctx, args[0])
			fmt.Fprintf(s.out, "Now shopping as %s.\n", args[0])
		case "logout":
			s.cart.SetIdentity(ctx, "")
			fmt.Fprintln(s.out, "Now shopping as guest.")
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(s.out, "unknown command %q, type 'help'\n", command)
		}
	}
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, `commands:
  list                   show the filtered catalog
  search <term>          filter by name/author/brand/color
  category <tag>         filter by category (book|stationery|flower|all)
  instock                show only available products
  sort <key>             name|price_asc|price_desc|rating|newest
  clear                  reset all filters
  add <n>                add the n-th listed product to the cart
  qty <n> <count>        set the quantity of the n-th cart line
  remove <n>             remove the n-th cart line
  cart                   show the cart
  checkout               place the order and clear the cart
  empty                  clear the cart, releasing held stock
  login <user-id>        switch to a user's cart
  logout                 switch back to the guest cart
  quit`)
}

func (s *session) setCategory(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: category <book|stationery|flower|all>")
		return
	}

	selected := catalog.CategoryAll
	if args[0] != "all" {
		parsed, err := domain.ParseCategory(args[0])
		if err != nil {
			fmt.Fprintf(s.out, "unknown category %q\n", args[0])
			return
		}
		selected = parsed
	}
	s.catalog.SetFilters(catalog.Update{Category: &selected})
	s.catalog.FlushFilters()
	s.printProducts()
}

func (s *session) setSort(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: sort <name|price_asc|price_desc|rating|newest>")
		return
	}
	key := catalog.SortKey(args[0])
	switch key {
	case catalog.SortByName, catalog.SortByPriceAsc, catalog.SortByPriceDesc, catalog.SortByRating, catalog.SortByNewest:
	default:
		fmt.Fprintf(s.out, "unknown sort key %q\n", args[0])
		return
	}
	s.catalog.SetFilters(catalog.Update{Sort: &key})
	s.catalog.FlushFilters()
	s.printProducts()
}

func (s *session) printProducts() {
	products := s.catalog.FilteredProducts()
	if len(products) == 0 {
		fmt.Fprintln(s.out, "no products match the current filters")
		return
	}
	for i, p := range products {
		fmt.Fprintf(s.out, "%3d. [%s] %s — %.2f (stock %d)\n",
			i+1, p.Category, p.Name, p.EffectivePrice(), p.Stock)
	}
}

func (s *session) addToCart(ctx context.Context, args []string) {
	product, ok := s.pickProduct(args)
	if !ok {
		return
	}

	result := s.cart.AddItem(ctx, product)
	if !result.Success {
		fmt.Fprintln(s.out, result.Message)
		return
	}
	fmt.Fprintf(s.out, "Added %s.\n", product.Name)
}

func (s *session) updateQuantity(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "usage: qty <line> <count>")
		return
	}
	id, ok := s.pickCartLine(args[0])
	if !ok {
		return
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.out, "not a quantity: %q\n", args[1])
		return
	}

	result := s.cart.UpdateQuantity(ctx, id, count)
	if !result.Success {
		fmt.Fprintln(s.out, result.Message)
		return
	}
	s.printCart()
}

func (s *session) removeFromCart(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: remove <line>")
		return
	}
	id, ok := s.pickCartLine(args[0])
	if !ok {
		return
	}
	s.cart.RemoveItem(ctx, id)
	s.printCart()
}

func (s *session) printCart() {
	items := s.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(s.out, "cart is empty")
		return
	}
	for i, line := range items {
		fmt.Fprintf(s.out, "%3d. %s ×%d — %.2f\n", i+1, line.Name, line.Quantity, line.Subtotal())
	}
	fmt.Fprintf(s.out, "total: %.2f", s.cart.TotalPrice())
	if saved := s.cart.TotalDiscount(); saved > 0 {
		fmt.Fprintf(s.out, " (you save %.2f)", saved)
	}
	fmt.Fprintln(s.out)
}

// pickProduct resolves a 1-based index into the filtered view.
func (s *session) pickProduct(args []string) (*domain.Product, bool) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: add <n>")
		return nil, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "not a product number: %q\n", args[0])
		return nil, false
	}
	products := s.catalog.FilteredProducts()
	if n < 1 || n > len(products) {
		fmt.Fprintf(s.out, "no product %d in the current listing\n", n)
		return nil, false
	}
	return products[n-1], true
}

// pickCartLine resolves a 1-based index into the cart.
func (s *session) pickCartLine(arg string) (uuid.UUID, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(s.out, "not a line number: %q\n", arg)
		return uuid.Nil, false
	}
	items := s.cart.Items()
	if n < 1 || n > len(items) {
		fmt.Fprintf(s.out, "no cart line %d\n", n)
		return uuid.Nil, false
	}
	return items[n-1].ProductID, true
}
