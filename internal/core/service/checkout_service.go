package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zeshalondrag/sorapc-checkout/internal/core/domain"
	"github.com/zeshalondrag/sorapc-checkout/internal/port"
	"github.com/zeshalondrag/sorapc-checkout/pkg/metrics"
)

// State tracks where a checkout attempt is in its lifecycle. The
// workflow only ever moves forward; Aborted is terminal and reachable
// from any stage before the order is recorded.
type State string

const (
	StateIdle        State = "idle"
	StateReconciling State = "reconciling"
	StateAllReported State = "all_reported"
	StateVerifying   State = "verifying"
	StateRecording   State = "recording"
	StateRecorded    State = "recorded"
	StateDispatching State = "dispatching"
	StateDone        State = "done"
	StateAborted     State = "aborted"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrInconsistentState   = errors.New("inconsistent stock state")
	ErrOrderPersistFailure = errors.New("order persist failure")
)

type Config struct {
	MaxConcurrent  int
	StoreTimeout   time.Duration
	QueueSize      int
	ReceiptRetries int
	CleanupRetries int
	RetryBackoff   time.Duration
}

type Deps struct {
	Catalog  port.CatalogStore
	Orders   port.OrderStore
	Carts    port.CartStore
	Cache    port.CacheRepository
	Identity port.Identity
	Mailer   port.Mailer
	Metrics  *metrics.CheckoutMetrics
	Logger   *slog.Logger
}

type CheckoutService struct {
	catalog  port.CatalogStore
	orders   port.OrderStore
	carts    port.CartStore
	cache    port.CacheRepository
	identity port.Identity
	mailer   port.Mailer
	metrics  *metrics.CheckoutMetrics
	log      *slog.Logger

	maxConcurrent  int
	storeTimeout   time.Duration
	receiptRetries int
	cleanupRetries int
	retryBackoff   time.Duration

	receiptQueue chan receiptJob
}

func NewCheckoutService(deps Deps, cfg Config) *CheckoutService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.ReceiptRetries < 0 {
		cfg.ReceiptRetries = 0
	}
	if cfg.CleanupRetries < 0 {
		cfg.CleanupRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &CheckoutService{
		catalog:        deps.Catalog,
		orders:         deps.Orders,
		carts:          deps.Carts,
		cache:          deps.Cache,
		identity:       deps.Identity,
		mailer:         deps.Mailer,
		metrics:        deps.Metrics,
		log:            log,
		maxConcurrent:  cfg.MaxConcurrent,
		storeTimeout:   cfg.StoreTimeout,
		receiptRetries: cfg.ReceiptRetries,
		cleanupRetries: cfg.CleanupRetries,
		retryBackoff:   cfg.RetryBackoff,
		receiptQueue:   make(chan receiptJob, cfg.QueueSize),
	}
}

type CheckoutResult struct {
	Order         domain.Order
	State         State
	ReceiptQueued bool
}

// Checkout converts the buyer's cart into a persisted order: claim the
// idempotency key, resolve every cart line against the catalog, apply
// the stock decrements atomically, verify no article went negative,
// record the order, then clear the cart and queue the receipt. Order
// persistence is the commit point; everything after it is best-effort.
func (s *CheckoutService) Checkout(ctx context.Context, userID, idempotencyKey string, method domain.PaymentMethod) (CheckoutResult, error) {
	start := time.Now()
	res := CheckoutResult{State: StateIdle}

	if idempotencyKey != "" {
		claimCtx, cancel := s.storeCtx(ctx)
		ok, err := s.cache.ClaimIdempotency(claimCtx, fmt.Sprintf("checkout:%s:%s", userID, idempotencyKey))
		cancel()
		if err != nil {
			return s.abort(res, "error", fmt.Errorf("idempotency check failed: %w", err))
		}
		if !ok {
			return s.abort(res, "duplicate", ErrDuplicateRequest)
		}
	}

	cartCtx, cancel := s.storeCtx(ctx)
	items, err := s.carts.Items(cartCtx, userID)
	cancel()
	if err != nil {
		return s.abort(res, "error", fmt.Errorf("load cart: %w", err))
	}
	if len(items) == 0 {
		return s.abort(res, "empty_cart", ErrEmptyCart)
	}

	res.State = StateReconciling
	resolved, err := s.resolveItems(ctx, items)
	if err != nil {
		return s.abort(res, outcomeFor(err), err)
	}
	res.State = StateAllReported

	reconCtx, cancel := s.storeCtx(ctx)
	err = s.catalog.ReconcileStock(reconCtx, resolved)
	cancel()
	if err != nil {
		return s.abort(res, outcomeFor(err), fmt.Errorf("reconcile stock: %w", err))
	}

	res.State = StateVerifying
	if err := s.verifyStock(ctx, resolved); err != nil {
		return s.abort(res, outcomeFor(err), err)
	}

	res.State = StateRecording
	order := domain.NewOrder(uuid.NewString(), userID, resolved, method, time.Now().UTC())
	appendCtx, cancel := s.storeCtx(ctx)
	err = s.orders.Append(appendCtx, order)
	cancel()
	if err != nil {
		return s.abort(res, "persist_failure", fmt.Errorf("%w: %v", ErrOrderPersistFailure, err))
	}
	res.State = StateRecorded
	res.Order = order

	s.clearCart(ctx, order)

	res.State = StateDispatching
	res.ReceiptQueued = s.enqueueReceipt(order)
	res.State = StateDone

	s.countCheckout("success")
	s.observeDuration(start)
	s.log.Info("checkout completed",
		"order_id", order.ID,
		"user_id", userID,
		"final_total", order.FinalTotal,
		"payment", string(order.Payment),
	)
	return res, nil
}

// resolveItems looks up every cart line in the catalog concurrently,
// snapshotting title and unit price and rejecting unknown or
// under-stocked articles before any mutation happens.
func (s *CheckoutService) resolveItems(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	resolved := make([]domain.LineItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]
			if it.Quantity <= 0 {
				return fmt.Errorf("article %s: quantity must be positive, got %d", it.Article, it.Quantity)
			}

			lookupCtx, cancel := s.storeCtx(gctx)
			defer cancel()

			rec, err := s.catalog.GetByArticle(lookupCtx, it.Article)
			if err != nil {
				return fmt.Errorf("stock lookup %s: %w", it.Article, err)
			}
			if rec == nil {
				return fmt.Errorf("%w: %s", domain.ErrArticleNotFound, it.Article)
			}
			if rec.Available < it.Quantity {
				return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, it.Article)
			}

			resolved[idx] = domain.LineItem{
				Article:   rec.Article,
				Title:     rec.Title,
				UnitPrice: rec.UnitPrice,
				Quantity:  it.Quantity,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// verifyStock re-reads availability for every article in the order and
// asserts none went negative. With a transactional catalog store this
// never fires; it guards port implementations that reconcile items
// independently.
func (s *CheckoutService) verifyStock(ctx context.Context, items []domain.LineItem) error {
	articles := domain.Articles(items)

	verifyCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	quantities, err := s.catalog.Quantities(verifyCtx, articles)
	if err != nil {
		return fmt.Errorf("stock verification: %w", err)
	}

	for _, article := range articles {
		if q, ok := quantities[article]; ok && q < 0 {
			return fmt.Errorf("%w: %s", ErrInconsistentState, article)
		}
	}
	return nil
}

// clearCart empties the buyer's cart after the order is durable.
// Failures are retried a bounded number of times and then only logged:
// the recorded order is the source of truth.
func (s *CheckoutService) clearCart(ctx context.Context, order domain.Order) {
	var err error
	for attempt := 0; attempt <= s.cleanupRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryBackoff * time.Duration(1<<(attempt-1)))
		}

		clearCtx, cancel := s.storeCtx(ctx)
		err = s.carts.Clear(clearCtx, order.UserID)
		cancel()
		if err == nil {
			return
		}
	}

	s.log.Error("cart cleanup failed, order stands",
		"order_id", order.ID,
		"user_id", order.UserID,
		"error", err,
	)
}

func (s *CheckoutService) abort(res CheckoutResult, outcome string, err error) (CheckoutResult, error) {
	res.State = StateAborted
	s.countCheckout(outcome)
	return res, err
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrArticleNotFound):
		return "article_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInconsistentState):
		return "inconsistent_state"
	default:
		return "error"
	}
}

func (s *CheckoutService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *CheckoutService) countCheckout(outcome string) {
	if s.metrics != nil {
		s.metrics.Checkouts.WithLabelValues(outcome).Inc()
	}
}

func (s *CheckoutService) countReceipt(outcome string) {
	if s.metrics != nil {
		s.metrics.Receipts.WithLabelValues(outcome).Inc()
	}
}

func (s *CheckoutService) observeDuration(start time.Time) {
	if s.metrics != nil {
		s.metrics.DurationMS.Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Orders returns the buyer's order history, newest first.
func (s *CheckoutService) Orders(ctx context.Context, userID string) ([]domain.Order, error) {
	listCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.orders.ListByUser(listCtx, userID)
}

// HasPurchased reports whether the buyer has ever ordered the article.
func (s *CheckoutService) HasPurchased(ctx context.Context, userID, article string) (bool, error) {
	checkCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.orders.HasPurchased(checkCtx, userID, article)
}

// CartItems returns the buyer's current cart.
func (s *CheckoutService) CartItems(ctx context.Context, userID string) ([]domain.LineItem, error) {
	cartCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.carts.Items(cartCtx, userID)
}

// AddCartItem upserts one cart entry after checking the article exists.
func (s *CheckoutService) AddCartItem(ctx context.Context, userID, article string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	rec, err := s.catalog.GetByArticle(lookupCtx, article)
	cancel()
	if err != nil {
		return fmt.Errorf("stock lookup %s: %w", article, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", domain.ErrArticleNotFound, article)
	}

	putCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.carts.Put(putCtx, userID, article, quantity)
}

// RemoveCartItem deletes one cart entry.
func (s *CheckoutService) RemoveCartItem(ctx context.Context, userID, article string) error {
	removeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.carts.Remove(removeCtx, userID, article)
}
