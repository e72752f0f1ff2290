package service

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"storefront/backend/internal/board"
	"storefront/backend/internal/cache"
	"storefront/backend/internal/dashboard"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/rotation"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidInput    = errors.New("invalid input")
)

const defaultSummaryTTL = 30 * time.Second

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Backend is the remote store API the service proxies to.
type Backend interface {
	ListBuyerOrders(ctx context.Context, token string) ([]domain.Order, error)
	ListSellerOrders(ctx context.Context, token string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, token string, orderID string, status domain.OrderStatus) (*domain.Order, error)
	ListProducts(ctx context.Context, token string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, token string, input domain.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, token string, productID string, input domain.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, token string, productID string) error
	ListDiscounts(ctx context.Context, token string) ([]domain.Discount, error)
}

type Option func(*Service)

func WithSummaryCache(c cache.SummaryCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.summaries = c
		}
		if ttl > 0 {
			s.summaryTTL = ttl
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	backend    Backend
	rotation   *rotation.Engine
	boards     *board.Registry
	versions   *versions
	summaries  cache.SummaryCache
	summaryTTL time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
}

func New(backend Backend, engine *rotation.Engine, opts ...Option) *Service {
	s := &Service{
		backend:    backend,
		rotation:   engine,
		boards:     board.NewRegistry(),
		versions:   newVersions(),
		summaries:  cache.NoopSummaryCache{},
		summaryTTL: defaultSummaryTTL,
		log:        logrus.StandardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Promotions(ctx context.Context) domain.RotationSnapshot {
	return s.rotation.Snapshot(ctx)
}

// WatchPromotions calls onTick once per second with the countdown until ctx
// is done.
func (s *Service) WatchPromotions(ctx context.Context, onTick func(domain.RotationSnapshot)) error {
	return s.rotation.Run(ctx, onTick)
}

// Discounts lists the buyer's discounts that have not yet expired.
func (s *Service) Discounts(ctx context.Context) ([]domain.Discount, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	discounts, err := s.backend.ListDiscounts(ctx, actor.Token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := make([]domain.Discount, 0, len(discounts))
	for _, d := range discounts {
		if d.ValidUntil != nil && d.ValidUntil.Before(now) {
			continue
		}
		active = append(active, d)
	}
	return active, nil
}

func (s *Service) BuyerOrders(ctx context.Context, filter dashboard.OrderFilter, order dashboard.Sort) (domain.OrderListResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	orders, err := s.backend.ListBuyerOrders(ctx, actor.Token)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return orderList(dashboard.OrderView(orders, filter, order), nil), nil
}

// SellerOrders refreshes the seller's board from the backend and returns the
// filtered view of it, with in-flight status changes flagged.
func (s *Service) SellerOrders(ctx context.Context, filter dashboard.OrderFilter, order dashboard.Sort) (domain.OrderListResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	b, err := s.loadBoard(ctx, actor)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return orderList(dashboard.OrderView(b.Orders(), filter, order), b.Pending()), nil
}

func (s *Service) SellerOrderExport(ctx context.Context, filter dashboard.OrderFilter, order dashboard.Sort) ([]domain.Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.loadBoard(ctx, actor)
	if err != nil {
		return nil, err
	}
	return dashboard.OrderView(b.Orders(), filter, order), nil
}

// UpdateOrderStatus marks the change pending, asks the backend, and applies
// the new status only once the backend acknowledges it. On failure the order
// keeps its previous status.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, req domain.StatusUpdateRequest) (domain.Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, pkgerrors.Wrap(ErrInvalidInput, "order id is required")
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		return domain.Order{}, pkgerrors.Wrap(ErrInvalidInput, err.Error())
	}

	scope := scopeKey(actor)
	b := s.boards.For(scope)
	if _, ok := b.Order(orderID); !ok {
		if b, err = s.loadBoard(ctx, actor); err != nil {
			return domain.Order{}, err
		}
	}

	change, err := b.Begin(orderID, status)
	if err != nil {
		return domain.Order{}, err
	}

	ack, err := s.backend.UpdateOrderStatus(ctx, actor.Token, orderID, status)
	if err != nil {
		if revertErr := b.Revert(orderID); revertErr != nil {
			s.log.WithError(revertErr).WithField("order_id", orderID).Warn("revert pending status failed")
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_id": orderID,
			"from":     change.From,
			"to":       change.To,
		}).Warn("order status update rejected")
		return domain.Order{}, err
	}

	var updated domain.Order
	s.versions.advance(scope, func() {
		updated, err = b.Confirm(orderID, ack)
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.invalidateSummary(ctx, actor)

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     change.From,
		"to":       updated.Status,
	}).Info("order status updated")
	return updated, nil
}

// SellerProducts returns the filtered view; stats describe the whole
// inventory.
func (s *Service) SellerProducts(ctx context.Context, filter dashboard.ProductFilter, order dashboard.Sort) (domain.ProductListResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductListResponse{}, err
	}
	products, err := s.backend.ListProducts(ctx, actor.Token)
	if err != nil {
		return domain.ProductListResponse{}, err
	}
	view := dashboard.ProductView(products, filter, order)
	return domain.ProductListResponse{
		Products: view,
		Count:    len(view),
		Stats:    dashboard.SummarizeProducts(products),
	}, nil
}

func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	input, err = normalizeProductInput(input)
	if err != nil {
		return domain.Product{}, err
	}
	created, err := s.backend.CreateProduct(ctx, actor.Token, input)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateSummary(ctx, actor)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, input domain.ProductInput) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, pkgerrors.Wrap(ErrInvalidInput, "product id is required")
	}
	input, err = normalizeProductInput(input)
	if err != nil {
		return domain.Product{}, err
	}
	updated, err := s.backend.UpdateProduct(ctx, actor.Token, productID, input)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateSummary(ctx, actor)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return pkgerrors.Wrap(ErrInvalidInput, "product id is required")
	}
	if err := s.backend.DeleteProduct(ctx, actor.Token, productID); err != nil {
		return err
	}
	s.invalidateSummary(ctx, actor)
	return nil
}

// Dashboard fetches orders and products concurrently and summarizes them. The
// result is cached per seller for the configured TTL.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	scope := scopeKey(actor)
	key := summaryKey(scope)
	if cached, ok, err := s.summaries.Get(ctx, key); err != nil {
		s.log.WithError(err).Warn("dashboard cache read failed")
	} else if ok {
		return *cached, nil
	}

	version := s.versions.current(scope)

	var (
		orders   []domain.Order
		products []domain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.backend.ListSellerOrders(gctx, actor.Token)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.backend.ListProducts(gctx, actor.Token)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardSummary{}, err
	}

	now := s.now()
	summary := domain.DashboardSummary{
		Orders:      dashboard.SummarizeOrders(orders),
		Products:    dashboard.SummarizeProducts(products),
		Monthly:     dashboard.MonthlySales(orders),
		GeneratedAt: now.UTC(),
	}

	// A confirmed write during the fetch makes this result stale: return it
	// but keep it out of the board and the cache.
	applied := s.versions.applyIf(scope, version, func() {
		s.boards.For(scope).Replace(orders, now)
		if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
			s.log.WithError(err).Warn("dashboard cache write failed")
		}
	})
	if !applied {
		s.log.WithField("scope", scope).Debug("dashboard fetch overtaken by a write, not cached")
	}
	return summary, nil
}

func (s *Service) loadBoard(ctx context.Context, actor domain.Actor) (*board.Board, error) {
	scope := scopeKey(actor)
	version := s.versions.current(scope)
	orders, err := s.backend.ListSellerOrders(ctx, actor.Token)
	if err != nil {
		return nil, err
	}
	b := s.boards.For(scope)
	s.versions.applyIf(scope, version, func() {
		b.Replace(orders, s.now())
	})
	return b, nil
}

// invalidateSummary retires every dashboard fetch still in flight for the
// actor and drops the cached summary.
func (s *Service) invalidateSummary(ctx context.Context, actor domain.Actor) {
	scope := scopeKey(actor)
	s.versions.advance(scope, nil)
	if err := s.summaries.Delete(ctx, summaryKey(scope)); err != nil {
		s.log.WithError(err).Warn("dashboard cache invalidation failed")
	}
}

// scopeKey names the board and cache entries an actor may read. Only a
// locally verified token is trusted for its user id; otherwise the entries
// belong to the bearer token itself, so forged claims never reach another
// seller's state.
func scopeKey(actor domain.Actor) string {
	if actor.Verified {
		return "user:" + actor.UserID
	}
	sum := blake2b.Sum256([]byte(actor.Token))
	return "token:" + hex.EncodeToString(sum[:])
}

func summaryKey(scope string) string {
	return "dashboard:" + scope
}

// versions counts confirmed writes per scope. A fetch records the version
// before calling the backend and may only install its result while that
// version is still current.
type versions struct {
	mu      sync.Mutex
	byScope map[string]uint64
}

func newVersions() *versions {
	return &versions{byScope: make(map[string]uint64)}
}

func (v *versions) current(scope string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.byScope[scope]
}

// advance runs fn, if any, and bumps the version in one step.
func (v *versions) advance(scope string, fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if fn != nil {
		fn()
	}
	v.byScope[scope]++
}

func (v *versions) applyIf(scope string, seen uint64, fn func()) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.byScope[scope] != seen {
		return false
	}
	fn()
	return true
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Token == "" {
		return domain.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

func orderList(orders []domain.Order, pending map[string]domain.PendingChange) domain.OrderListResponse {
	rows := make([]domain.OrderRow, 0, len(orders))
	for _, o := range orders {
		p := o.Status.Presentation()
		row := domain.OrderRow{
			Order:       o,
			StatusLabel: p.Label,
			StatusColor: p.ColorClass,
			StatusIcon:  p.Icon,
		}
		if change, ok := pending[o.ID]; ok {
			row.PendingTo = string(change.To)
		}
		rows = append(rows, row)
	}
	return domain.OrderListResponse{Orders: rows, Count: len(rows)}
}

func normalizeProductInput(input domain.ProductInput) (domain.ProductInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	input.Subcategory = strings.TrimSpace(input.Subcategory)

	if input.Name == "" {
		return domain.ProductInput{}, pkgerrors.Wrap(ErrInvalidInput, "name is required")
	}
	if input.Category == "" {
		return domain.ProductInput{}, pkgerrors.Wrap(ErrInvalidInput, "category is required")
	}
	if input.Price.IsNegative() {
		return domain.ProductInput{}, pkgerrors.Wrap(ErrInvalidInput, "price must not be negative")
	}
	if input.Stock < 0 {
		return domain.ProductInput{}, pkgerrors.Wrap(ErrInvalidInput, "stock must not be negative")
	}
	return input, nil
}
