package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/cart"
	"github.com/fjod/go_cart/cafe-service/internal/catalog"
	"github.com/fjod/go_cart/cafe-service/internal/checkout"
	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/fjod/go_cart/cafe-service/internal/kv"
	"github.com/fjod/go_cart/cafe-service/internal/payment"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrNoCheckout     = errors.New("no checkout in progress")
)

// OrderPublisher announces acknowledged orders to other instances.
type OrderPublisher interface {
	Publish(ctx context.Context, clientID string, r checkout.Receipt) error
}

// CafeService owns one cart and at most one checkout per client.
type CafeService struct {
	catalog    *catalog.Catalog
	store      kv.Store
	authorizer payment.Authorizer
	publisher  OrderPublisher
	logger     *zap.Logger

	paymentTimeout time.Duration
	publishTimeout time.Duration

	sfg      singleflight.Group // restores a client's cart once under concurrent first requests
	mu       sync.RWMutex
	carts    map[string]*cart.Store
	sessions map[string]*checkout.Session
}

type Option func(*CafeService)

func WithLogger(l *zap.Logger) Option {
	return func(s *CafeService) { s.logger = l }
}

func WithPublisher(p OrderPublisher) Option {
	return func(s *CafeService) { s.publisher = p }
}

func WithPaymentTimeout(d time.Duration) Option {
	return func(s *CafeService) { s.paymentTimeout = d }
}

func NewCafeService(menu *catalog.Catalog, store kv.Store, authorizer payment.Authorizer, opts ...Option) *CafeService {
	s := &CafeService{
		catalog:        menu,
		store:          store,
		authorizer:     authorizer,
		logger:         zap.NewNop(),
		paymentTimeout: checkout.DefaultTimeout,
		publishTimeout: 5 * time.Second,
		carts:          make(map[string]*cart.Store),
		sessions:       make(map[string]*checkout.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CafeService) Catalog() *catalog.Catalog {
	return s.catalog
}

// Cart returns the client's cart, restoring it from storage on first use.
func (s *CafeService) Cart(ctx context.Context, clientID string) *cart.Store {
	s.mu.RLock()
	c, ok := s.carts[clientID]
	s.mu.RUnlock()
	if ok {
		return c
	}

	restoreCtx := context.WithoutCancel(ctx)
	v, _, _ := s.sfg.Do(clientID, func() (interface{}, error) {
		s.mu.RLock()
		existing, ok := s.carts[clientID]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		restored := cart.NewStore(restoreCtx, s.store, cart.KeyFor(clientID),
			cart.WithLogger(s.logger.With(zap.String("client_id", clientID))))

		s.mu.Lock()
		s.carts[clientID] = restored
		s.mu.Unlock()
		return restored, nil
	})
	return v.(*cart.Store)
}

// AddProduct adds one unit of a catalog product to the client's cart.
func (s *CafeService) AddProduct(ctx context.Context, clientID, productID string) (domain.Snapshot, error) {
	product, ok := s.catalog.Lookup(productID)
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	c := s.Cart(ctx, clientID)
	c.AddItem(ctx, product)
	return c.Snapshot(), nil
}

func (s *CafeService) UpdateQuantity(ctx context.Context, clientID, productID string, quantity int) domain.Snapshot {
	c := s.Cart(ctx, clientID)
	c.UpdateQuantity(ctx, productID, quantity)
	return c.Snapshot()
}

func (s *CafeService) RemoveItem(ctx context.Context, clientID, productID string) domain.Snapshot {
	c := s.Cart(ctx, clientID)
	c.RemoveItem(ctx, productID)
	return c.Snapshot()
}

// RefreshCart re-reads the client's cart from storage after another instance
// completed an order for it. Carts not loaded here need nothing: storage
// already holds what the other instance left after acknowledging.
func (s *CafeService) RefreshCart(ctx context.Context, clientID string) error {
	s.mu.RLock()
	c, ok := s.carts[clientID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := c.Reload(ctx); err != nil {
		return fmt.Errorf("refresh cart %s: %w", clientID, err)
	}
	return nil
}

// OpenCheckout returns the client's checkout, starting one when none is open.
// A new checkout needs a non-empty cart.
func (s *CafeService) OpenCheckout(ctx context.Context, clientID string) (*checkout.Session, error) {
	c := s.Cart(ctx, clientID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[clientID]; ok {
		return session, nil
	}
	if c.Snapshot().IsEmpty() {
		return nil, checkout.ErrEmptyCart
	}

	session := checkout.NewSession(c, s.authorizer,
		checkout.WithTimeout(s.paymentTimeout),
		checkout.WithLogger(s.logger.With(zap.String("client_id", clientID))),
		checkout.WithCompletionHook(func(ctx context.Context, r checkout.Receipt) {
			s.publish(ctx, clientID, r)
		}))
	s.sessions[clientID] = session
	return session, nil
}

func (s *CafeService) Checkout(clientID string) (*checkout.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[clientID]
	if !ok {
		return nil, ErrNoCheckout
	}
	return session, nil
}

// Acknowledge completes a successful payment and ends the checkout.
func (s *CafeService) Acknowledge(ctx context.Context, clientID string) (checkout.Receipt, error) {
	session, err := s.Checkout(clientID)
	if err != nil {
		return checkout.Receipt{}, err
	}
	receipt, err := session.Acknowledge(ctx)
	if err != nil {
		return checkout.Receipt{}, err
	}
	s.dropSession(clientID, session)
	return receipt, nil
}

// CloseCheckout ends the client's checkout unless a payment is processing.
func (s *CafeService) CloseCheckout(clientID string) error {
	session, err := s.Checkout(clientID)
	if err != nil {
		return err
	}
	if err := session.Close(); err != nil {
		return err
	}
	s.dropSession(clientID, session)
	return nil
}

func (s *CafeService) dropSession(clientID string, session *checkout.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[clientID] == session {
		delete(s.sessions, clientID)
	}
}

func (s *CafeService) publish(ctx context.Context, clientID string, r checkout.Receipt) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, clientID, r); err != nil {
		s.logger.Error("failed to publish order", zap.String("client_id", clientID), zap.String("order_id", r.OrderID), zap.Error(err))
	}
}
