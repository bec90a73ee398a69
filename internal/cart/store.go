// Package cart owns the cart aggregate of one client: the ordered lines,
// their persistence to a kv.Store and change notification.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/fjod/go_cart/cafe-service/internal/kv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultKey is the storage namespace every cart is persisted under.
const DefaultKey = "cart-storage"

// KeyFor returns the storage key of one client's cart.
func KeyFor(clientID string) string {
	if clientID == "" {
		return DefaultKey
	}
	return fmt.Sprintf("%s:%s", DefaultKey, clientID)
}

// persistedCart mirrors the record the browser store wrote, so old carts restore as-is.
type persistedCart struct {
	State struct {
		Items []storedLine `json:"items"`
	} `json:"state"`
	Version int `json:"version"`
}

type storedLine struct {
	Product  storedProduct `json:"product"`
	Quantity int           `json:"quantity"`
}

// storedProduct keeps the fields the browser persisted. Price is written as a
// JSON number; quoted prices from older records still decode.
type storedProduct struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Category    string      `json:"category"`
	Image       string      `json:"image,omitempty"`
}

func toStored(lines []domain.CartLine) []storedLine {
	out := make([]storedLine, len(lines))
	for i, l := range lines {
		out[i] = storedLine{
			Product: storedProduct{
				ID:          l.Product.ID,
				Name:        l.Product.Name,
				Description: l.Product.Description,
				Price:       json.Number(l.Product.Price.String()),
				Category:    l.Product.Category,
				Image:       l.Product.Image,
			},
			Quantity: l.Quantity,
		}
	}
	return out
}

type Store struct {
	mu      sync.Mutex
	key     string
	kv      kv.Store
	lines   []domain.CartLine
	version uint64

	subMu  sync.Mutex
	subs   map[int]func(domain.Snapshot)
	nextID int

	logger       *zap.Logger
	writeTimeout time.Duration
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithWriteTimeout bounds each persistence call.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) { s.writeTimeout = d }
}

// NewStore restores the cart persisted under key. Any restore failure yields an empty cart.
func NewStore(ctx context.Context, store kv.Store, key string, opts ...Option) *Store {
	s := &Store{
		key:          key,
		kv:           store,
		subs:         make(map[int]func(domain.Snapshot)),
		logger:       zap.NewNop(),
		writeTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	lines, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("restore cart failed, starting empty", zap.String("key", s.key), zap.Error(err))
	}
	s.lines = lines
	return s
}

// AddItem increments the product's line or appends a new line with quantity 1.
func (s *Store) AddItem(ctx context.Context, product domain.Product) {
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		for i := range lines {
			if lines[i].Product.ID == product.ID {
				lines[i].Quantity++
				return lines
			}
		}
		return append(lines, domain.CartLine{Product: product, Quantity: 1})
	})
}

// RemoveItem deletes the line for productID. Absent ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		return removeLine(lines, productID)
	})
}

// UpdateQuantity sets max(0, quantity); zero removes the line. Absent ids are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		for i := range lines {
			if lines[i].Product.ID != productID {
				continue
			}
			if quantity <= 0 {
				return removeLine(lines, productID)
			}
			lines[i].Quantity = quantity
			return lines
		}
		return lines
	})
}

func (s *Store) ClearCart(ctx context.Context) {
	s.mutate(ctx, func([]domain.CartLine) []domain.CartLine {
		return nil
	})
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Reload replaces the in-memory cart with the persisted one, for carts another
// instance wrote. On a read failure the in-memory cart is kept.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	lines, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.lines = lines
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Subscribe registers fn for every subsequent snapshot. fn runs on the mutating
// goroutine; it may read the store but must not block.
func (s *Store) Subscribe(fn func(domain.Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) mutate(ctx context.Context, fn func([]domain.CartLine) []domain.CartLine) {
	s.mu.Lock()
	s.lines = fn(s.lines)
	s.version++
	s.persist(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) snapshotLocked() domain.Snapshot {
	lines := make([]domain.CartLine, len(s.lines))
	copy(lines, s.lines)

	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return domain.Snapshot{Lines: lines, ItemCount: count, Version: s.version}
}

func (s *Store) notify(snap domain.Snapshot) {
	s.subMu.Lock()
	fns := make([]func(domain.Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// persist writes the full cart. Failures are logged, the in-memory cart stays authoritative.
func (s *Store) persist(ctx context.Context) {
	var record persistedCart
	record.State.Items = toStored(s.lines)

	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("marshal cart failed", zap.String("key", s.key), zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()
	if err := s.kv.Set(writeCtx, s.key, data); err != nil {
		s.logger.Warn("persist cart failed", zap.String("key", s.key), zap.Error(err))
	}
}

// load reads the persisted cart. A missing key is an empty cart.
func (s *Store) load(ctx context.Context) ([]domain.CartLine, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	data, err := s.kv.Get(readCtx, s.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}

	var record persistedCart
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}

	return normalize(record.State.Items), nil
}

// normalize enforces the cart invariants on restored data: a valid price,
// positive quantities and one line per product id.
func normalize(items []storedLine) []domain.CartLine {
	var lines []domain.CartLine
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || item.Product.ID == "" {
			continue
		}
		if i, ok := index[item.Product.ID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}
		price, err := decimal.NewFromString(item.Product.Price.String())
		if err != nil || price.IsNegative() {
			continue
		}
		index[item.Product.ID] = len(lines)
		lines = append(lines, domain.CartLine{
			Product: domain.Product{
				ID:          item.Product.ID,
				Name:        item.Product.Name,
				Description: item.Product.Description,
				Price:       price,
				Category:    item.Product.Category,
				Image:       item.Product.Image,
			},
			Quantity: item.Quantity,
		})
	}
	return lines
}

func removeLine(lines []domain.CartLine, productID string) []domain.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.Product.ID != productID {
			out = append(out, l)
		}
	}
	return out
}
