// Package catalog holds the read-only café menu the cart draws products from.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed menu.yaml
var defaultMenu []byte

var ErrInvalidProduct = errors.New("invalid product")

// Category is one menu section in display order.
type Category struct {
	Name     string           `json:"name"`
	Products []domain.Product `json:"products"`
}

type Catalog struct {
	products   []domain.Product
	byID       map[string]int
	categories []string
}

type menuFile struct {
	Products []menuEntry `yaml:"products"`
}

type menuEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Category    string `yaml:"category"`
	Image       string `yaml:"image"`
	New         bool   `yaml:"new"`
	Bestseller  bool   `yaml:"bestseller"`
}

// New validates products and builds a catalog preserving their order.
func New(products []domain.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	seenCategory := make(map[string]bool)

	for _, p := range products {
		if err := validate(p); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidProduct, p.ID)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
		if !seenCategory[p.Category] {
			seenCategory[p.Category] = true
			c.categories = append(c.categories, p.Category)
		}
	}

	return c, nil
}

// Load parses a YAML menu document.
func Load(r io.Reader) (*Catalog, error) {
	var f menuFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode menu: %w", err)
	}

	products := make([]domain.Product, 0, len(f.Products))
	for _, e := range f.Products {
		price, err := ParsePrice(e.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidProduct, e.ID, err)
		}
		products = append(products, domain.Product{
			ID:          e.ID,
			Name:        e.Name,
			Description: e.Description,
			Price:       price,
			Category:    e.Category,
			Image:       e.Image,
			New:         e.New,
			Bestseller:  e.Bestseller,
		})
	}

	return New(products)
}

// Default returns the embedded café menu.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultMenu))
	if err != nil {
		panic(fmt.Sprintf("embedded menu is invalid: %v", err))
	}
	return c
}

// ParsePrice accepts "4.50" as well as the menu's display form "$4.50".
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	return decimal.NewFromString(s)
}

func validate(p domain.Product) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidProduct)
	case p.Name == "":
		return fmt.Errorf("%w: %q has no name", ErrInvalidProduct, p.ID)
	case p.Category == "":
		return fmt.Errorf("%w: %q has no category", ErrInvalidProduct, p.ID)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: %q has negative price", ErrInvalidProduct, p.ID)
	}
	return nil
}

// Products returns every product in menu order.
func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Lookup(id string) (domain.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// Categories returns category names in order of first appearance.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

func (c *Catalog) Grouped() []Category {
	groups := make([]Category, len(c.categories))
	index := make(map[string]int, len(c.categories))
	for i, name := range c.categories {
		groups[i].Name = name
		index[name] = i
	}
	for _, p := range c.products {
		i := index[p.Category]
		groups[i].Products = append(groups[i].Products, p)
	}
	return groups
}
