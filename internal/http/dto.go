package http

import (
	"github.com/fjod/go_cart/cafe-service/internal/catalog"
	"github.com/fjod/go_cart/cafe-service/internal/checkout"
	"github.com/fjod/go_cart/cafe-service/internal/domain"
)

type ProductDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	Image        string `json:"image,omitempty"`
	IsNew        bool   `json:"is_new,omitempty"`
	IsBestseller bool   `json:"is_bestseller,omitempty"`
}

type CategoryDTO struct {
	Name     string       `json:"name"`
	Products []ProductDTO `json:"products"`
}

type MenuDTO struct {
	Categories []CategoryDTO `json:"categories"`
}

type LineDTO struct {
	Product   ProductDTO `json:"product"`
	Quantity  int        `json:"quantity"`
	LineTotal string     `json:"line_total"`
}

type TotalsDTO struct {
	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax"`
	DeliveryFee string `json:"delivery_fee"`
	GrandTotal  string `json:"grand_total"`
}

type CartDTO struct {
	Items     []LineDTO `json:"items"`
	ItemCount int       `json:"item_count"`
	Version   uint64    `json:"version"`
	Totals    TotalsDTO `json:"totals"`
}

type AttemptDTO struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type CheckoutDTO struct {
	Status   string             `json:"status"`
	Message  string             `json:"message,omitempty"`
	PayLabel string             `json:"pay_label"`
	Totals   TotalsDTO          `json:"totals"`
	Form     *checkout.FormData `json:"form,omitempty"`
	Attempt  *AttemptDTO        `json:"attempt,omitempty"`
}

type ReceiptDTO struct {
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Items         []LineDTO `json:"items"`
	Totals        TotalsDTO `json:"totals"`
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type SubmitPaymentRequestDTO struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

func (r SubmitPaymentRequestDTO) form() checkout.FormData {
	return checkout.FormData{
		Name:       r.Name,
		Email:      r.Email,
		Address:    r.Address,
		CardNumber: r.CardNumber,
		Expiry:     r.Expiry,
		CVV:        r.CVV,
	}
}

func toProductDTO(p domain.Product) ProductDTO {
	return ProductDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        checkout.FormatAmount(p.Price),
		Image:        p.Image,
		IsNew:        p.New,
		IsBestseller: p.Bestseller,
	}
}

func toMenuDTO(c *catalog.Catalog) MenuDTO {
	groups := c.Grouped()
	out := MenuDTO{Categories: make([]CategoryDTO, 0, len(groups))}
	for _, g := range groups {
		products := make([]ProductDTO, 0, len(g.Products))
		for _, p := range g.Products {
			products = append(products, toProductDTO(p))
		}
		out.Categories = append(out.Categories, CategoryDTO{Name: g.Name, Products: products})
	}
	return out
}

func toLineDTOs(lines []domain.CartLine) []LineDTO {
	out := make([]LineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineDTO{
			Product:   toProductDTO(l.Product),
			Quantity:  l.Quantity,
			LineTotal: checkout.FormatAmount(l.LineTotal()),
		})
	}
	return out
}

func toTotalsDTO(t checkout.Totals) TotalsDTO {
	return TotalsDTO{
		Subtotal:    checkout.FormatAmount(t.Subtotal),
		Tax:         checkout.FormatAmount(t.Tax),
		DeliveryFee: checkout.FormatAmount(t.DeliveryFee),
		GrandTotal:  checkout.FormatAmount(t.GrandTotal),
	}
}

func toCartDTO(s domain.Snapshot) CartDTO {
	return CartDTO{
		Items:     toLineDTOs(s.Lines),
		ItemCount: s.ItemCount,
		Version:   s.Version,
		Totals:    toTotalsDTO(checkout.CalculateTotals(s)),
	}
}

func toCheckoutDTO(v checkout.View) CheckoutDTO {
	dto := CheckoutDTO{
		Status:   v.Status.String(),
		Message:  v.Message,
		PayLabel: v.PayLabel(),
		Totals:   toTotalsDTO(v.Totals),
		Form:     v.Form,
	}
	if v.Attempt.ID != "" {
		dto.Attempt = &AttemptDTO{
			ID:            v.Attempt.ID,
			Status:        v.Attempt.Status.String(),
			Amount:        checkout.FormatAmount(v.Attempt.Amount),
			TransactionID: v.Attempt.TransactionID,
			Reason:        v.Attempt.Reason,
		}
	}
	return dto
}

func toReceiptDTO(r checkout.Receipt) ReceiptDTO {
	return ReceiptDTO{
		OrderID:       r.OrderID,
		TransactionID: r.TransactionID,
		Items:         toLineDTOs(r.Lines),
		Totals:        toTotalsDTO(r.Totals),
	}
}
