package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/fjod/go_cart/cafe-service/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartHandler struct {
	svc       *service.CafeService
	logger    *zap.Logger
	keepAlive time.Duration
}

func NewCartHandler(svc *service.CafeService, logger *zap.Logger) *CartHandler {
	return &CartHandler{svc: svc, logger: logger, keepAlive: 15 * time.Second}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c := h.svc.Cart(r.Context(), getClientID(r.Context()))
	respondJSON(w, http.StatusOK, toCartDTO(c.Snapshot()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	snap, err := h.svc.AddProduct(r.Context(), getClientID(r.Context()), req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCartDTO(snap))
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	snap := h.svc.UpdateQuantity(r.Context(), getClientID(r.Context()), productID, *req.Quantity)
	respondJSON(w, http.StatusOK, toCartDTO(snap))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	snap := h.svc.RemoveItem(r.Context(), getClientID(r.Context()), productID)
	respondJSON(w, http.StatusOK, toCartDTO(snap))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c := h.svc.Cart(r.Context(), getClientID(r.Context()))
	c.ClearCart(r.Context())
	respondJSON(w, http.StatusOK, toCartDTO(c.Snapshot()))
}

// Events streams the cart as server-sent events: the current cart first,
// then one event per change.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	c := h.svc.Cart(r.Context(), getClientID(r.Context()))

	// Latest snapshot wins; subscribers must not block the mutating goroutine.
	updates := make(chan domain.Snapshot, 1)
	unsubscribe := c.Subscribe(func(s domain.Snapshot) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	current := c.Snapshot()
	if err := writeEvent(w, current); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	last := current.Version
	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if snap.Version <= last {
				continue
			}
			last = snap.Version
			if err := writeEvent(w, snap); err != nil {
				h.logger.Debug("cart event stream closed", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, snap domain.Snapshot) error {
	data, err := json.Marshal(toCartDTO(snap))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\nid: %d\ndata: %s\n\n", snap.Version, data)
	return err
}
