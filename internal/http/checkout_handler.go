package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/checkout"
	"github.com/fjod/go_cart/cafe-service/internal/service"
)

type CheckoutHandler struct {
	svc         *service.CafeService
	waitTimeout time.Duration
}

// NewCheckoutHandler builds the checkout endpoints. waitTimeout bounds how long
// a submit with ?wait=true blocks for the payment outcome.
func NewCheckoutHandler(svc *service.CafeService, waitTimeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, waitTimeout: waitTimeout}
}

func (h *CheckoutHandler) Open(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.OpenCheckout(r.Context(), getClientID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCheckoutDTO(session.View()))
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Checkout(getClientID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutDTO(session.View()))
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Checkout(getClientID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req SubmitPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if _, err := session.Submit(req.form()); err != nil {
		handleServiceError(w, err)
		return
	}
	h.respondAttempt(w, r, session)
}

func (h *CheckoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Checkout(getClientID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if _, err := session.Retry(); err != nil {
		handleServiceError(w, err)
		return
	}
	h.respondAttempt(w, r, session)
}

func (h *CheckoutHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Checkout(getClientID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := session.Dismiss(); err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutDTO(session.View()))
}

func (h *CheckoutHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.svc.Acknowledge(r.Context(), getClientID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

func (h *CheckoutHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseCheckout(getClientID(r.Context())); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondAttempt answers 202 while the payment is processing, or waits for
// the outcome when the client asked for it.
func (h *CheckoutHandler) respondAttempt(w http.ResponseWriter, r *http.Request, session *checkout.Session) {
	if r.URL.Query().Get("wait") != "true" {
		respondJSON(w, http.StatusAccepted, toCheckoutDTO(session.View()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()
	if _, err := session.Wait(ctx); err != nil {
		respondJSON(w, http.StatusAccepted, toCheckoutDTO(session.View()))
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutDTO(session.View()))
}
