package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	PaymentTimeout time.Duration
	SecureCookies  bool
}

func NewRouter(svc *service.CafeService, cfg RouterConfig, logger *zap.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	menuHandler := NewMenuHandler(svc.Catalog())
	cartHandler := NewCartHandler(svc, logger)
	checkoutHandler := NewCheckoutHandler(svc, cfg.PaymentTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Compress(5))
	r.Use(ClientMiddleware(cfg.SecureCookies))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	timeout := middleware.Timeout(cfg.RequestTimeout)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(timeout).Get("/menu", menuHandler.GetMenu)

		r.Route("/cart", func(r chi.Router) {
			// long-lived stream, outside the request timeout
			r.Get("/events", cartHandler.Events)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Use(timeout)
			r.Post("/", checkoutHandler.Open)
			r.Get("/", checkoutHandler.Get)
			r.Delete("/", checkoutHandler.Close)
			r.Post("/submit", checkoutHandler.Submit)
			r.Post("/retry", checkoutHandler.Retry)
			r.Post("/dismiss", checkoutHandler.Dismiss)
			r.Post("/acknowledge", checkoutHandler.Acknowledge)
		})
	})

	return otelhttp.NewHandler(r, "cafe-service")
}
