package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler

	Log                *slog.Logger
	JWTSecret          []byte
	SecureCookies      bool
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(OptionalAuth(cfg.JWTSecret, cfg.Log))
		r.Use(CartSession(cfg.SecureCookies))

		// the cart stream stays open, so it skips the request timeout and compression
		r.Get("/cart/events", cfg.Cart.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.Compress(5))
			if cfg.MaxRequestBodySize > 0 {
				r.Use(MaxBodySize(cfg.MaxRequestBodySize))
			}

			r.Get("/categories", cfg.Catalog.ListCategories)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", cfg.Catalog.ListProducts)
				r.Get("/{ref}", cfg.Catalog.GetProduct)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.GetCart)
				r.Delete("/", cfg.Cart.ClearCart)
				r.Post("/items", cfg.Cart.AddItem)
				r.Post("/items/{ref}/increment", cfg.Cart.Increment)
				r.Post("/items/{ref}/decrement", cfg.Cart.Decrement)
				r.Delete("/items/{ref}", cfg.Cart.RemoveItem)
				r.Post("/coupon", cfg.Cart.ApplyCoupon)
				r.Delete("/coupon", cfg.Cart.RemoveCoupon)
			})

			r.Get("/checkout/quote", cfg.Checkout.Quote)
			r.Post("/checkout", cfg.Checkout.Checkout)

			r.Route("/orders", func(r chi.Router) {
				r.With(RequireUser).Get("/", cfg.Orders.ListOrders)
				r.Get("/{order_id}", cfg.Orders.GetOrder)
				r.Get("/{order_id}/qr", cfg.Orders.GetOrderQR)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/orders", cfg.Admin.ListOrders)
				r.Patch("/orders/{order_id}/status", cfg.Admin.UpdateStatus)
				r.Patch("/orders/{order_id}/payment", cfg.Admin.UpdatePaymentStatus)
			})
		})
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
