package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/payment"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/health"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/middleware"
)

// RouterDeps are the components the router mounts.
type RouterDeps struct {
	Sessions       Sessions
	Gateway        payment.Gateway
	Health         *health.Handler
	Metrics        *middleware.HTTPMetrics
	TokenValidator middleware.TokenValidator
	CORS           middleware.CORSConfig
	OTPRateLimit   middleware.RateLimitConfig
	Logger         *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(deps.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler)
	}
	r.Use(middleware.Tracing("storefront"))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	cartHandler := NewCartHandler(deps.Sessions, logger)
	checkoutHandler := NewCheckoutHandler(deps.Sessions, logger)
	otpHandler := NewOTPHandler(deps.Sessions, logger)
	paymentHandler := NewPaymentHandler(deps.Gateway, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		// Gateway callbacks carry no storefront session.
		r.Post("/payments/notifications", paymentHandler.Notify)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session)
			r.Use(middleware.OptionalAuth(deps.TokenValidator))
			r.Use(middleware.RequestLogger(logger))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Get("/summary", cartHandler.GetSummary)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}", cartHandler.UpdateQuantity)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.Get)
				r.Post("/begin", checkoutHandler.Begin)
				r.Put("/address", checkoutHandler.SubmitAddress)
				r.Post("/address/edit", checkoutHandler.EditAddress)
				r.Post("/confirm", checkoutHandler.Confirm)
				r.Post("/payment/retry", checkoutHandler.RetryPayment)
				r.Post("/payment/cancel", checkoutHandler.CancelPayment)
				r.Post("/reset", checkoutHandler.Reset)
			})

			otpLimit := middleware.RateLimit(deps.OTPRateLimit, logger)
			r.Route("/otp", func(r chi.Router) {
				r.Get("/", otpHandler.Get)
				r.With(otpLimit).Post("/request", otpHandler.RequestCode)
				r.With(otpLimit).Post("/verify", otpHandler.Verify)
				r.Post("/cancel", otpHandler.Cancel)
			})
		})
	})

	return r
}
