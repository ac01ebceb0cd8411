package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vendhub/marketplace/internal/auth"
	"github.com/vendhub/marketplace/internal/handler"
	"github.com/vendhub/marketplace/internal/order"
	"github.com/vendhub/marketplace/internal/payment"
	"github.com/vendhub/marketplace/internal/product"
	"github.com/vendhub/marketplace/internal/user"
	"github.com/vendhub/marketplace/internal/vendor"
)

type Deps struct {
	AuthService    auth.Service
	AuthRepo       auth.Repository
	TokenSigner    auth.TokenSigner
	OrderService   order.Service
	PaymentService payment.Service
	ProductRepo    product.Repository
	UserRepo       user.Repository
	VendorRepo     vendor.Repository
}

func NewRouter(deps Deps) *chi.Mux {
	validate := validator.New()

	authHandler := handler.NewAuthHandler(deps.AuthService, validate)
	orderHandler := handler.NewOrderHandler(deps.OrderService, validate)
	paymentHandler := handler.NewPaymentHandler(deps.PaymentService, validate)
	productHandler := handler.NewProductHandler(deps.ProductRepo)
	vendorHandler := handler.NewVendorHandler(deps.VendorRepo, deps.PaymentService, validate)
	userHandler := handler.NewUserHandler(deps.UserRepo, validate)
	authMiddleware := handler.NewAuthMiddleware(deps.TokenSigner, deps.AuthRepo, deps.UserRepo, deps.VendorRepo)

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Post("/resend-otp", authHandler.ResendOTP)
		r.Post("/reset-password", authHandler.ResetPassword)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", productHandler.List)
		r.Get("/{id}", productHandler.Get)
	})

	// The webhook is unauthenticated; integrity comes from the signature
	// header.
	r.Post("/payments/webhook", paymentHandler.Webhook)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/orders", func(r chi.Router) {
			r.With(handler.RequireRole(auth.RoleUser)).Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.Patch("/{id}/status", orderHandler.ToggleStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(handler.RequireRole(auth.RoleUser)).Post("/initialize", paymentHandler.Initialize)
			r.Get("/verify/{reference}", paymentHandler.Verify)
			r.Get("/banks", paymentHandler.Banks)
			r.With(handler.RequireRole(auth.RoleAdmin)).Get("/{id}", paymentHandler.Get)
			r.With(handler.RequireRole(auth.RoleAdmin)).Post("/refund", paymentHandler.Refund)
			r.With(handler.RequireRole(auth.RoleAdmin)).Post("/transfer", paymentHandler.Transfer)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Use(handler.RequireRole(auth.RoleUser))
			r.Get("/", userHandler.GetProfile)
			r.Put("/", userHandler.UpdateProfile)
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(handler.RequireRole(auth.RoleVendor))
			r.Get("/bank", vendorHandler.GetBank)
			r.Put("/bank", vendorHandler.UpdateBank)
		})
	})

	return r
}
