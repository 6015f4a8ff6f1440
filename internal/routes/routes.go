package routes

import (
	"github.com/gofiber/fiber/v2"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/handlers"
	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, rdb *rd.Client, cfg *config.Config) {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	stripeService := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeAPIURL)
	paypalService := services.NewPayPalService(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalAPIURL)
	stockService := services.NewStockService(db, cfg.ReservationTTL)
	couponService := services.NewCouponService(db)
	orderService := services.NewOrderService(db, stockService, couponService,
		stripeService, paypalService, telegramService)

	authHandler := handlers.NewAuthHandler(db, cfg)
	catalogHandler := handlers.NewCatalogHandler(db)
	productHandler := handlers.NewProductHandler(db, stockService)
	orderHandler := handlers.NewOrderHandler(db, orderService)
	paymentHandler := handlers.NewPaymentHandler(db, stripeService, paypalService)
	checkoutHandler := handlers.NewCheckoutHandler(orderService)
	couponHandler := handlers.NewCouponHandler(db, couponService)
	stockHandler := handlers.NewStockHandler(stockService)
	profileHandler := handlers.NewProfileHandler(db)
	marketingHandler := handlers.NewMarketingHandler(db)
	adminHandler := handlers.NewAdminHandler(db)

	paymentLimiter := middleware.RateLimit(rdb, cfg.PaymentRateLimit, cfg.PaymentRateWindow)
	adminOnly := middleware.AdminMiddleware(db)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Catalog routes
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	categories.Post("/", middleware.AuthMiddleware(cfg), adminOnly, catalogHandler.CreateCategory)
	categories.Put("/:id", middleware.AuthMiddleware(cfg), adminOnly, catalogHandler.UpdateCategory)
	categories.Delete("/:id", middleware.AuthMiddleware(cfg), adminOnly, catalogHandler.DeleteCategory)

	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/variants/:variantId/stock", productHandler.GetVariantStock)
	products.Get("/:id", productHandler.GetProduct)
	products.Get("/:id/reviews", marketingHandler.ListReviews)
	products.Post("/", middleware.AuthMiddleware(cfg), adminOnly, productHandler.CreateProduct)
	products.Put("/:id", middleware.AuthMiddleware(cfg), adminOnly, productHandler.UpdateProduct)
	products.Delete("/:id", middleware.AuthMiddleware(cfg), adminOnly, productHandler.DeleteProduct)

	// Coupons
	coupons := api.Group("/coupons")
	coupons.Post("/validate", couponHandler.Validate)
	coupons.Post("/record-usage", middleware.AuthMiddleware(cfg), couponHandler.RecordUsage)
	coupons.Get("/", middleware.AuthMiddleware(cfg), adminOnly, couponHandler.ListCoupons)
	coupons.Post("/", middleware.AuthMiddleware(cfg), adminOnly, couponHandler.CreateCoupon)
	coupons.Put("/:id", middleware.AuthMiddleware(cfg), adminOnly, couponHandler.UpdateCoupon)
	coupons.Delete("/:id", middleware.AuthMiddleware(cfg), adminOnly, couponHandler.DeleteCoupon)

	// Payment gateways
	payments := api.Group("/payments", paymentLimiter)
	payments.Post("/stripe", paymentHandler.CreateStripeIntent)
	payments.Post("/paypal", paymentHandler.CreatePayPalOrder)
	payments.Post("/paypal/capture", paymentHandler.CapturePayPalOrder)

	// Checkout confirmation
	checkout := api.Group("/checkout", paymentLimiter)
	checkout.Post("/confirm-stripe-payment", checkoutHandler.ConfirmStripePayment)
	checkout.Post("/confirm-paypal-payment", checkoutHandler.ConfirmPayPalPayment)

	// Newsletter and testimonials
	newsletter := api.Group("/newsletter")
	newsletter.Post("/subscribe", marketingHandler.Subscribe)
	newsletter.Post("/unsubscribe", marketingHandler.Unsubscribe)

	testimonials := api.Group("/testimonials")
	testimonials.Get("/", marketingHandler.ListTestimonials)
	testimonials.Post("/", middleware.AuthMiddleware(cfg), adminOnly, marketingHandler.CreateTestimonial)
	testimonials.Put("/:id", middleware.AuthMiddleware(cfg), adminOnly, marketingHandler.UpdateTestimonial)
	testimonials.Delete("/:id", middleware.AuthMiddleware(cfg), adminOnly, marketingHandler.DeleteTestimonial)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/orders/create-pending", orderHandler.CreatePending)
	protected.Post("/orders/confirm-payment", paymentLimiter, orderHandler.ConfirmPayment)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)

	protected.Post("/stock/reserve", stockHandler.Reserve)
	protected.Delete("/stock/reserve", stockHandler.Release)

	protected.Post("/reviews", marketingHandler.CreateReview)

	protected.Get("/wishlist", marketingHandler.ListWishlist)
	protected.Post("/wishlist", marketingHandler.AddWishlistItem)
	protected.Delete("/wishlist/:productId", marketingHandler.RemoveWishlistItem)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)

	admin := protected.Group("/admin", adminOnly)
	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/orders", adminHandler.ListAllOrders)
}
