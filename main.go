package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/handlers"
	"backend/internal/images"
	"backend/internal/mail"
	"backend/internal/middleware"
	"backend/internal/payments"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Disconnect(client)

	db := client.Database(config.AppEnv.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}
	if err := database.EnsureCouponIndexes(db); err != nil {
		log.Printf("coupon index warning: %v", err)
	}
	if err := database.EnsureCartIndexes(db); err != nil {
		log.Printf("cart index warning: %v", err)
	}
	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("order index warning: %v", err)
	}
	if err := database.EnsureReviewIndexes(db); err != nil {
		log.Printf("review index warning: %v", err)
	}

	mailer := mail.New(
		config.AppEnv.SMTPHost,
		config.AppEnv.SMTPPort,
		config.AppEnv.SMTPUser,
		config.AppEnv.SMTPPassword,
		config.AppEnv.EmailFrom,
	)
	pay := payments.New(config.AppEnv.StripeSecretKey, config.AppEnv.StripeWebhookSecret)
	store := images.NewStore(config.AppEnv.UploadDir)

	secret := config.AppEnv.JWTSecret
	auth := middleware.Authenticate(db, secret)
	adminOnly := middleware.Authorize("admin")
	staff := middleware.Authorize("admin", "manager")

	r := gin.Default()
	r.Static("/uploads", config.AppEnv.UploadDir)

	r.POST("/auth/signup", handlers.Signup(db))
	r.POST("/auth/login", handlers.Login(db))
	r.POST("/auth/forgot-password", handlers.ForgotPassword(db, mailer))
	r.POST("/auth/verify-reset-code", handlers.VerifyResetCode(db))
	r.POST("/auth/reset-password", handlers.ResetPassword(db))

	// The webhook consumes the raw signed body; it cannot sit behind auth.
	r.POST("/webhook-checkout", handlers.PaymentWebhook(db, pay))

	r.GET("/categories", handlers.GetCategories(db))
	r.GET("/categories/:id", handlers.GetCategoryByID(db))
	r.GET("/categories/:id/subcategories", handlers.GetSubCategoriesByCategory(db))
	r.GET("/subcategories", handlers.GetSubCategories(db))
	r.GET("/subcategories/:id", handlers.GetSubCategoryByID(db))
	r.GET("/brands", handlers.GetBrands(db))
	r.GET("/brands/:id", handlers.GetBrandByID(db))
	r.GET("/products", handlers.GetProducts(db))
	r.GET("/products/:id", handlers.GetProductByID(db))
	r.GET("/products/:id/reviews", handlers.GetReviews(db))
	r.GET("/reviews/:id", handlers.GetReviewByID(db))

	staffAPI := r.Group("", auth, staff)
	{
		staffAPI.POST("/categories", handlers.UploadSingleImage(store, "categories", "image"), handlers.CreateCategory(db))
		staffAPI.PUT("/categories/:id", handlers.UploadSingleImage(store, "categories", "image"), handlers.UpdateCategory(db))
		staffAPI.DELETE("/categories/:id", handlers.DeleteCategory(db, store))

		staffAPI.POST("/subcategories", handlers.CreateSubCategory(db))
		staffAPI.PUT("/subcategories/:id", handlers.UpdateSubCategory(db))
		staffAPI.DELETE("/subcategories/:id", handlers.DeleteSubCategory(db))

		staffAPI.POST("/brands", handlers.UploadSingleImage(store, "brands", "image"), handlers.CreateBrand(db))
		staffAPI.PUT("/brands/:id", handlers.UploadSingleImage(store, "brands", "image"), handlers.UpdateBrand(db))
		staffAPI.DELETE("/brands/:id", handlers.DeleteBrand(db, store))

		staffAPI.POST("/products", handlers.UploadProductImages(store), handlers.CreateProduct(db))
		staffAPI.PUT("/products/:id", handlers.UploadProductImages(store), handlers.UpdateProduct(db))
		staffAPI.DELETE("/products/:id", handlers.DeleteProduct(db, store))

		staffAPI.GET("/coupons", handlers.GetCoupons(db))
		staffAPI.GET("/coupons/:id", handlers.GetCouponByID(db))
		staffAPI.POST("/coupons", handlers.CreateCoupon(db))
		staffAPI.PUT("/coupons/:id", handlers.UpdateCoupon(db))
		staffAPI.DELETE("/coupons/:id", handlers.DeleteCoupon(db))
	}

	adminAPI := r.Group("/users", auth, adminOnly)
	{
		adminAPI.GET("", handlers.GetUsers(db))
		adminAPI.POST("", handlers.CreateUser(db))
		adminAPI.GET("/:id", handlers.GetUserByID(db))
		adminAPI.PUT("/:id", handlers.UpdateUser(db))
		adminAPI.DELETE("/:id", handlers.DeactivateUser(db))
		adminAPI.PUT("/:id/password", handlers.ChangeUserPassword(db, mailer))
	}

	me := r.Group("/me", auth)
	{
		me.GET("", handlers.GetMe())
		me.PUT("", handlers.UpdateMe(db))
		me.PUT("/password", handlers.UpdateMyPassword(db))
		me.DELETE("", handlers.DeactivateMe(db))

		me.GET("/wishlist", handlers.GetWishlist(db))
		me.POST("/wishlist", handlers.AddToWishlist(db))
		me.DELETE("/wishlist/:id", handlers.RemoveFromWishlist(db))

		me.GET("/addresses", handlers.GetAddresses())
		me.POST("/addresses", handlers.AddAddress(db))
		me.DELETE("/addresses/:id", handlers.RemoveAddress(db))
	}

	userAPI := r.Group("", auth, middleware.Authorize("user"))
	{
		userAPI.GET("/cart", handlers.GetCart(db))
		userAPI.POST("/cart", handlers.AddToCart(db))
		userAPI.DELETE("/cart", handlers.ClearCart(db))
		userAPI.PUT("/cart/apply-coupon", handlers.ApplyCoupon(db))
		userAPI.PUT("/cart/:id", handlers.UpdateCartItemQuantity(db))
		userAPI.DELETE("/cart/:id", handlers.RemoveCartItem(db))

		userAPI.POST("/products/:id/reviews", handlers.CreateReview(db))

		userAPI.POST("/orders/:id", handlers.CreateCashOrder(db))
		userAPI.GET("/orders/checkout/:id", handlers.GetCheckoutSession(db, pay))
	}

	ordersAPI := r.Group("/orders", auth)
	{
		ordersAPI.GET("", handlers.GetOrders(db))
		ordersAPI.GET("/:id", handlers.GetOrderByID(db))
		ordersAPI.PUT("/:id/pay", staff, handlers.MarkOrderPaid(db))
		ordersAPI.PUT("/:id/deliver", staff, handlers.MarkOrderDelivered(db))
	}

	reviewsAPI := r.Group("/reviews", auth)
	{
		reviewsAPI.PUT("/:id", handlers.UpdateReview(db))
		reviewsAPI.DELETE("/:id", handlers.DeleteReview(db))
	}

	if err := r.Run(":" + config.AppEnv.Port); err != nil {
		log.Fatal(err)
	}
}
