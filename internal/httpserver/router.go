package httpserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pharmamart/internal/domain"
	"pharmamart/internal/guard"
)

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db Pinger, deps Deps, corsOrigins []string) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())
	if len(corsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			ExposeHeaders:    []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api/v1", authenticate(deps.Auth, deps.Sessions))

	api.POST("/auth/signup", signUpHandler(deps.Auth))
	api.POST("/auth/signin", signInHandler(deps.Auth))
	api.POST("/auth/refresh", refreshHandler(deps.Auth))
	api.POST("/auth/signout", requireSignedIn, signOutHandler(deps.Auth))
	api.GET("/me", requireSignedIn, meHandler)

	api.GET("/products", listProductsHandler(deps.Catalog))
	api.GET("/products/:id", getProductHandler(deps.Catalog))
	api.GET("/categories", listCategoriesHandler(deps.Catalog))
	api.GET("/states", listStatesHandler)

	member := api.Group("", require(guard.Requirement{}))
	member.PATCH("/me/profile", updateMyProfileHandler(deps.Profiles))
	member.GET("/cart", getCartHandler)
	member.DELETE("/cart", clearCartHandler)
	member.POST("/cart/items", addItemHandler(deps.Catalog))
	member.PATCH("/cart/items/:productId", setQuantityHandler)
	member.DELETE("/cart/items/:productId", removeItemHandler)
	member.POST("/orders/checkout", checkoutHandler(deps.Orders))
	member.GET("/orders", listMyOrdersHandler(deps.Orders))
	member.GET("/orders/:id", getOrderHandler(deps.Orders))
	member.POST("/orders/:id/cancel", cancelOrderHandler(deps.Orders))

	api.POST("/vendor/applications", require(guard.Roles(domain.RoleConsumer)), submitApplicationHandler(deps.Vendors))

	vendorGroup := api.Group("/vendor", require(guard.Roles(domain.RoleVendor)))
	vendorGroup.GET("/products", vendorProductsHandler(deps.Catalog))
	vendorGroup.POST("/products", createProductHandler(deps.Catalog))
	vendorGroup.PATCH("/products/:id", updateProductHandler(deps.Catalog))
	vendorGroup.DELETE("/products/:id", deleteProductHandler(deps.Catalog))
	vendorGroup.POST("/products/:id/images", uploadImageHandler(deps.Catalog))
	vendorGroup.DELETE("/products/:id/images", removeImageHandler(deps.Catalog))
	vendorGroup.GET("/orders/:id", getOrderHandler(deps.Orders))
	vendorGroup.PATCH("/orders/:id/status", updateOrderStatusHandler(deps.Orders))

	admin := api.Group("/admin", require(guard.Roles(domain.RoleAdmin)))
	admin.GET("/users", listUsersHandler(deps.Auth))
	admin.GET("/profiles", listProfilesHandler(deps.Profiles))
	admin.PATCH("/profiles/:id", setRoleHandler(deps.Profiles))
	admin.GET("/vendor-applications", listApplicationsHandler(deps.Vendors))
	admin.POST("/vendor-applications/:id/approve", reviewApplicationHandler(deps.Vendors, true))
	admin.POST("/vendor-applications/:id/reject", reviewApplicationHandler(deps.Vendors, false))
	admin.GET("/orders/:id", getOrderHandler(deps.Orders))
	admin.PATCH("/orders/:id/status", updateOrderStatusHandler(deps.Orders))
	admin.PUT("/categories", upsertCategoryHandler(deps.Catalog))

	return router, nil
}
