package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// respondCart writes the priced cart after a change.
func respondCart(c *gin.Context, status int) {
	v, err := currentSession(c).Cart.View(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, toCartResponse(v))
}

func getCartHandler(c *gin.Context) {
	respondCart(c, http.StatusOK)
}

// addItemHandler only accepts products that are currently listed.
func addItemHandler(catalogSvc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "productId required")
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		if _, err := catalogSvc.Get(c.Request.Context(), req.ProductID); err != nil {
			writeError(c, err)
			return
		}
		if err := currentSession(c).Cart.AddItem(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
			writeError(c, err)
			return
		}
		respondCart(c, http.StatusOK)
	}
}

func setQuantityHandler(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "quantity required")
		return
	}
	if err := currentSession(c).Cart.UpdateQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	respondCart(c, http.StatusOK)
}

func removeItemHandler(c *gin.Context) {
	if err := currentSession(c).Cart.RemoveItem(c.Request.Context(), c.Param("productId")); err != nil {
		writeError(c, err)
		return
	}
	respondCart(c, http.StatusOK)
}

func clearCartHandler(c *gin.Context) {
	if err := currentSession(c).Cart.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	respondCart(c, http.StatusOK)
}
