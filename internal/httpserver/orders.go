package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmamart/internal/domain"
	"pharmamart/internal/service/order"
)

type statusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

func actorOf(c *gin.Context) order.Actor {
	sess := currentSession(c)
	a := order.Actor{UserID: sess.Identity.UserID}
	if p, ok := sess.Profile(); ok {
		a.Role = p.Role
	}
	return a
}

func checkoutHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.ShippingInput
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				abortWithError(c, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		o, err := svc.Checkout(c.Request.Context(), currentSession(c), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

func listMyOrdersHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListMine(c.Request.Context(), currentSession(c).Identity.UserID, queryInt(c, "limit", 0), queryInt(c, "offset", 0))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": orders})
	}
}

func getOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Get(c.Request.Context(), actorOf(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func cancelOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Cancel(c.Request.Context(), currentSession(c).Identity.UserID, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// updateOrderStatusHandler serves both the vendor and admin routes; the
// service applies the per-role rules.
func updateOrderStatusHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "status required")
			return
		}
		o, err := svc.UpdateStatus(c.Request.Context(), actorOf(c), c.Param("id"), req.Status)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
