package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pharmamart/internal/cartsync"
	"pharmamart/internal/domain"
	"pharmamart/internal/service/auth"
	"pharmamart/internal/storage"
	"pharmamart/internal/validate"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

// writeError maps service errors onto HTTP statuses. Unknown errors are
// recorded on the context for the request logger and hidden from clients.
func writeError(c *gin.Context, err error) {
	var (
		fe       validate.FieldErrors
		fetchErr *cartsync.FetchError
	)
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: fe})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_exists"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, domain.ErrInsufficientStock):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Code: "insufficient_stock"})
	case errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "cart is empty", Code: "empty_cart"})
	case errors.Is(err, cartsync.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, cartsync.ErrNoUser):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "sign in required"})
	case errors.Is(err, cartsync.ErrRemoteWrite), errors.As(err, &fetchErr):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, errorResponse{Error: "cart could not be saved, please retry", Code: "cart_sync_failed"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid email or password"})
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
	case errors.Is(err, storage.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		_ = c.Error(err)
		c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "request cancelled"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

type userResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Metadata  domain.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Metadata: u.Metadata, CreatedAt: u.CreatedAt}
}

type signInResponse struct {
	User   userResponse `json:"user"`
	Tokens auth.Tokens  `json:"tokens"`
}

type meResponse struct {
	UserID         string          `json:"userId"`
	Email          string          `json:"email"`
	Profile        *domain.Profile `json:"profile"`
	ProfilePending bool            `json:"profilePending"`
}

type cartLineResponse struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug,omitempty"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Available bool            `json:"available"`
	InStock   bool            `json:"inStock"`
}

type cartResponse struct {
	Lines      []cartLineResponse `json:"lines"`
	TotalItems int                `json:"totalItems"`
	TotalPrice string             `json:"totalPrice"`
}

// toCartResponse renders a priced view. Lines whose product has gone away
// are kept with Available false and a zero price.
func toCartResponse(v cartsync.View) cartResponse {
	out := cartResponse{
		Lines:      make([]cartLineResponse, 0, len(v.Lines)),
		TotalItems: v.TotalItems,
		TotalPrice: v.TotalPrice.StringFixed(2),
	}
	for _, l := range v.Lines {
		line := cartLineResponse{ProductID: l.ProductID, Quantity: l.Quantity}
		if p := l.Product; p != nil {
			line.Name = p.Name
			line.Slug = p.Slug
			line.UnitPrice = p.Price
			line.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			line.Available = p.IsActive
			line.InStock = p.InStock(l.Quantity)
			if len(p.ImageURLs) > 0 {
				line.ImageURL = p.ImageURLs[0]
			}
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}
