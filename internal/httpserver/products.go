package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmamart/internal/domain"
	"pharmamart/internal/service/catalog"
	"pharmamart/internal/validate"
)

const maxImageBytes = 5 << 20

func listProductsHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in catalog.ListInput
		if err := c.ShouldBindQuery(&in); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid query")
			return
		}
		page, err := svc.List(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getProductHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func listCategoriesHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := svc.Categories(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		if cats == nil {
			cats = []domain.Category{}
		}
		c.JSON(http.StatusOK, gin.H{"items": cats})
	}
}

func listStatesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": validate.States()})
}

func vendorProductsHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		page, err := svc.VendorProducts(c.Request.Context(), sess.Identity.UserID, queryInt(c, "limit", 0), queryInt(c, "offset", 0))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func createProductHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req catalog.ProductInput
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		p, err := svc.CreateProduct(c.Request.Context(), currentSession(c).Identity.UserID, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func updateProductHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req catalog.ProductInput
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		p, err := svc.UpdateProduct(c.Request.Context(), currentSession(c).Identity.UserID, c.Param("id"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func deleteProductHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteProduct(c.Request.Context(), currentSession(c).Identity.UserID, c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// uploadImageHandler accepts a multipart "file" field.
func uploadImageHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes+1<<10)
		fh, err := c.FormFile("file")
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "multipart field \"file\" required")
			return
		}
		if fh.Size > maxImageBytes {
			abortWithError(c, http.StatusRequestEntityTooLarge, "image exceeds 5 MiB")
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, err)
			return
		}
		defer f.Close()

		p, err := svc.AddImage(c.Request.Context(), currentSession(c).Identity.UserID, c.Param("id"),
			fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

type removeImageRequest struct {
	URL string `json:"url" binding:"required"`
}

func removeImageHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req removeImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "url required")
			return
		}
		p, err := svc.RemoveImage(c.Request.Context(), currentSession(c).Identity.UserID, c.Param("id"), req.URL)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func upsertCategoryHandler(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req domain.Category
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		cat, err := svc.UpsertCategory(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}
