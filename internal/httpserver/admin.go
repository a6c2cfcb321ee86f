package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmamart/internal/domain"
	"pharmamart/internal/service/profile"
	"pharmamart/internal/service/vendor"
)

type reviewRequest struct {
	Note string `json:"note"`
}

func submitApplicationHandler(svc VendorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req vendor.SubmitInput
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		app, err := svc.Submit(c.Request.Context(), currentSession(c).Identity.UserID, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, app)
	}
}

func listApplicationsHandler(svc VendorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := svc.List(c.Request.Context(), domain.ApplicationStatus(c.Query("status")))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": apps})
	}
}

func reviewApplicationHandler(svc VendorService, approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reviewRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				abortWithError(c, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		review := svc.Reject
		if approve {
			review = svc.Approve
		}
		app, err := review(c.Request.Context(), c.Param("id"), req.Note)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

func listUsersHandler(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svc.ListUsers(c.Request.Context(), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]userResponse, 0, len(users))
		for _, u := range users {
			out = append(out, toUserResponse(u))
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

func listProfilesHandler(svc ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles, err := svc.List(c.Request.Context(), domain.Role(c.Query("role")), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": profiles})
	}
}

func setRoleHandler(svc ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profile.SetRoleInput
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		p, err := svc.SetRole(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
