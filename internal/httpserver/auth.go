package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmamart/internal/service/auth"
	"pharmamart/internal/service/profile"
)

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type signOutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func signUpHandler(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auth.SignUpInput
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		u, err := svc.SignUp(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toUserResponse(*u))
	}
}

func signInHandler(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "email and password required")
			return
		}
		u, tokens, err := svc.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, signInResponse{User: toUserResponse(*u), Tokens: tokens})
	}
}

func refreshHandler(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "refreshToken required")
			return
		}
		tokens, err := svc.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

// signOutHandler revokes the given refresh token, or all of the caller's
// tokens when the body is empty.
func signOutHandler(svc AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signOutRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				abortWithError(c, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		sess := currentSession(c)
		if err := svc.SignOut(c.Request.Context(), sess.Identity, req.RefreshToken); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func meHandler(c *gin.Context) {
	sess := currentSession(c)
	resp := meResponse{UserID: sess.Identity.UserID, Email: sess.Identity.Email}
	if p, ok := sess.Profile(); ok {
		resp.Profile = &p
	} else {
		resp.ProfilePending = true
	}
	c.JSON(http.StatusOK, resp)
}

func updateMyProfileHandler(svc ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profile.UpdateInput
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		sess := currentSession(c)
		p, err := svc.UpdateMine(c.Request.Context(), sess.Identity.UserID, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
