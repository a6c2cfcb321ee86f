package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pharmamart/internal/guard"
	"pharmamart/internal/session"
)

const (
	sessionKey = "session"

	// profileRetryAfter is sent with 503 while a session's profile is
	// still loading.
	profileRetryAfter = "2"
)

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if sess := currentSession(c); sess != nil {
			fields = append(fields, zap.String("user_id", sess.Identity.UserID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// authenticate attaches the caller's session when a bearer token is sent.
// Requests without a token pass through anonymously; a bad token is
// rejected outright.
func authenticate(authSvc AuthService, sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortWithError(c, http.StatusUnauthorized, "malformed authorization header")
			return
		}
		id, err := authSvc.Verify(strings.TrimSpace(token))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		sess, err := sessions.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// require gates a route group with the guard.
func require(req guard.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := guard.Snapshot{}
		if sess := currentSession(c); sess != nil {
			snap = sess.Snapshot()
		}
		d := guard.Evaluate(snap, req)
		switch d.State {
		case guard.Authorized:
			c.Next()
			return
		case guard.Unauthenticated:
			abortWithError(c, http.StatusUnauthorized, "sign in required")
		case guard.PendingProfile:
			c.Header("Retry-After", profileRetryAfter)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "profile is still loading",
				"code":  d.State.String(),
			})
		case guard.WrongRole:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":        "insufficient role",
				"requiredRole": d.RequiredRoles,
			})
		case guard.Unapproved:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "vendor account is awaiting approval",
				"code":  d.State.String(),
			})
		}
	}
}

// requireSignedIn admits any verified caller, profile loaded or not.
func requireSignedIn(c *gin.Context) {
	if currentSession(c) == nil {
		abortWithError(c, http.StatusUnauthorized, "sign in required")
		return
	}
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}
