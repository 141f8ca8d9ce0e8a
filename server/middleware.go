package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/metrics"
)

const (
	requestIDHeader = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxUser      = "user"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	}
}

// observe records request latency by route template, so ids do not blow up
// label cardinality.
func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// authenticate resolves the bearer token into a user. A missing token is
// anonymous unless RequireAuth is set; an invalid token is always rejected.
// Browsers cannot set headers on WebSocket upgrades, so the token may also be
// passed as the access_token query parameter.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if s.opts.RequireAuth {
				abortError(c, http.StatusUnauthorized, "authentication required")
				return
			}
			c.Next()
			return
		}
		if s.tokens == nil {
			abortError(c, http.StatusUnauthorized, "token authentication is not configured")
			return
		}

		user, err := s.tokens.Verify(token)
		if err != nil {
			s.logger.Debug().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("Rejected token")
			abortError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(ctxUser, &user)
		c.Next()
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			abortError(c, http.StatusUnauthorized, "sign in required")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}

func currentUser(c *gin.Context) *auth.User {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil
	}
	user, _ := v.(*auth.User)
	return user
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
