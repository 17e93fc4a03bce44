package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDKey = "userID"

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// allowedHosts rejects requests for hosts outside ALLOWED_HOSTS. An
// empty list allows everything.
func (s *Server) allowedHosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.cfg.AllowedHosts) == 0 {
			c.Next()
			return
		}

		host := c.Request.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		for _, allowed := range s.cfg.AllowedHosts {
			// a leading dot allows all subdomains
			if strings.HasPrefix(allowed, ".") {
				if strings.HasSuffix(host, allowed) || host == strings.TrimPrefix(allowed, ".") {
					c.Next()
					return
				}
				continue
			}

			if host == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Host not allowed."})
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required."})
			return
		}

		userID, err := s.sessions.Resolve(cookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required."})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
