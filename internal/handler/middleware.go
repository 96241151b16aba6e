package handler

import (
	"strconv"
	"time"

	"escrowledger/internal/config"
	"escrowledger/internal/logger"
	"escrowledger/internal/metrics"
	"escrowledger/pkg/jwtauth"
	"escrowledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LoggerMiddleware logs one line per request after it completes.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		logger.Info("[HTTP] %d | %13v | %15s | %-7s %s | %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
			c.GetString(ContextKeyRequestID),
		)
	}
}

// RecoveryMiddleware turns panics into 500 responses instead of killing
// the process.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    response.CodeServerError,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

const (
	ContextKeyRequestID = "request_id"
	ContextKeyActorID   = "actor_id"
)

// RequestIDMiddleware propagates the caller's X-Request-ID or assigns one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// MetricsMiddleware observes request latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPLatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

const (
	RoleAdmin   = "admin"
	RoleService = "service"
)

// AuthMiddleware verifies the bearer token and requires one of the
// allowed roles. The token's subject becomes the actor recorded on
// ledger entries.
func AuthMiddleware(cfg *config.Config, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwtauth.ParseAuth(c.GetHeader("Authorization"), cfg.Auth.JWTSecret)
		if err != nil {
			response.Unauthorized(c, "invalid or missing token")
			return
		}

		role, _ := claims["role"].(string)
		if !roleAllowed(role, allowedRoles) {
			response.Forbidden(c, "insufficient role")
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Set(ContextKeyActorID, sub)
		}
		c.Next()
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// AdminAuthMiddleware guards the admin group.
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return AuthMiddleware(cfg, RoleAdmin)
}
