package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/mediatags/internal/logger"
)

// quietPaths are polled often and only logged at trace level
var quietPaths = map[string]bool{
	"/api/health": true,
	"/metrics":    true,
}

// RequestLogger logs every HTTP request with its status and duration
func RequestLogger(log hclog.Logger) gin.HandlerFunc {
	log = logger.OrNull(log).Named("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"size", c.Writer.Size(),
		}
		if c.Request.URL.RawQuery != "" {
			args = append(args, "query", c.Request.URL.RawQuery)
		}

		switch {
		case quietPaths[c.Request.URL.Path]:
			log.Trace("HTTP request", args...)
		case c.Writer.Status() >= 500:
			log.Warn("HTTP request", args...)
		default:
			log.Debug("HTTP request", args...)
		}
	}
}

// ErrorLogger logs errors attached to the gin context
func ErrorLogger(log hclog.Logger) gin.HandlerFunc {
	log = logger.OrNull(log).Named("http")

	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			log.Error("request error",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Error(),
				"type", err.Type,
			)
		}
	}
}

// CORS allows browser clients from any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
