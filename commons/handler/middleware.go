package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"sqsbridge/commons/error_handler"
	"sqsbridge/commons/response"
	"sqsbridge/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is read from and echoed on every response.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request id.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware reuses the caller's X-Request-ID or assigns a new one
// and attaches it to the request context for logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

func ErrorHandlingMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if recovered != nil {
			log.WithContext(c.Request.Context()).Error("panic recovered in middleware",
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
				logger.Any("panic", recovered))

			c.AbortWithStatusJSON(http.StatusInternalServerError, response.StandardResponse{
				Status:    response.StatusFailed,
				ErrorCode: error_handler.CodeInternalServerError,
				Message:   "Internal server error",
				RequestID: c.GetString(RequestIDKey),
				Errors: []response.Errors{
					error_handler.GetInternalServerError("An unexpected error occurred"),
				},
			})
		}
	})
}

// LoggingMiddleware logs one line per request. Paths in quiet, such as the
// metrics scrape endpoint, are logged at debug level.
func LoggingMiddleware(log logger.Logger, quiet ...string) gin.HandlerFunc {
	quietPaths := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		quietPaths[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		reqLog := log.WithContext(c.Request.Context())
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status_code", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("remote_addr", c.ClientIP()),
		}

		if quietPaths[c.Request.URL.Path] {
			reqLog.Debug("request completed", fields...)
			return
		}
		reqLog.Info("request completed", fields...)
	}
}

func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.StandardResponse{
			Status:    response.StatusFailed,
			ErrorCode: error_handler.CodeNotFound,
			Message:   "Route not found",
			RequestID: c.GetString(RequestIDKey),
			Errors: []response.Errors{
				error_handler.GetNotFoundError(fmt.Sprintf("The requested route '%s %s' was not found", c.Request.Method, c.Request.URL.Path)),
			},
		})
	}
}

func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, response.StandardResponse{
			Status:    response.StatusFailed,
			ErrorCode: error_handler.CodeValidationError,
			Message:   "Method not allowed",
			RequestID: c.GetString(RequestIDKey),
			Errors: []response.Errors{
				error_handler.GetValidationError(fmt.Sprintf("Method '%s' is not allowed for route '%s'", c.Request.Method, c.Request.URL.Path)),
			},
		})
	}
}
