// Package yaginmiddleware provides the gin middlewares shared by the HTTP API:
// request ids, access logging and panic recovery.
package yaginmiddleware

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-ID"
	// ContextKeyLogger is the gin context key of the request scoped logger.
	ContextKeyLogger = "yalogger"
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware represents a gin middleware component.
type Middleware interface {
	Handle(ctx *gin.Context)
}

// RequestID tags every request with an id taken from X-Request-ID, or a fresh
// UUID when the header is missing or malformed, and stores a logger carrying
// that id in the gin context.
type RequestID struct {
	log yalogger.Logger
}

// NewRequestID creates the middleware.
//
// Example usage:
//
//	r := gin.New()
//	r.Use(yaginmiddleware.NewRequestID(log).Handle)
func NewRequestID(log yalogger.Logger) *RequestID {
	return &RequestID{log: yalogger.OrDefault(log)}
}

func (m *RequestID) Handle(ctx *gin.Context) {
	id := ctx.GetHeader(HeaderRequestID)
	if !requestIDPattern.MatchString(id) {
		id = uuid.NewString()
	}

	ctx.Header(HeaderRequestID, id)
	ctx.Set(ContextKeyLogger, m.log.WithRequestStringID(id))

	ctx.Next()
}

// AccessLog writes one line per request once it is served.
type AccessLog struct{}

func (AccessLog) Handle(ctx *gin.Context) {
	start := time.Now()

	ctx.Next()

	log := Logger(ctx).WithFields(map[string]any{
		"method":  ctx.Request.Method,
		"path":    ctx.FullPath(),
		"status":  ctx.Writer.Status(),
		"latency": time.Since(start).String(),
	})

	switch status := ctx.Writer.Status(); {
	case status >= http.StatusInternalServerError:
		log.Error("Request failed")
	case status >= http.StatusBadRequest:
		log.Warn("Request rejected")
	default:
		log.Info("Request served")
	}
}

// Recovery turns a panic in a handler into a 500 JSON response.
type Recovery struct{}

func (Recovery) Handle(ctx *gin.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			Logger(ctx).Errorf("Panic while serving request: %v", rec)

			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("%d | internal server error", http.StatusInternalServerError),
			})
		}
	}()

	ctx.Next()
}

// Logger returns the request scoped logger, or the default logger outside of
// RequestID.
func Logger(ctx *gin.Context) yalogger.Logger {
	if value, ok := ctx.Get(ContextKeyLogger); ok {
		if log, ok := value.(yalogger.Logger); ok {
			return log
		}
	}

	return yalogger.Default()
}
