package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eion/things/internal/things"
)

// statusFor maps a failure to the HTTP status reported to the client
func statusFor(err error) int {
	switch {
	case things.IsNotFound(err):
		return http.StatusNotFound
	case things.IsValidation(err), things.IsBadRequest(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders the last error attached to the context unless a response was already written
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		renderError(c, logger, c.Errors.Last().Err)
	}
}

// Recovery turns panics into 500 responses in the requested representation
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("%v", recovered)
		}
		renderError(c, logger, err)
		c.Abort()
	})
}

// NoRoute reports unknown paths as 404 in the requested representation
func NoRoute(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		renderError(c, logger, &things.ThingError{
			Type:    things.ThingErrorTypeNotFound,
			Message: fmt.Sprintf("No route matches [%s] %q", c.Request.Method, c.Request.URL.Path),
		})
	}
}

func renderError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	message := err.Error()

	var te *things.ThingError
	if errors.As(err, &te) {
		message = te.Message
	}

	if status == http.StatusInternalServerError {
		logger.Error("Unhandled error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}

	if te != nil && te.Type == things.ThingErrorTypeValidationFailed {
		renderValidation(c, status, te.Fields)
		return
	}
	renderMessage(c, status, message)
}

// renderMessage writes {"errors": message}, a text line, or the error page
func renderMessage(c *gin.Context, status int, message string) {
	switch requestFormat(c) {
	case FormatJSON:
		c.JSON(status, gin.H{"errors": message})
	case FormatText:
		c.String(status, message+"\n")
	default:
		c.HTML(status, "errors/show", gin.H{
			"Title":   fmt.Sprintf("%d %s", status, http.StatusText(status)),
			"Status":  status,
			"Message": message,
		})
	}
}

func renderValidation(c *gin.Context, status int, fields things.ValidationErrors) {
	switch requestFormat(c) {
	case FormatJSON:
		c.JSON(status, gin.H{"errors": fields})
	case FormatText:
		c.String(status, strings.Join(fields.FullMessages(), "\n")+"\n")
	default:
		c.HTML(status, "errors/show", gin.H{
			"Title":    fmt.Sprintf("%d %s", status, http.StatusText(status)),
			"Status":   status,
			"Message":  "Validation failed",
			"Messages": fields.FullMessages(),
		})
	}
}
