package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// apiError carries a status classification alongside a client-safe message.
// Every business failure travels through this type; nothing is silently
// swallowed.
type apiError struct {
	Status  int
	Message string
	Err     error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *apiError) Unwrap() error { return e.Err }

func errNotFound(format string, args ...interface{}) *apiError {
	return &apiError{Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

func errBadRequest(format string, args ...interface{}) *apiError {
	return &apiError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func errUnauthorized(format string, args ...interface{}) *apiError {
	return &apiError{Status: http.StatusUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func errForbidden(format string, args ...interface{}) *apiError {
	return &apiError{Status: http.StatusForbidden, Message: fmt.Sprintf(format, args...)}
}

func errInternal(message string, err error) *apiError {
	return &apiError{Status: http.StatusInternalServerError, Message: message, Err: err}
}

// respondError writes the error response. Wrapped causes are logged but only
// exposed to the client in debug mode.
func respondError(c *gin.Context, err error) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		apiErr = errInternal("internal server error", err)
	}

	if apiErr.Err != nil {
		log.Printf("[ERROR] %d %s: %v", apiErr.Status, apiErr.Message, apiErr.Err)
	}

	body := gin.H{"status": statusLabel(apiErr.Status), "message": apiErr.Message}
	if gin.Mode() == gin.DebugMode && apiErr.Err != nil {
		body["error"] = apiErr.Err.Error()
	}
	c.AbortWithStatusJSON(apiErr.Status, body)
}

func statusLabel(status int) string {
	if status >= http.StatusInternalServerError {
		return "error"
	}
	return "fail"
}

// handlePanic terminates the request with a generic error; stack traces stay
// in the log (and in the response only under debug mode).
func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v\n%s", route, r, debug.Stack())
		body := gin.H{"status": "error", "message": "internal server error"}
		if gin.Mode() == gin.DebugMode {
			body["error"] = fmt.Sprint(r)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	}
}

// respondValidationError translates binding failures into per-field messages.
func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "min", "gte":
				details = append(details, fmt.Sprintf("%s is too small", field))
			case "max", "lte":
				details = append(details, fmt.Sprintf("%s is too large", field))
			case "email":
				details = append(details, fmt.Sprintf("%s must be a valid email", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"status":  "fail",
			"message": "validation failed",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status":  "fail",
		"message": "invalid body",
	})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
