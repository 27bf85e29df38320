// Package response writes JSON bodies and maps domain errors to HTTP status codes.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unitstay/service-booking/internal/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// PageBody wraps a page of items.
type PageBody struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// Success writes data with 200.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Paginated writes a page of items with 200.
func Paginated[T any](c *gin.Context, result domain.PaginatedResult[T]) {
	c.JSON(http.StatusOK, PageBody{
		Items:      result.Items,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	})
}

// BadRequest writes a 400 with detail.
func BadRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Detail: detail})
}

// NotFound writes a 404 with detail.
func NotFound(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusNotFound, ErrorBody{Detail: detail})
}

// Unprocessable writes a 422 with detail.
func Unprocessable(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorBody{Detail: detail})
}

// Error maps err to a status code and writes it.
func Error(c *gin.Context, err error) {
	status, detail := Status(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorBody{Detail: detail})
}

// Status returns the HTTP status and the client-facing detail for err.
func Status(err error) (int, string) {
	var (
		utb      *domain.UnableToBookError
		notFound *domain.NotFoundError
		invalid  *domain.ValidationError
		conflict *domain.ConflictError
	)
	switch {
	case errors.As(err, &utb):
		return http.StatusBadRequest, utb.Reason
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Entity + " not found"
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, invalid.Message
	case errors.As(err, &conflict):
		return http.StatusConflict, conflict.Message
	case errors.Is(err, domain.ErrAvailabilityUnknown):
		return http.StatusServiceUnavailable, domain.ErrAvailabilityUnknown.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
