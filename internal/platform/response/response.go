// Package response writes the service's JSON envelope and maps domain errors
// to HTTP status codes.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servilink/service-booking/internal/domain"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type paginatedEnvelope struct {
	Success bool  `json:"success"`
	Data    any   `json:"data"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
}

// Success writes a 200 with the standard envelope.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// Created writes a 201 with the standard envelope.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

// Paginated writes a 200 with pagination metadata.
func Paginated(c *gin.Context, data any, total int64, page, limit int) {
	c.JSON(http.StatusOK, paginatedEnvelope{Success: true, Data: data, Total: total, Page: page, Limit: limit})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, envelope{Success: false, Error: msg})
}

// Error maps a domain error to its HTTP status. Unknown errors become opaque
// 500s so internals never leak to callers.
func Error(c *gin.Context, err error) {
	c.JSON(StatusFor(err), envelope{Success: false, Error: messageFor(err)})
}

// StatusFor returns the HTTP status for a domain error sentinel.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidSignature):
		// Forged callbacks get their own status so they stand out from
		// plain validation failures in access logs.
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrNotCompleted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrGatewayRejected),
		errors.Is(err, domain.ErrRefundRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	if StatusFor(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
