// README: Base handler utilities (JSON helpers, principal lookup, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"freightbid/internal/errs"
	"freightbid/internal/http/middleware"
	"freightbid/internal/identity"
)

// retryAfterSeconds is advertised when storage is unreachable.
const retryAfterSeconds = "5"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps engine errors onto HTTP statuses. A policy denial on a
// read or on any route addressed by id is reported as 404, the same as an
// unknown id, so foreign records stay indistinguishable from missing ones.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrBadRequest), errors.Is(err, errs.ErrInvalidAmount):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrUnauthenticated):
		writeError(c, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, errs.ErrForbidden):
		if c.Request.Method == http.MethodGet || c.Param("id") != "" {
			writeError(c, http.StatusNotFound, "not found")
			return
		}
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeError(c, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrInvalidTransition),
		errors.Is(err, errs.ErrInvalidBidState),
		errors.Is(err, errs.ErrBookingNotOpen),
		errors.Is(err, errs.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrStorageUnavailable):
		_ = c.Error(err)
		c.Header("Retry-After", retryAfterSeconds)
		writeError(c, http.StatusServiceUnavailable, "storage unavailable")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// principal returns the authenticated caller or writes 401.
func principal(c *gin.Context) (identity.Principal, bool) {
	p, ok := middleware.CallerPrincipal(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthenticated")
	}
	return p, ok
}

// uuidParam parses a path parameter or writes 400.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
