package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bjelicb/kinetix-backend-sub000/internal/scheduler"
	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
)

// statusForError maps a service error category to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, scheduler.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAuthenticationFailed), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError aborts with the status for err. Internal errors are
// logged and hidden from the caller.
func respondWithServiceError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logrus.WithField("component", "http").
			WithField("path", c.FullPath()).
			WithError(err).Error("unexpected service error")
		abortWithError(c, status, "An unexpected error occurred.")
		return
	}
	abortWithError(c, status, err.Error())
}
