package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// StatusFor maps a domain error onto an HTTP status code
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidManifest),
		errors.Is(err, types.ErrMissingManifest),
		errors.Is(err, types.ErrFileTooLarge),
		errors.Is(err, types.ErrMainFileMissing),
		errors.Is(err, types.ErrInvalidArchive),
		errors.Is(err, types.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	msg := err.Error()
	if status == http.StatusRequestEntityTooLarge {
		msg = "upload exceeds size limit"
	}
	c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}
