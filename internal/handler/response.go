package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/duolog/duolog-server/internal/httperror"
	"github.com/duolog/duolog-server/internal/middleware"
)

// writeError writes the standard error response body.
func writeError(c *gin.Context, err error) {
	if c == nil {
		return
	}
	status, payload := httperror.Response(err, middleware.GetRequestID(c))
	c.JSON(status, payload)
}

// bindJSON parses the request body as JSON.
func bindJSON(c *gin.Context, out any) bool {
	if c == nil {
		return false
	}
	if err := c.ShouldBindJSON(out); err != nil {
		writeError(c, httperror.NewValidationError(err))
		return false
	}
	return true
}

// bindJSONAllowEmpty also accepts an empty body.
func bindJSONAllowEmpty(c *gin.Context, out any) bool {
	if c == nil {
		return false
	}
	if err := c.ShouldBindJSON(out); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeError(c, httperror.NewValidationError(err))
		return false
	}
	return true
}
