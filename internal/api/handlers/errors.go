// internal/api/handlers/errors.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"waste-tracking-api-server/internal/api/middleware"
	"waste-tracking-api-server/internal/apperrors"
	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/models"
)

// respondError writes err as {"error", "code"} with the status from the
// error taxonomy. Internal failures are logged and not echoed.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message, "code": apperrors.Code(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "ValidationError"})
}

func currentActor(c *gin.Context) models.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}

// queryInt reads a non-negative integer query parameter; anything else is 0.
func queryInt(c *gin.Context, name string) int64 {
	n, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
