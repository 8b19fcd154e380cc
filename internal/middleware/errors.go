package middleware

import (
	"errors"
	"net/http"

	"flashcards/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AbortWithError writes err as the JSON error body for its status and stops the chain.
// Unauthenticated responses carry a Bearer challenge. Server errors are logged here and
// their detail never reaches the client.
func AbortWithError(c *gin.Context, logger *zap.Logger, err error) {
	status, message := apperr.Status(err)

	body := gin.H{"error": message}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}

	switch {
	case status == http.StatusUnauthorized:
		c.Header("WWW-Authenticate", "Bearer")
	case status >= http.StatusInternalServerError:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", RequestID(c)),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, body)
}
