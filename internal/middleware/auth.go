package middleware

import (
	"context"
	"strings"

	"flashcards/internal/apperr"
	"flashcards/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const currentUserKey = "current_user"

// Authenticator resolves an access token to the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// AuthMiddleware admits requests carrying a valid access token for an existing user
// and stores that user in the context.
func AuthMiddleware(auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, logger, apperr.ErrUnauthenticated)
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			AbortWithError(c, logger, err)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, tokenString, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" || strings.ContainsAny(tokenString, " \t") {
		return "", false
	}
	return tokenString, true
}

// CurrentUser returns the user AuthMiddleware resolved. It panics on routes the
// middleware does not guard.
func CurrentUser(c *gin.Context) *models.User {
	return c.MustGet(currentUserKey).(*models.User)
}
