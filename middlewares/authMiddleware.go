package middlewares

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeline_backend/appctx"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/utils"
)

// TokenVerifier resolves a bearer token to a principal.
type TokenVerifier interface {
	VerifyToken(token string) (*models.Principal, error)
}

// AuthMiddleware rejects requests without a valid bearer token and puts the
// principal on the request context otherwise.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := verifier.VerifyToken(bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := SetPrincipal(c.Request.Context(), *principal)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) string {
	const bearer = "Bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

func SetPrincipal(ctx context.Context, principal models.Principal) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyPrincipal, principal)
}

func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	return appctx.Get[models.Principal](ctx, appctx.ContextKeyPrincipal)
}

// AbortWithError writes the error response for err and stops the chain.
// Errors outside the taxonomy are attached to the gin context for the error
// logger.
func AbortWithError(c *gin.Context, err error) {
	status, body := utils.HTTPError(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
