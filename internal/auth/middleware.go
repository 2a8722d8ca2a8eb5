package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/helpers"
)

const principalKey = "principal"

// Middleware rejects requests without a valid bearer token and stores
// the caller's principal on the context.
func Middleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, err.Error())
			c.Abort()
			return
		}

		claims, err := ValidateToken(cfg, tokenString)
		if err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, err.Error())
			c.Abort()
			return
		}

		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

// PrincipalFrom returns the principal set by Middleware.
func PrincipalFrom(c *gin.Context) (authz.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return authz.Principal{}, false
	}
	p, ok := v.(authz.Principal)
	return p, ok
}

// MustPrincipal is PrincipalFrom for routes behind Middleware.
func MustPrincipal(c *gin.Context) authz.Principal {
	p, ok := PrincipalFrom(c)
	if !ok {
		panic("auth: route is not behind auth.Middleware")
	}
	return p
}
