package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"rental_marketplace/internal/domain"
	"rental_marketplace/internal/service"
	apperrors "rental_marketplace/pkg/errors"
	"rental_marketplace/pkg/logger"
)

const principalKey = "principal"

// IdentityMiddleware trusts HS256 tokens minted by the external identity
// provider and maps them onto local users.
type IdentityMiddleware struct {
	jwtSecret []byte
	issuer    string
	users     service.UserService
	log       logger.Logger
}

// IdentityClaims is the token body issued by the identity provider. The
// subject is the provider's stable user id.
type IdentityClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Picture     string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

func NewIdentityMiddleware(jwtSecret, issuer string, users service.UserService, log logger.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{
		jwtSecret: []byte(jwtSecret),
		issuer:    issuer,
		users:     users,
		log:       log,
	}
}

// RequireAuth rejects the request unless it carries a valid token.
func (m *IdentityMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := m.authenticate(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !principal.IsAuthenticated() {
			abortWithError(c, apperrors.Unauthenticated())
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// OptionalAuth resolves the principal when a valid token is present and
// otherwise continues as an anonymous viewer.
func (m *IdentityMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := m.authenticate(c)
		if err != nil {
			if apperrors.IsRetryable(err) {
				abortWithError(c, err)
				return
			}
			principal = domain.Anonymous()
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFrom(c).IsAdmin() {
			abortWithError(c, apperrors.Authorization("admin role required"))
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller resolved by the identity middleware, or
// the anonymous principal.
func PrincipalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Anonymous()
}

func SetPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalKey, principal)
}

// authenticate returns the anonymous principal when no token is supplied.
func (m *IdentityMiddleware) authenticate(c *gin.Context) (domain.Principal, error) {
	token, err := bearerToken(c)
	if err != nil {
		return domain.Anonymous(), err
	}
	if token == "" {
		return domain.Anonymous(), nil
	}

	claims, err := m.parseToken(token)
	if err != nil {
		m.log.Warn("Token validation failed", "error", err.Error())
		return domain.Anonymous(), apperrors.New(apperrors.ErrUnauthenticated, "invalid or expired token")
	}

	identity := domain.Identity{
		ExternalID:  claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}
	if claims.Picture != "" {
		picture := claims.Picture
		identity.AvatarURL = &picture
	}

	user, err := m.users.EnsureUser(c.Request.Context(), identity)
	if err != nil {
		m.log.Error("Failed to provision user", "external_id", claims.Subject, "error", err)
		return domain.Anonymous(), err
	}
	return user.Principal(), nil
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter that browsers use for WebSocket upgrades.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("access_token"), nil
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.New(apperrors.ErrUnauthenticated, "invalid authorization header format")
	}
	return parts[1], nil
}

func (m *IdentityMiddleware) parseToken(tokenString string) (*IdentityClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}
