package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "userID"

const (
	// CookieName carries the session token issued by the identity provider.
	CookieName = "auth_token"

	bearerPrefix = "Bearer "
)

var (
	errNoToken      = errors.New("no token")
	errNoSubject    = errors.New("token has no subject")
	errInvalidToken = errors.New("invalid token")
)

// AuthMiddleware admits requests that carry a valid HS256 token from the identity
// provider, either as a bearer token or in the auth_token cookie. The token subject
// becomes the user id.
type AuthMiddleware struct {
	secret []byte
	logger *zap.Logger
	parser *jwt.Parser
}

func NewAuthMiddleware(secret string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		logger: logger,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// RequireUser rejects unauthenticated requests with 401 before they reach next.
func (a *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.authenticate(r)
		if err != nil {
			if !errors.Is(err, errNoToken) {
				a.logger.Warn("Rejected token", zap.String("uri", r.RequestURI), zap.Error(err))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (a *AuthMiddleware) authenticate(r *http.Request) (string, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return "", errNoToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errInvalidToken
	}
	if claims.Subject == "" {
		return "", errNoSubject
	}

	return claims.Subject, nil
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}

	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}

	return ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}
