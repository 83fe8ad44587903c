package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	userKey        contextKey = "current_user"
	cartSessionKey contextKey = "cart_session"

	CartSessionCookie = "cart_session"
	cartSessionMaxAge = 30 * 24 * time.Hour
)

// Claims are the JWT claims issued by the auth service. Subject carries the uid.
type Claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Address     string `json:"address,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// OptionalAuth resolves the current user from a bearer token. A missing or
// invalid token leaves the request anonymous instead of rejecting it.
func OptionalAuth(secret []byte, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := parseUser(tokenString, secret)
			if err != nil {
				log.DebugContext(r.Context(), "ignoring invalid bearer token", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseUser(tokenString string, secret []byte) (*domain.CurrentUser, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &domain.CurrentUser{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		PhoneNumber: claims.PhoneNumber,
		Address:     claims.Address,
		Role:        claims.Role,
	}, nil
}

// CartSession gives every anonymous visitor a stable cart key via a cookie.
func CartSession(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := ""
			if c, err := r.Cookie(CartSessionCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					session = c.Value
				}
			}
			if session == "" {
				session = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CartSessionCookie,
					Value:    session,
					Path:     "/",
					MaxAge:   int(cartSessionMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), cartSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r.Context())
		if user == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		if !user.IsAdmin() {
			respondError(w, http.StatusForbidden, "permission_denied", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(ctx context.Context) *domain.CurrentUser {
	if user, ok := ctx.Value(userKey).(*domain.CurrentUser); ok {
		return user
	}
	return nil
}

// cartOwner keys the cart by uid when signed in and by the session cookie otherwise.
func cartOwner(ctx context.Context) string {
	if user := currentUser(ctx); user != nil {
		return "user:" + user.UID
	}
	if session, ok := ctx.Value(cartSessionKey).(string); ok && session != "" {
		return "guest:" + session
	}
	return ""
}

// WithUser returns a copy of ctx carrying user, for callers that authenticate elsewhere.
func WithUser(ctx context.Context, user *domain.CurrentUser) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// MaxBodySize caps request bodies at n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
