package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaidashi/laundry-order-api/internal/models"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

type actorKey struct{}

// Claims is the bearer token body. The subject is the caller id.
type Claims struct {
	Role      models.ActorRole `json:"role"`
	LaundryID string           `json:"laundry_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator returns an error for an empty secret
func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// Authenticate turns a raw token into the calling actor
func (a *Authenticator) Authenticate(raw string) (models.Actor, error) {
	claims := &Claims{}

	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, apperrors.NewUnauthorizedError("Invalid or expired token")
	}

	if claims.Subject == "" {
		return models.Actor{}, apperrors.NewUnauthorizedError("Token has no subject")
	}

	switch claims.Role {
	case models.RoleCustomer, models.RoleAdmin:
	case models.RoleLaundry:
		if claims.LaundryID == "" {
			return models.Actor{}, apperrors.NewUnauthorizedError("Laundry token has no laundry_id")
		}
	default:
		return models.Actor{}, apperrors.NewUnauthorizedError("Unknown role")
	}

	return models.Actor{ID: claims.Subject, Role: claims.Role, LaundryID: claims.LaundryID}, nil
}

// Middleware rejects requests without a valid bearer token and stores the actor in the context
func (a *Authenticator) Middleware(respond func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				respond(w, apperrors.NewUnauthorizedError("Missing bearer token"))
				return
			}

			actor, err := a.Authenticate(strings.TrimSpace(raw))
			if err != nil {
				respond(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

func withActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the authenticated caller, if any
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}

// actorRateKey keys the rate limiter by caller. An empty key falls back to the client IP.
func actorRateKey(r *http.Request) string {
	if actor, ok := ActorFrom(r.Context()); ok {
		return string(actor.Role) + ":" + actor.ID
	}
	return ""
}
