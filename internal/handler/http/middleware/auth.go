package middleware

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type actorKey struct{}

// AuthRequired rejects requests without a verified access token and stores the
// caller as a payroll.Actor on the request context.
func AuthRequired(next http.Handler) http.Handler {
	hfn := func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}
		if token == nil {
			response.Unauthorized(w, "Missing token")
			return
		}

		c, err := jwt.ClaimsFromMap(claims)
		if err != nil {
			response.HandleError(w, err)
			return
		}

		actor := payroll.Actor{UserID: c.UserID, CompanyID: c.CompanyID, Role: c.Role}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	}
	return http.HandlerFunc(hfn)
}

func WithActor(ctx context.Context, actor payroll.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller set by AuthRequired.
func ActorFromContext(ctx context.Context) (payroll.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(payroll.Actor)
	return actor, ok
}
