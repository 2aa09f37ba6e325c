package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewIPLimiter builds an in-memory per-IP limiter from a formatted rate such as "300-M".
func NewIPLimiter(formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	return limiter.New(memory.NewStore(), rate), nil
}

// RateLimit rejects requests once the caller's IP exceeds the limiter's rate.
func RateLimit(limiterInstance *limiter.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := limiterInstance.GetIPKey(r)

			lctx, err := limiterInstance.Get(r.Context(), ip)
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to get rate limit context", slog.String("ip", ip), slog.String("error", err.Error()))
				response.InternalServerError(w, "Internal server error during rate limit check")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				logger.WarnContext(r.Context(), "rate limit exceeded", slog.String("ip", ip), slog.Int64("limit", lctx.Limit))
				response.TooManyRequests(w, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
