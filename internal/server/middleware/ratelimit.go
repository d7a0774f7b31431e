package middleware

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"orgsession/internal/server/httpx"
)

const signInLimiterPrefix = "orgsession_signin"

// NewSignInLimiter builds a per-IP limiter from a formatted rate such as "10-M".
// Counters live in Redis when client is non-nil so every replica shares them.
func NewSignInLimiter(rate string, client redis.UniversalClient) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", rate, err)
	}
	var store limiter.Store
	if client != nil {
		store, err = redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: signInLimiterPrefix})
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{Prefix: signInLimiterPrefix})
	}
	return limiter.New(store, r), nil
}

// RateLimit enforces l per client IP and answers 429 once the budget is spent.
func RateLimit(l *limiter.Limiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "rate_limit").Logger()
	mw := stdlib.NewMiddleware(l,
		stdlib.WithKeyGetter(ClientIPFromRequest),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			log.Warn().Str("client_ip", ClientIPFromRequest(r)).Str("path", r.URL.Path).Msg("rate limit exceeded")
			httpx.RespondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many requests, try again later"})
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error().Err(err).Msg("rate limit store unavailable")
			httpx.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
		}),
	)
	return mw.Handler
}
