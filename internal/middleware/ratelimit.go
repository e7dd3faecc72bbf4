package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// RateLimitMiddleware limits requests per client using fixed windows in
// Redis. Keys carry the window bucket, so a counter whose EXPIRE was lost
// still stops mattering once the window rolls over. Authenticated clients
// are keyed by user id, anonymous ones by remote address. Redis being
// unreachable fails open: reservations keep working without limiting.
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	windowSecs := int64(config.Window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.RemoteAddr
			if userID, ok := GetUserID(r.Context()); ok {
				clientID = userID
			}

			ctx := r.Context()
			bucket := time.Now().Unix() / windowSecs
			key := fmt.Sprintf("%s:%s:%d", config.KeyPrefix, clientID, bucket)

			count, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("Failed to increment rate limit counter",
					zap.Error(err),
					zap.String("key", key),
				)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				// Two windows so a clock-skewed reader still sees the key.
				redisClient.Expire(ctx, key, 2*config.Window)
			}

			windowEnd := time.Unix((bucket+1)*windowSecs, 0)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))

			if count > int64(config.RequestsPerWindow) {
				retryAfter := time.Until(windowEnd)
				if retryAfter < time.Second {
					retryAfter = time.Second
				}

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(windowEnd.Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))

				respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(config.RequestsPerWindow-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}
