package http

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"keyward/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	anonymousIdentity = "anonymous"
	// identities longer than this are keyed by their sha256
	maxRateLimitIdentity = 128
)

// rateLimitSubject picks the bucket owner. A request carrying an API key is
// counted against that key so delegated callers do not share the anonymous
// bucket; the key itself never appears in limiter keys.
func rateLimitSubject(identity domain.Identity, apiKey string) string {
	if apiKey != "" {
		sum := sha256.Sum256([]byte(apiKey))
		return "apikey:" + hex.EncodeToString(sum[:16])
	}
	subject := string(identity)
	switch {
	case subject == "":
		return anonymousIdentity
	case len(subject) > maxRateLimitIdentity:
		sum := sha256.Sum256([]byte(subject))
		return "sha256:" + hex.EncodeToString(sum[:])
	}
	return subject
}

func rateLimitKey(method, subject string) string {
	return fmt.Sprintf("identity:%s:method:%s", subject, method)
}

func (s *Server) enforceRateLimit(c *gin.Context, method, id, subject string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := rateLimitKey(method, subject)
	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		s.log.Warn("rate limiter unavailable", zap.String("method", method), zap.Error(err))
		if s.rateLimitFailClosed {
			writeRateLimited(c, id, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeRateLimited(c, id, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimited(c *gin.Context, id, code, message string) {
	c.JSON(http.StatusTooManyRequests, rpcResponse{
		Code:   http.StatusTooManyRequests,
		ID:     id,
		Result: message,
		Error:  code,
	})
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if decision.ResetAt.IsZero() {
		return
	}
	c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	if !decision.Allowed {
		retryAfter := decision.RetryAfter(time.Now())
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter/time.Second), 10))
	}
}
