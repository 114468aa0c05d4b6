// Package middleware carries the gin handlers that front every route:
// trace ID propagation and the admission throttle.
package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stagepass/go-stagepass-core/admission"
	"github.com/stagepass/go-stagepass-core/errcode"
)

// UserIDExtractor resolves the authenticated user for the identity
// tier. Return "" for anonymous callers.
type UserIDExtractor func(c *gin.Context) string

// ThrottleOption configures the throttle middleware.
type ThrottleOption func(*throttleConfig)

type throttleConfig struct {
	extractUserID UserIDExtractor
}

// WithUserIDExtractor overrides the default extractor (the "user_id"
// value an auth middleware stores on the gin context).
func WithUserIDExtractor(extract UserIDExtractor) ThrottleOption {
	return func(c *throttleConfig) { c.extractUserID = extract }
}

// Throttle gates every request through the admission controller and
// writes the rate headers on admitted and rejected responses alike.
func Throttle(controller *admission.Controller, opts ...ThrottleOption) gin.HandlerFunc {
	cfg := &throttleConfig{
		extractUserID: func(c *gin.Context) string { return c.GetString("user_id") },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		req := admission.Request{
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			ClientIP:  c.ClientIP(),
			UserID:    cfg.extractUserID(c),
			UserAgent: c.Request.UserAgent(),
		}

		verdict := controller.Check(c.Request.Context(), req)
		writeHeaders(c, verdict)

		if !verdict.Allowed {
			c.AbortWithStatusJSON(verdict.StatusCode(), rejectionBody(verdict, req.Path))
			return
		}
		c.Next()
	}
}

func writeHeaders(c *gin.Context, v *admission.Verdict) {
	c.Header("X-System-Health", string(v.SystemHealth))
	c.Header("X-System-Load", strconv.FormatFloat(v.SystemLoad, 'f', 1, 64))

	if v.Exempt {
		return
	}

	c.Header("X-RateLimit-Limit", strconv.FormatInt(v.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(v.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(v.ResetAt.Unix(), 10))
	c.Header("X-RateLimit-Type", string(v.LimitingTier))

	if !v.Allowed {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(v)))
	}
}

func rejectionBody(v *admission.Verdict, endpoint string) gin.H {
	code := errcode.ErrCallerRejected
	message := fmt.Sprintf("rate limit exceeded for %s tier, retry after %d seconds",
		v.LimitingTier, retryAfterSeconds(v))
	if v.LimitingTier == admission.TierGlobal {
		code = errcode.ErrSystemOverload
		message = "system overloaded, please back off and retry later"
	}

	return gin.H{
		"success":   false,
		"message":   message,
		"errorCode": code.Key(),
		"details": gin.H{
			"limitType":    string(v.LimitingTier),
			"limit":        v.Limit,
			"current":      v.Current,
			"retryAfter":   retryAfterSeconds(v),
			"systemHealth": string(v.SystemHealth),
			"endpoint":     endpoint,
		},
		"retryAfter": retryAfterSeconds(v),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
}

// retryAfterSeconds rounds up so a caller never retries early.
func retryAfterSeconds(v *admission.Verdict) int {
	secs := int(v.RetryAfter.Seconds())
	if v.RetryAfter > time.Duration(secs)*time.Second {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
