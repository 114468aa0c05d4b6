package admission

import (
	"net/http"
	"time"

	"github.com/stagepass/go-stagepass-core/health"
)

// Tier names an admission dimension. Each tier is enforced
// independently with its own key and cap.
type Tier string

const (
	TierGlobal    Tier = "global"
	TierIP        Tier = "ip"
	TierUser      Tier = "user"
	TierAnonymous Tier = "anonymous"
	TierEndpoint  Tier = "endpoint"
)

// Request is the slice of an inbound request admission needs. No
// bodies, no credentials.
type Request struct {
	Method    string
	Path      string
	ClientIP  string
	UserID    string // empty for anonymous callers
	UserAgent string
}

// Verdict is the outcome of one admission check, consumed immediately
// by the HTTP layer and never persisted.
type Verdict struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Exempt marks a request that skipped admission entirely.
	Exempt bool

	// LimitingTier is the tier that rejected, or on admission the tier
	// with the smallest remaining budget.
	LimitingTier Tier

	// Limit and Remaining describe the governing tier's window.
	Limit     int64
	Remaining int64

	// Current is the governing tier's window occupancy.
	Current int64

	// ResetAt is when the governing window expires.
	ResetAt time.Time

	// RetryAfter is the suggested wait, set only on rejection.
	RetryAfter time.Duration

	// SystemHealth and SystemLoad mirror the health snapshot consulted.
	SystemHealth health.Classification
	SystemLoad   float64

	// Suspect marks a rejection that matched the DDoS heuristics. It
	// never changes the admit/reject decision.
	Suspect       bool
	SuspectReason string
}

// StatusCode maps the verdict to an HTTP status: 503 when the global
// tier rejected (system-wide overload), 429 for any other tier.
func (v *Verdict) StatusCode() int {
	if v.Allowed {
		return http.StatusOK
	}
	if v.LimitingTier == TierGlobal {
		return http.StatusServiceUnavailable
	}
	return http.StatusTooManyRequests
}
