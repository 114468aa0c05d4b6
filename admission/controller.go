// Package admission is the inbound gate: every request is checked
// against four independent sliding-window tiers (global, IP,
// user-or-anonymous, endpoint) whose caps adapt to current system
// health. The four checks run concurrently; the verdict comes from the
// tier that rejected, or on admission from the tightest tier.
//
// Fail-open discipline: limiter store failures admit the request; the
// controller never turns an infrastructure error into a user-facing
// rejection.
package admission

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stagepass/go-stagepass-core/audit"
	"github.com/stagepass/go-stagepass-core/health"
	"github.com/stagepass/go-stagepass-core/limiter"
	"github.com/stagepass/go-stagepass-core/logger"
)

const keyPrefix = "admission:"

// Controller decides whether an inbound request may proceed.
type Controller struct {
	config     Config
	limiter    *limiter.Limiter
	health     health.Reader
	classifier SuspectClassifier
	sink       audit.Sink
	logger     *logger.CtxZapLogger
	metrics    *otelMetrics
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger overrides the default module logger.
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(c *Controller) { c.logger = log }
}

// WithAuditSink attaches the audit trail.
func WithAuditSink(sink audit.Sink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithClassifier swaps the DDoS suspect classifier.
func WithClassifier(classifier SuspectClassifier) Option {
	return func(c *Controller) { c.classifier = classifier }
}

// NewController creates a controller over the shared limiter and the
// health reader.
func NewController(config Config, lim *limiter.Limiter, healthReader health.Reader, opts ...Option) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		config:  config,
		limiter: lim,
		health:  healthReader,
		sink:    audit.NopSink{},
		logger:  logger.GetLogger("admission"),
		metrics: newOtelMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.classifier == nil {
		c.classifier = NewHeuristicClassifier(config.DDoSCountThreshold)
	}
	return c, nil
}

type tierCheck struct {
	tier   Tier
	key    string
	cap    int64
	result *limiter.Result
}

// Check runs the admission decision for one request.
func (c *Controller) Check(ctx context.Context, req Request) *Verdict {
	snap := c.snapshot()

	if !c.config.Enabled || c.exempt(req) {
		return &Verdict{
			Allowed:      true,
			Exempt:       true,
			SystemHealth: snap.Classification,
			SystemLoad:   snap.Load(),
		}
	}

	checks := c.buildChecks(req, snap.Classification)

	// the four keys are independent; fire all checks at once and wait
	// for the slowest rather than summing four round-trips
	g, gctx := errgroup.WithContext(ctx)
	for i := range checks {
		check := &checks[i]
		g.Go(func() error {
			check.result = c.limiter.Check(gctx, check.key, check.cap, c.config.Window)
			return nil
		})
	}
	_ = g.Wait()

	for i := range checks {
		if !checks[i].result.Allowed {
			return c.reject(ctx, req, &checks[i], snap)
		}
	}
	return c.admit(ctx, checks, snap)
}

func (c *Controller) snapshot() *health.Snapshot {
	if c.health == nil {
		return &health.Snapshot{Classification: health.ClassHealthy}
	}
	return c.health.Snapshot()
}

func (c *Controller) exempt(req Request) bool {
	for _, m := range c.config.ExemptMethods {
		if strings.EqualFold(req.Method, m) {
			return true
		}
	}
	for _, p := range c.config.ExemptPaths {
		if strings.HasPrefix(req.Path, p) {
			return true
		}
	}
	return false
}

// buildChecks computes the four tier keys and their adaptive caps.
func (c *Controller) buildChecks(req Request, class health.Classification) []tierCheck {
	scale := 1.0
	switch class {
	case health.ClassStressed:
		scale = c.config.StressedScale
	case health.ClassCritical:
		scale = c.config.CriticalScale
	}

	identityTier := TierUser
	identityKey := keyPrefix + "user:" + req.UserID
	identityCap := c.config.Caps.User
	if req.UserID == "" {
		identityTier = TierAnonymous
		identityKey = keyPrefix + "anon:" + req.ClientIP
		identityCap = c.config.Caps.Anonymous
	}

	endpointCap := float64(c.config.Caps.Endpoint) * c.config.multiplierFor(req.Path)

	return []tierCheck{
		{tier: TierGlobal, key: keyPrefix + "global:all", cap: scaleCap(float64(c.config.Caps.Global), scale)},
		{tier: TierIP, key: keyPrefix + "ip:" + req.ClientIP, cap: scaleCap(float64(c.config.Caps.IP), scale)},
		{tier: identityTier, key: identityKey, cap: scaleCap(float64(identityCap), scale)},
		{tier: TierEndpoint, key: keyPrefix + "endpoint:" + req.Path, cap: scaleCap(endpointCap, scale)},
	}
}

// scaleCap applies the health scale with a floor of 1.
func scaleCap(cap, scale float64) int64 {
	scaled := int64(cap * scale)
	if scaled < 1 {
		return 1
	}
	return scaled
}

func (c *Controller) admit(ctx context.Context, checks []tierCheck, snap *health.Snapshot) *Verdict {
	tightest := &checks[0]
	for i := range checks {
		if checks[i].result.Remaining < tightest.result.Remaining {
			tightest = &checks[i]
		}
	}

	c.metrics.recordAdmitted(ctx)
	return &Verdict{
		Allowed:      true,
		LimitingTier: tightest.tier,
		Limit:        tightest.result.Limit,
		Remaining:    tightest.result.Remaining,
		Current:      tightest.result.Count,
		ResetAt:      tightest.result.ResetAt,
		SystemHealth: snap.Classification,
		SystemLoad:   snap.Load(),
	}
}

func (c *Controller) reject(ctx context.Context, req Request, check *tierCheck, snap *health.Snapshot) *Verdict {
	verdict := &Verdict{
		Allowed:      false,
		LimitingTier: check.tier,
		Limit:        check.result.Limit,
		Remaining:    0,
		Current:      check.result.Count,
		ResetAt:      check.result.ResetAt,
		RetryAfter:   check.result.RetryAfter,
		SystemHealth: snap.Classification,
		SystemLoad:   snap.Load(),
	}
	verdict.Suspect, verdict.SuspectReason = c.classifier.Classify(req, check.tier, check.result.Count)

	c.metrics.recordRejected(ctx, check.tier)
	c.logger.WarnCtx(ctx, "request rejected",
		zap.String("tier", string(check.tier)),
		zap.String("key", check.key),
		zap.String("path", req.Path),
		zap.Int64("count", check.result.Count),
		zap.Int64("limit", check.result.Limit),
		zap.Duration("retry_after", check.result.RetryAfter),
		zap.String("system_health", string(snap.Classification)))

	details := map[string]any{
		"limitType":    string(check.tier),
		"limit":        check.result.Limit,
		"current":      check.result.Count,
		"retryAfter":   int(check.result.RetryAfter.Seconds()),
		"systemHealth": string(snap.Classification),
		"endpoint":     req.Path,
	}
	c.sink.Emit(audit.NewEvent(audit.EventThrottled, check.key, details))

	if verdict.Suspect {
		c.metrics.recordSuspect(ctx, check.tier)
		c.logger.WarnCtx(ctx, "ddos suspect",
			zap.String("tier", string(check.tier)),
			zap.String("client_ip", req.ClientIP),
			zap.String("reason", verdict.SuspectReason))
		c.sink.Emit(audit.NewEvent(audit.EventDDoSSuspect, check.key, map[string]any{
			"reason":    verdict.SuspectReason,
			"clientIp":  req.ClientIP,
			"userAgent": req.UserAgent,
			"endpoint":  req.Path,
		}))
	}
	return verdict
}
