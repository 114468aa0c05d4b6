// Package gateway guards outbound dependency calls. Each named
// dependency gets its own circuit breaker, per-minute sliding-window
// cap, bounded exponential-backoff retry and a TTL cache for
// declared-cacheable GET responses.
//
// Error surface: breaker open maps to ErrDependencyUnavailable, the
// dependency cap to ErrDependencyThrottled, exhausted retries to
// ErrDependencyFailure. 4xx responses are the caller's problem and
// pass through untouched.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stagepass/go-stagepass-core/breaker"
	"github.com/stagepass/go-stagepass-core/errcode"
	"github.com/stagepass/go-stagepass-core/httpclient"
	"github.com/stagepass/go-stagepass-core/limiter"
	"github.com/stagepass/go-stagepass-core/logger"
	"github.com/stagepass/go-stagepass-core/retry"
)

const depWindow = time.Minute

// Gateway fronts every outbound dependency.
type Gateway struct {
	config   Config
	breakers *breaker.Manager
	limiter  *limiter.Limiter
	clients  map[string]*httpclient.Client
	cache    *responseCache
	backoff  retry.BackoffStrategy
	logger   *logger.CtxZapLogger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger overrides the default module logger.
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(g *Gateway) { g.logger = log }
}

// WithRetryBackoff overrides the delay strategy between retry
// attempts (default exponential from 1s, capped at 10s).
func WithRetryBackoff(strategy retry.BackoffStrategy) Option {
	return func(g *Gateway) { g.backoff = strategy }
}

// New creates a gateway over the shared sliding-window limiter.
// Breaker circuits are created per declared dependency at startup.
func New(config Config, lim *limiter.Limiter, opts ...Option) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}

	breakerCfg := breaker.DefaultConfig()
	breakerCfg.Default = breaker.ResourceConfig{
		FailureThreshold: config.Default.FailureThreshold,
		RecoveryTimeout:  config.Default.RecoveryTimeout,
	}

	g := &Gateway{
		config:  config,
		limiter: lim,
		clients: make(map[string]*httpclient.Client, len(config.Dependencies)),
		cache:   newResponseCache(),
		backoff: retry.ExponentialBackoff(time.Second),
		logger:  logger.GetLogger("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}

	for name := range config.Dependencies {
		dep, _ := config.resolve(name)
		breakerCfg.Resources[name] = breaker.ResourceConfig{
			FailureThreshold: dep.FailureThreshold,
			RecoveryTimeout:  dep.RecoveryTimeout,
		}
		g.clients[name] = httpclient.NewClient(
			httpclient.WithBaseURL(dep.BaseURL),
			httpclient.WithTimeout(dep.Timeout),
		)
	}

	breakers, err := breaker.NewManager(breakerCfg, breaker.WithLogger(g.logger))
	if err != nil {
		return nil, err
	}
	g.breakers = breakers
	return g, nil
}

// CallOption tunes a single call.
type CallOption func(*callConfig)

// Fallback produces a substitute response when the guarded call fails
// terminally (breaker open, cap hit, retries exhausted).
type Fallback func(ctx context.Context, cause error) (*httpclient.Response, error)

type callConfig struct {
	cacheable bool
	cacheKey  string
	fallback  Fallback
}

// Cacheable marks the call's 2xx response as cacheable under the
// request's canonical signature. GET only.
func Cacheable() CallOption {
	return func(c *callConfig) { c.cacheable = true }
}

// WithCacheKey marks the call cacheable under an explicit key.
func WithCacheKey(key string) CallOption {
	return func(c *callConfig) {
		c.cacheable = true
		c.cacheKey = key
	}
}

// WithFallback registers a degraded-mode response for terminal
// failures. Caller errors (4xx) are never routed to the fallback.
func WithFallback(fallback Fallback) CallOption {
	return func(c *callConfig) { c.fallback = fallback }
}

// Call executes req against the named dependency through the full
// guard chain: breaker, cache, per-dependency cap, retries.
func (g *Gateway) Call(ctx context.Context, dependency string, req *httpclient.Request, opts ...CallOption) (*httpclient.Response, error) {
	dep, exists := g.config.resolve(dependency)
	if !exists {
		return nil, fmt.Errorf("unknown dependency %q", dependency)
	}

	callCfg := &callConfig{}
	for _, opt := range opts {
		opt(callCfg)
	}
	cacheable := callCfg.cacheable && req.Method == http.MethodGet && dep.CacheTTL > 0
	cacheKey := callCfg.cacheKey
	if cacheable && cacheKey == "" {
		cacheKey = canonicalSignature(dependency, req)
	}

	if err := g.breakers.Allow(ctx, dependency); err != nil {
		return g.fail(ctx, callCfg, errcode.ErrDependencyUnavailable.
			WithData("dependency", dependency).
			WithData("state", g.breakers.GetState(dependency).String()).
			Wrap(err))
	}

	// an admitted call may hold the half-open probe slot; if it ends
	// without a recorded outcome (cache hit, cap rejection, 4xx,
	// cancellation) the slot must be released or the circuit wedges
	outcomeRecorded := false
	defer func() {
		if !outcomeRecorded {
			g.breakers.ReleaseProbe(dependency)
		}
	}()

	if cacheable {
		if resp, hit := g.cache.get(cacheKey); hit {
			g.logger.DebugCtx(ctx, "cache hit",
				zap.String("dependency", dependency),
				zap.String("cache_key", cacheKey))
			return resp, nil
		}
	}

	if dep.RequestsPerMinute > 0 {
		result := g.limiter.Check(ctx, "dep:"+dependency, dep.RequestsPerMinute, depWindow)
		if !result.Allowed {
			g.logger.WarnCtx(ctx, "dependency cap hit",
				zap.String("dependency", dependency),
				zap.Int64("count", result.Count),
				zap.Int64("limit", result.Limit),
				zap.Duration("retry_after", result.RetryAfter))
			return g.fail(ctx, callCfg, errcode.ErrDependencyThrottled.
				WithData("dependency", dependency).
				WithData("limit", result.Limit).
				WithData("retryAfter", int(result.RetryAfter.Seconds())))
		}
	}

	client := g.clients[dependency]
	resp, err := retry.DoWithData(ctx, func(ctx context.Context) (*httpclient.Response, error) {
		resp, callErr := client.Do(ctx, req)
		if callErr == nil {
			outcomeRecorded = true
			g.breakers.RecordSuccess(ctx, dependency)
			return resp, nil
		}
		if httpclient.IsDependencyFault(callErr) {
			outcomeRecorded = true
			g.breakers.RecordFailure(ctx, dependency)
			return nil, callErr
		}
		// caller errors and cancellations are terminal and leave the
		// breaker untouched
		return nil, retry.Unrecoverable(callErr)
	},
		retry.WithMaxAttempts(dep.MaxAttempts),
		retry.WithBackoff(g.backoff),
		retry.WithRetryIf(httpclient.IsDependencyFault),
		retry.WithOnRetry(func(attempt int, attemptErr error) {
			g.logger.WarnCtx(ctx, "dependency call failed, retrying",
				zap.String("dependency", dependency),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", dep.MaxAttempts),
				zap.Error(attemptErr))
		}),
	)
	if err != nil {
		if httpclient.IsCallerFault(err) || ctx.Err() != nil {
			return nil, err
		}
		return g.fail(ctx, callCfg, errcode.ErrDependencyFailure.
			WithData("dependency", dependency).
			WithData("maxAttempts", dep.MaxAttempts).
			Wrap(err))
	}

	if cacheable {
		g.cache.set(cacheKey, resp, dep.CacheTTL)
	}
	return resp, nil
}

// Get executes a GET against the dependency.
func (g *Gateway) Get(ctx context.Context, dependency, path string, opts ...CallOption) (*httpclient.Response, error) {
	return g.Call(ctx, dependency, httpclient.NewGetRequest(path), opts...)
}

// Post executes a POST with a JSON body. Never cached.
func (g *Gateway) Post(ctx context.Context, dependency, path string, data any) (*httpclient.Response, error) {
	return g.Call(ctx, dependency, httpclient.NewPostRequest(path).WithJSON(data))
}

// BreakerState returns the circuit state for a dependency.
func (g *Gateway) BreakerState(dependency string) breaker.State {
	return g.breakers.GetState(dependency)
}

// Breakers exposes the breaker manager for audit subscription.
func (g *Gateway) Breakers() *breaker.Manager {
	return g.breakers
}

// Close shuts the breaker manager down. The shared limiter is owned
// by the caller.
func (g *Gateway) Close() {
	g.breakers.Close()
}

// fail routes a terminal error to the call's fallback when one is
// registered.
func (g *Gateway) fail(ctx context.Context, cfg *callConfig, err error) (*httpclient.Response, error) {
	if cfg.fallback != nil {
		return cfg.fallback(ctx, err)
	}
	return nil, err
}

// canonicalSignature derives the cache key from the request shape.
func canonicalSignature(dependency string, req *httpclient.Request) string {
	sig := dependency + ":" + req.Method + ":" + req.URL
	if len(req.Query) > 0 {
		sig += "?" + req.Query.Encode()
	}
	return sig
}
