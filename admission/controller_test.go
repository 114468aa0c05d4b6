package admission

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/go-stagepass-core/audit"
	"github.com/stagepass/go-stagepass-core/health"
	"github.com/stagepass/go-stagepass-core/limiter"
	"github.com/stagepass/go-stagepass-core/logger"
)

type staticHealth struct {
	class health.Classification
	load  float64
}

func (s *staticHealth) Snapshot() *health.Snapshot {
	return &health.Snapshot{
		CPUPercent:     s.load,
		Classification: s.class,
		LastUpdatedAt:  time.Now(),
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureSink) Emit(event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) byType(t audit.EventType) []audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []audit.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestController(t *testing.T, cfg Config, class health.Classification, opts ...Option) (*Controller, *captureSink) {
	t.Helper()

	lim := limiter.New(limiter.NewMemoryStore(), limiter.WithLogger(logger.NewNopLogger("limiter")))
	t.Cleanup(func() { _ = lim.Close() })

	sink := &captureSink{}
	opts = append([]Option{
		WithLogger(logger.NewNopLogger("admission")),
		WithAuditSink(sink),
	}, opts...)

	c, err := NewController(cfg, lim, &staticHealth{class: class}, opts...)
	require.NoError(t, err)
	return c, sink
}

func apiRequest(ip string) Request {
	return Request{
		Method:    http.MethodGet,
		Path:      "/api/events",
		ClientIP:  ip,
		UserAgent: "Mozilla/5.0",
	}
}

func TestController_IPTierGovernsBeforeGlobal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Caps = TierCaps{Global: 100, IP: 60, User: 200, Anonymous: 60, Endpoint: 1000}
	cfg.EndpointMultipliers = nil
	c, sink := newTestController(t, cfg, health.ClassHealthy)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		v := c.Check(ctx, apiRequest("10.0.0.1"))
		require.True(t, v.Allowed, "request %d", i+1)
	}

	// 61st request from the same IP: rejected by the ip tier even
	// though the global count is only 61 of 100
	v := c.Check(ctx, apiRequest("10.0.0.1"))
	assert.False(t, v.Allowed)
	assert.Equal(t, TierIP, v.LimitingTier)
	assert.Equal(t, http.StatusTooManyRequests, v.StatusCode())
	assert.Equal(t, int64(60), v.Limit)
	assert.Equal(t, int64(0), v.Remaining)
	assert.Greater(t, v.RetryAfter, time.Duration(0))

	throttled := sink.byType(audit.EventThrottled)
	require.Len(t, throttled, 1)
	assert.Equal(t, "ip", throttled[0].Details["limitType"])
}

func TestController_GlobalRejectionIs503AndSuspect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Caps = TierCaps{Global: 3, IP: 100, User: 100, Anonymous: 100, Endpoint: 100}
	cfg.EndpointMultipliers = nil
	c, sink := newTestController(t, cfg, health.ClassHealthy)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, c.Check(ctx, apiRequest("10.0.0.2")).Allowed)
	}

	v := c.Check(ctx, apiRequest("10.0.0.2"))
	assert.False(t, v.Allowed)
	assert.Equal(t, TierGlobal, v.LimitingTier)
	assert.Equal(t, http.StatusServiceUnavailable, v.StatusCode())
	assert.True(t, v.Suspect, "global-tier rejections are always suspect")
	assert.Len(t, sink.byType(audit.EventDDoSSuspect), 1)
}

func TestController_AnonymousVsUserTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Caps = TierCaps{Global: 1000, IP: 1000, User: 100, Anonymous: 2, Endpoint: 1000}
	cfg.EndpointMultipliers = nil
	c, _ := newTestController(t, cfg, health.ClassHealthy)
	ctx := context.Background()

	anon := apiRequest("10.0.0.3")
	require.True(t, c.Check(ctx, anon).Allowed)
	require.True(t, c.Check(ctx, anon).Allowed)

	v := c.Check(ctx, anon)
	assert.False(t, v.Allowed)
	assert.Equal(t, TierAnonymous, v.LimitingTier)

	// a logged-in user from the same address rides the user tier
	authed := apiRequest("10.0.0.3")
	authed.UserID = "user-77"
	assert.True(t, c.Check(ctx, authed).Allowed)
}

func TestController_AdaptiveScalingNonIncreasing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Caps = TierCaps{Global: 100, IP: 100, User: 100, Anonymous: 100, Endpoint: 100}
	cfg.EndpointMultipliers = nil

	admittedUnder := func(class health.Classification) int {
		c, _ := newTestController(t, cfg, class)
		ctx := context.Background()
		admitted := 0
		for i := 0; i < 120; i++ {
			if c.Check(ctx, apiRequest("10.0.0.4")).Allowed {
				admitted++
			}
		}
		return admitted
	}

	healthy := admittedUnder(health.ClassHealthy)
	stressed := admittedUnder(health.ClassStressed)
	critical := admittedUnder(health.ClassCritical)

	assert.Equal(t, 100, healthy)
	assert.Equal(t, 70, stressed)
	assert.Equal(t, 50, critical)
	assert.GreaterOrEqual(t, healthy, stressed)
	assert.GreaterOrEqual(t, stressed, critical)
}

func TestController_EndpointMultiplierLongestPrefix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Caps = TierCaps{Global: 10000, IP: 10000, User: 10000, Anonymous: 10000, Endpoint: 10}
	cfg.EndpointMultipliers = map[string]float64{
		"/api":      1.0,
		"/api/auth": 0.3,
	}
	c, _ := newTestController(t, cfg, health.ClassHealthy)
	ctx := context.Background()

	login := Request{Method: http.MethodPost, Path: "/api/auth/login", ClientIP: "10.0.0.5", UserAgent: "Mozilla/5.0"}

	// 10 * 0.3 = cap of 3 on the auth endpoint
	admitted := 0
	for i := 0; i < 10; i++ {
		if c.Check(ctx, login).Allowed {
			admitted++
		}
	}
	assert.Equal(t, 3, admitted)

	v := c.Check(ctx, login)
	assert.Equal(t, TierEndpoint, v.LimitingTier)
}

func TestController_ExemptPathsAndMethods(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Caps = TierCaps{Global: 1, IP: 1, User: 1, Anonymous: 1, Endpoint: 1}
	c, _ := newTestController(t, cfg, health.ClassStressed)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		v := c.Check(ctx, Request{Method: http.MethodGet, Path: "/health", ClientIP: "10.0.0.6"})
		require.True(t, v.Allowed)
		require.True(t, v.Exempt)
	}

	v := c.Check(ctx, Request{Method: http.MethodOptions, Path: "/api/events", ClientIP: "10.0.0.6"})
	assert.True(t, v.Exempt)
	assert.Equal(t, health.ClassStressed, v.SystemHealth, "exempt verdicts still carry health")
}

func TestController_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	c, _ := newTestController(t, cfg, health.ClassCritical)

	v := c.Check(context.Background(), apiRequest("10.0.0.7"))
	assert.True(t, v.Allowed)
	assert.True(t, v.Exempt)
}

func TestController_AdmittedVerdictReflectsTightestTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Caps = TierCaps{Global: 1000, IP: 5, User: 1000, Anonymous: 1000, Endpoint: 1000}
	cfg.EndpointMultipliers = nil
	c, _ := newTestController(t, cfg, health.ClassHealthy)

	v := c.Check(context.Background(), apiRequest("10.0.0.8"))
	require.True(t, v.Allowed)
	assert.Equal(t, TierIP, v.LimitingTier)
	assert.Equal(t, int64(5), v.Limit)
	assert.Equal(t, int64(4), v.Remaining)
}

type failingStore struct{}

func (failingStore) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("store unreachable")
}

func (failingStore) Close() error { return nil }

func TestController_FailsOpenOnStoreFailure(t *testing.T) {
	var storeFailures int
	var mu sync.Mutex

	bus := limiter.NewEventBus(64)
	bus.Subscribe(limiter.EventListenerFunc(func(event limiter.Event) {
		if event.Type() == limiter.EventStoreFailure {
			mu.Lock()
			storeFailures++
			mu.Unlock()
		}
	}))

	lim := limiter.New(failingStore{},
		limiter.WithLogger(logger.NewNopLogger("limiter")),
		limiter.WithEventBus(bus))
	t.Cleanup(func() { _ = lim.Close() })

	c, err := NewController(DefaultConfig(), lim, &staticHealth{class: health.ClassHealthy},
		WithLogger(logger.NewNopLogger("admission")))
	require.NoError(t, err)

	v := c.Check(context.Background(), apiRequest("10.0.0.9"))
	assert.True(t, v.Allowed, "store failure must fail open")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return storeFailures == 4
	}, time.Second, 10*time.Millisecond, "one failure event per tier check")
}

func TestHeuristicClassifier(t *testing.T) {
	classifier := NewHeuristicClassifier(300)

	suspect, reason := classifier.Classify(apiRequest("1.1.1.1"), TierGlobal, 10)
	assert.True(t, suspect)
	assert.NotEmpty(t, reason)

	suspect, _ = classifier.Classify(apiRequest("1.1.1.1"), TierIP, 301)
	assert.True(t, suspect, "count above absolute threshold")

	bot := apiRequest("1.1.1.1")
	bot.UserAgent = "python-requests/2.31"
	suspect, _ = classifier.Classify(bot, TierIP, 10)
	assert.True(t, suspect, "automation user-agent")

	suspect, _ = classifier.Classify(apiRequest("1.1.1.1"), TierIP, 10)
	assert.False(t, suspect)
}

func TestConfig_MultiplierLongestPrefixWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EndpointMultipliers = map[string]float64{
		"/api":        1.0,
		"/api/auth":   0.4,
		"/api/auth/2": 0.1,
	}
	assert.Equal(t, 0.1, cfg.multiplierFor("/api/auth/2fa"))
	assert.Equal(t, 0.4, cfg.multiplierFor("/api/auth/login"))
	assert.Equal(t, 1.0, cfg.multiplierFor("/api/events"))
	assert.Equal(t, 1.0, cfg.multiplierFor("/other"))
}
