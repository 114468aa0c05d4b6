package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/go-stagepass-core/logger"
)

type captureListener struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureListener) OnEvent(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureListener) transitionsTo(state State) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if sc, ok := e.(*StateChangedEvent); ok && sc.ToState == state {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *captureListener) {
	t.Helper()
	m, err := NewManager(cfg, WithLogger(logger.NewNopLogger("breaker")))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	capture := &captureListener{}
	if m.GetEventBus() != nil {
		m.GetEventBus().Subscribe(capture)
	}
	return m, capture
}

func TestManager_Disabled(t *testing.T) {
	m, _ := newTestManager(t, Config{Enabled: false})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		m.RecordFailure(ctx, "payments")
	}
	assert.NoError(t, m.Allow(ctx, "payments"))
	assert.Equal(t, StateClosed, m.GetState("payments"))
}

func TestManager_OpensAfterThresholdAndRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resources["payments"] = ResourceConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute}
	m, capture := newTestManager(t, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Allow(ctx, "payments"))
		m.RecordFailure(ctx, "payments")
	}
	assert.Equal(t, StateOpen, m.GetState("payments"))

	// the 6th call is rejected without any attempt
	err := m.Allow(ctx, "payments")
	assert.ErrorIs(t, err, ErrCircuitOpen)

	require.Eventually(t, func() bool {
		return capture.transitionsTo(StateOpen) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestManager_HalfOpenRecovery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resources["catalog"] = ResourceConfig{FailureThreshold: 2, RecoveryTimeout: 30 * time.Millisecond}
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	m.RecordFailure(ctx, "catalog")
	m.RecordFailure(ctx, "catalog")
	require.Equal(t, StateOpen, m.GetState("catalog"))

	time.Sleep(50 * time.Millisecond)

	// exactly one probe allowed through
	require.NoError(t, m.Allow(ctx, "catalog"))
	assert.Equal(t, StateHalfOpen, m.GetState("catalog"))
	assert.ErrorIs(t, m.Allow(ctx, "catalog"), ErrCircuitOpen)

	// probe success closes deterministically
	m.RecordSuccess(ctx, "catalog")
	assert.Equal(t, StateClosed, m.GetState("catalog"))
	assert.NoError(t, m.Allow(ctx, "catalog"))
}

func TestManager_IndependentCircuits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default = ResourceConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute}
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	m.RecordFailure(ctx, "payments")
	m.RecordFailure(ctx, "payments")

	assert.Equal(t, StateOpen, m.GetState("payments"))
	assert.Equal(t, StateClosed, m.GetState("push"))
	assert.NoError(t, m.Allow(ctx, "push"))
}

func TestManager_Reset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default = ResourceConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}
	m, _ := newTestManager(t, cfg)
	ctx := context.Background()

	m.RecordFailure(ctx, "push")
	require.Equal(t, StateOpen, m.GetState("push"))

	m.Reset(ctx, "push")
	assert.Equal(t, StateClosed, m.GetState("push"))
	assert.Equal(t, 0, m.GetConsecutiveFailures("push"))
}

func TestConfig_ResourceResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resources["payments"] = ResourceConfig{FailureThreshold: 10}
	require.NoError(t, cfg.Validate())

	rc := cfg.GetResourceConfig("payments")
	assert.Equal(t, 10, rc.FailureThreshold)
	assert.Equal(t, 30*time.Second, rc.RecoveryTimeout, "gaps filled from defaults")

	rc = cfg.GetResourceConfig("unknown")
	assert.Equal(t, 5, rc.FailureThreshold)
}
