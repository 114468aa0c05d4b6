// Package breaker provides the three-state circuit breaker guarding
// outbound dependency calls.
//
// Transitions: CLOSED→OPEN on a consecutive-failure threshold breach,
// OPEN→HALF_OPEN after the recovery timeout, HALF_OPEN→CLOSED on the
// probe's success, HALF_OPEN→OPEN on its failure. Transitions use
// compare-and-set semantics under the circuit's mutex; 4xx caller
// errors never touch breaker state.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stagepass/go-stagepass-core/logger"
)

// ErrCircuitOpen marks a call rejected without a network attempt.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// circuit is one dependency's breaker instance.
type circuit struct {
	resource string
	config   ResourceConfig
	stateMgr *stateManager
	eventBus EventBus
	logger   *logger.CtxZapLogger
	metrics  *otelMetrics
}

func newCircuit(resource string, config ResourceConfig, eventBus EventBus, log *logger.CtxZapLogger, metrics *otelMetrics) *circuit {
	return &circuit{
		resource: resource,
		config:   config,
		stateMgr: newStateManager(),
		eventBus: eventBus,
		logger:   log,
		metrics:  metrics,
	}
}

// Allow reports whether a call may proceed; ErrCircuitOpen otherwise.
func (c *circuit) Allow(ctx context.Context) error {
	allowed, halfOpened := c.stateMgr.CanAttempt(c.config)
	if halfOpened {
		c.publishStateChanged(ctx, StateOpen, StateHalfOpen, "recovery timeout elapsed")
		c.logger.InfoCtx(ctx, "circuit half-open, probing",
			zap.String("resource", c.resource))
	}
	if allowed {
		return nil
	}

	c.metrics.recordRejection(ctx, c.resource)
	if c.eventBus != nil {
		c.eventBus.Publish(&RejectedEvent{
			BaseEvent:    NewBaseEvent(EventCallRejected, c.resource, ctx),
			CurrentState: c.stateMgr.GetState(),
		})
	}
	return fmt.Errorf("%s: %w", c.resource, ErrCircuitOpen)
}

// RecordSuccess marks a completed call; closes the circuit.
func (c *circuit) RecordSuccess(ctx context.Context) {
	changed, from, to := c.stateMgr.RecordSuccess()
	if changed {
		c.publishStateChanged(ctx, from, to, "call succeeded")
		c.logger.InfoCtx(ctx, "circuit closed",
			zap.String("resource", c.resource),
			zap.String("from", from.String()))
	}
}

// RecordFailure marks a dependency-fault failure (5xx, timeout,
// connection refused). Caller errors must not be reported here.
func (c *circuit) RecordFailure(ctx context.Context) {
	changed, from, to := c.stateMgr.RecordFailure(c.config)
	if changed {
		c.publishStateChanged(ctx, from, to, "failure threshold exceeded")
		c.logger.WarnCtx(ctx, "circuit opened",
			zap.String("resource", c.resource),
			zap.String("from", from.String()),
			zap.Int("consecutive_failures", c.stateMgr.GetConsecutiveFailures()),
			zap.Int("failure_threshold", c.config.FailureThreshold),
			zap.Duration("recovery_timeout", c.config.RecoveryTimeout))
	}
}

// ReleaseProbe frees the probe slot for a call that completed without
// a success or failure verdict.
func (c *circuit) ReleaseProbe() {
	c.stateMgr.ReleaseProbe()
}

func (c *circuit) publishStateChanged(ctx context.Context, from, to State, reason string) {
	c.metrics.recordTransition(ctx, c.resource, from, to)
	if c.eventBus == nil {
		return
	}
	c.eventBus.Publish(&StateChangedEvent{
		BaseEvent:           NewBaseEvent(EventStateChanged, c.resource, ctx),
		FromState:           from,
		ToState:             to,
		ConsecutiveFailures: c.stateMgr.GetConsecutiveFailures(),
		Reason:              reason,
	})
}

// Manager owns one circuit per named dependency, created lazily.
type Manager struct {
	config   Config
	circuits map[string]*circuit
	eventBus EventBus
	logger   *logger.CtxZapLogger
	metrics  *otelMetrics
	mu       sync.RWMutex
}

// NewManager creates a breaker manager.
func NewManager(config Config, opts ...ManagerOption) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid breaker config: %w", err)
	}

	m := &Manager{
		config:   config,
		circuits: make(map[string]*circuit),
		logger:   logger.GetLogger("breaker"),
		metrics:  newOtelMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if config.Enabled && m.eventBus == nil {
		m.eventBus = NewEventBus(config.EventBusBuffer)
	}
	return m, nil
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger overrides the default module logger.
func WithLogger(log *logger.CtxZapLogger) ManagerOption {
	return func(m *Manager) { m.logger = log }
}

// WithEventBus injects a shared event bus.
func WithEventBus(bus EventBus) ManagerOption {
	return func(m *Manager) { m.eventBus = bus }
}

// IsEnabled reports whether breaking is active.
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled
}

// Allow checks whether a call to resource may proceed.
func (m *Manager) Allow(ctx context.Context, resource string) error {
	if !m.config.Enabled {
		return nil
	}
	return m.getOrCreate(resource).Allow(ctx)
}

// RecordSuccess reports a successful call for resource.
func (m *Manager) RecordSuccess(ctx context.Context, resource string) {
	if !m.config.Enabled {
		return
	}
	m.getOrCreate(resource).RecordSuccess(ctx)
}

// RecordFailure reports a dependency-fault failure for resource.
func (m *Manager) RecordFailure(ctx context.Context, resource string) {
	if !m.config.Enabled {
		return
	}
	m.getOrCreate(resource).RecordFailure(ctx)
}

// ReleaseProbe frees the probe slot for resource. Callers that were
// admitted but report neither success nor failure must release, or a
// half-open circuit stays wedged with its single slot taken.
func (m *Manager) ReleaseProbe(resource string) {
	if !m.config.Enabled {
		return
	}
	m.getOrCreate(resource).ReleaseProbe()
}

// GetState returns the current state for resource.
func (m *Manager) GetState(resource string) State {
	if !m.config.Enabled {
		return StateClosed
	}
	return m.getOrCreate(resource).stateMgr.GetState()
}

// GetConsecutiveFailures returns the failure streak for resource.
func (m *Manager) GetConsecutiveFailures(resource string) int {
	if !m.config.Enabled {
		return 0
	}
	return m.getOrCreate(resource).stateMgr.GetConsecutiveFailures()
}

// Reset forces resource back to CLOSED.
func (m *Manager) Reset(ctx context.Context, resource string) {
	if !m.config.Enabled {
		return
	}
	c := m.getOrCreate(resource)
	if changed, from, to := c.stateMgr.Reset(); changed {
		c.publishStateChanged(ctx, from, to, "manual reset")
	}
}

// GetEventBus exposes the bus for audit subscription.
func (m *Manager) GetEventBus() EventBus {
	return m.eventBus
}

// Close shuts the event bus down.
func (m *Manager) Close() {
	if m.eventBus != nil {
		m.eventBus.Close()
	}
}

// getOrCreate resolves the circuit for a resource (double-checked).
func (m *Manager) getOrCreate(resource string) *circuit {
	m.mu.RLock()
	if c, exists := m.circuits[resource]; exists {
		m.mu.RUnlock()
		return c
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, exists := m.circuits[resource]; exists {
		return c
	}

	cfg := m.config.GetResourceConfig(resource)
	c := newCircuit(resource, cfg, m.eventBus, m.logger, m.metrics)
	m.circuits[resource] = c

	m.logger.Debug("circuit created",
		zap.String("resource", resource),
		zap.Int("failure_threshold", cfg.FailureThreshold),
		zap.Duration("recovery_timeout", cfg.RecoveryTimeout))
	return c
}
