package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResourceConfig() ResourceConfig {
	return ResourceConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  50 * time.Millisecond,
	}
}

func TestStateManager_OpensAtThreshold(t *testing.T) {
	sm := newStateManager()
	cfg := testResourceConfig()

	for i := 0; i < cfg.FailureThreshold-1; i++ {
		changed, _, _ := sm.RecordFailure(cfg)
		assert.False(t, changed)
		assert.Equal(t, StateClosed, sm.GetState())
	}

	changed, from, to := sm.RecordFailure(cfg)
	assert.True(t, changed)
	assert.Equal(t, StateClosed, from)
	assert.Equal(t, StateOpen, to)
}

func TestStateManager_SuccessResetsStreak(t *testing.T) {
	sm := newStateManager()
	cfg := testResourceConfig()

	sm.RecordFailure(cfg)
	sm.RecordFailure(cfg)
	sm.RecordSuccess()
	assert.Equal(t, 0, sm.GetConsecutiveFailures())

	// the streak must be consecutive: two more failures do not open
	sm.RecordFailure(cfg)
	sm.RecordFailure(cfg)
	assert.Equal(t, StateClosed, sm.GetState())
}

func TestStateManager_OpenRejectsUntilTimeout(t *testing.T) {
	sm := newStateManager()
	cfg := testResourceConfig()

	for i := 0; i < cfg.FailureThreshold; i++ {
		sm.RecordFailure(cfg)
	}
	require.Equal(t, StateOpen, sm.GetState())

	allowed, _ := sm.CanAttempt(cfg)
	assert.False(t, allowed)

	time.Sleep(cfg.RecoveryTimeout + 10*time.Millisecond)

	allowed, halfOpened := sm.CanAttempt(cfg)
	assert.True(t, allowed)
	assert.True(t, halfOpened)
	assert.Equal(t, StateHalfOpen, sm.GetState())
}

func TestStateManager_HalfOpenSingleProbe(t *testing.T) {
	sm := newStateManager()
	cfg := testResourceConfig()

	for i := 0; i < cfg.FailureThreshold; i++ {
		sm.RecordFailure(cfg)
	}
	time.Sleep(cfg.RecoveryTimeout + 10*time.Millisecond)

	allowed, _ := sm.CanAttempt(cfg)
	require.True(t, allowed)

	// while the probe is in flight everyone else is rejected
	allowed, _ = sm.CanAttempt(cfg)
	assert.False(t, allowed)
}

func TestStateManager_ReleaseProbeFreesSlot(t *testing.T) {
	sm := newStateManager()
	cfg := testResourceConfig()

	for i := 0; i < cfg.FailureThreshold; i++ {
		sm.RecordFailure(cfg)
	}
	time.Sleep(cfg.RecoveryTimeout + 10*time.Millisecond)

	allowed, _ := sm.CanAttempt(cfg)
	require.True(t, allowed)

	// the admitted call ended with no recorded outcome; without the
	// release the slot would stay taken and every later call rejected
	sm.ReleaseProbe()
	assert.Equal(t, StateHalfOpen, sm.GetState())

	allowed, _ = sm.CanAttempt(cfg)
	assert.True(t, allowed, "next caller may probe again")

	changed, _, to := sm.RecordSuccess()
	assert.True(t, changed)
	assert.Equal(t, StateClosed, to)
}

func TestStateManager_ProbeOutcome(t *testing.T) {
	t.Run("success closes", func(t *testing.T) {
		sm := newStateManager()
		cfg := testResourceConfig()
		for i := 0; i < cfg.FailureThreshold; i++ {
			sm.RecordFailure(cfg)
		}
		time.Sleep(cfg.RecoveryTimeout + 10*time.Millisecond)
		sm.CanAttempt(cfg)

		changed, from, to := sm.RecordSuccess()
		assert.True(t, changed)
		assert.Equal(t, StateHalfOpen, from)
		assert.Equal(t, StateClosed, to)
	})

	t.Run("failure reopens", func(t *testing.T) {
		sm := newStateManager()
		cfg := testResourceConfig()
		for i := 0; i < cfg.FailureThreshold; i++ {
			sm.RecordFailure(cfg)
		}
		time.Sleep(cfg.RecoveryTimeout + 10*time.Millisecond)
		sm.CanAttempt(cfg)

		changed, from, to := sm.RecordFailure(cfg)
		assert.True(t, changed)
		assert.Equal(t, StateHalfOpen, from)
		assert.Equal(t, StateOpen, to)
	})
}

func TestStateManager_ThresholdTransitionFiresOnce(t *testing.T) {
	sm := newStateManager()
	cfg := ResourceConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute}

	var wg sync.WaitGroup
	var mu sync.Mutex
	transitions := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if changed, _, _ := sm.RecordFailure(cfg); changed {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, transitions, "CLOSED→OPEN fires exactly once per breach")
	assert.Equal(t, StateOpen, sm.GetState())
}
