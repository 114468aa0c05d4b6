// Package health measures process CPU and memory on a background timer
// and classifies system load. Request handlers only read the last
// published snapshot; the sampler is the single writer and publishes via
// an atomic pointer swap, so reads are lock-free and never partial.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/stagepass/go-stagepass-core/logger"
)

// Classification buckets current load.
type Classification string

const (
	ClassHealthy  Classification = "healthy"
	ClassStressed Classification = "stressed"
	ClassCritical Classification = "critical"
)

// Snapshot is the immutable view readers get.
type Snapshot struct {
	CPUPercent     float64
	MemoryPercent  float64
	AvgCPUPercent  float64
	PeakCPUPercent float64
	AvgMemPercent  float64
	PeakMemPercent float64
	Classification Classification
	LastUpdatedAt  time.Time
}

// Load returns the governing metric as a 0-100 value.
func (s *Snapshot) Load() float64 {
	if s.CPUPercent >= s.MemoryPercent {
		return s.CPUPercent
	}
	return s.MemoryPercent
}

// Reader is the read-only view the admission controller consumes.
type Reader interface {
	Snapshot() *Snapshot
}

type sample struct {
	cpu   float64
	mem   float64
	taken time.Time
}

// probeFunc returns current cpu and memory percentages. Swappable in
// tests.
type probeFunc func() (cpuPercent, memPercent float64, err error)

func systemProbe() (float64, float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, 0, err
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return cpuPercent, vm.UsedPercent, nil
}

// Sampler runs the measurement and trim timers.
type Sampler struct {
	cfg      Config
	probe    probeFunc
	logger   *logger.CtxZapLogger
	snapshot atomic.Pointer[Snapshot]

	mu      sync.Mutex // guards history; only sampler goroutines touch it
	history []sample

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSampler creates a sampler. Call Start to begin measuring.
func NewSampler(cfg Config, opts ...SamplerOption) *Sampler {
	cfg.ApplyDefaults()
	s := &Sampler{
		cfg:    cfg,
		probe:  systemProbe,
		logger: logger.GetLogger("health"),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{
		Classification: ClassHealthy,
		LastUpdatedAt:  time.Now(),
	})
	return s
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithLogger overrides the default module logger.
func WithLogger(log *logger.CtxZapLogger) SamplerOption {
	return func(s *Sampler) { s.logger = log }
}

// withProbe injects a measurement function (tests).
func withProbe(p probeFunc) SamplerOption {
	return func(s *Sampler) { s.probe = p }
}

// Start launches the sample and trim timers. They run independently of
// request traffic and stop when ctx is cancelled or Stop is called.
func (s *Sampler) Start(ctx context.Context) {
	s.sampleOnce(ctx)

	s.wg.Add(2)
	go s.sampleLoop(ctx)
	go s.trimLoop(ctx)
}

// Stop terminates the background timers.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

// Snapshot returns the last published snapshot without blocking on the
// sampler. Readers see either the old or the fully-new value.
func (s *Sampler) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Sampler) sampleLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sampleOnce(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sampler) trimLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TrimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.trim()
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	cpuPercent, memPercent, err := s.probe()
	if err != nil {
		// keep serving the previous snapshot; a broken probe must not
		// take down admission
		s.logger.WarnCtx(ctx, "health probe failed", zap.Error(err))
		return
	}

	now := time.Now()

	s.mu.Lock()
	s.history = append(s.history, sample{cpu: cpuPercent, mem: memPercent, taken: now})
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	avgCPU, peakCPU, avgMem, peakMem := aggregate(s.history)
	s.mu.Unlock()

	snap := &Snapshot{
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		AvgCPUPercent:  avgCPU,
		PeakCPUPercent: peakCPU,
		AvgMemPercent:  avgMem,
		PeakMemPercent: peakMem,
		Classification: s.classify(cpuPercent, memPercent),
		LastUpdatedAt:  now,
	}
	s.snapshot.Store(snap)

	if snap.Classification != ClassHealthy {
		s.logger.WarnCtx(ctx, "system load elevated",
			zap.String("classification", string(snap.Classification)),
			zap.Float64("cpu_percent", cpuPercent),
			zap.Float64("memory_percent", memPercent))
	}
}

func (s *Sampler) classify(cpuPercent, memPercent float64) Classification {
	switch {
	case cpuPercent >= s.cfg.CriticalCPUPercent || memPercent >= s.cfg.CriticalMemoryPercent:
		return ClassCritical
	case cpuPercent >= s.cfg.StressedCPUPercent || memPercent >= s.cfg.StressedMemoryPercent:
		return ClassStressed
	default:
		return ClassHealthy
	}
}

func (s *Sampler) trim() {
	cutoff := time.Now().Add(-s.cfg.MaxSampleAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := 0
	for idx < len(s.history) && s.history[idx].taken.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		s.history = append([]sample(nil), s.history[idx:]...)
	}
}

func aggregate(history []sample) (avgCPU, peakCPU, avgMem, peakMem float64) {
	if len(history) == 0 {
		return 0, 0, 0, 0
	}
	var sumCPU, sumMem float64
	for _, h := range history {
		sumCPU += h.cpu
		sumMem += h.mem
		if h.cpu > peakCPU {
			peakCPU = h.cpu
		}
		if h.mem > peakMem {
			peakMem = h.mem
		}
	}
	n := float64(len(history))
	return sumCPU / n, peakCPU, sumMem / n, peakMem
}
