package audit

// Sink accepts audit events. Implementations must not block request
// handling; slow transports buffer or drop internally.
type Sink interface {
	Emit(event Event)
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event) {}

func (NopSink) Close() error { return nil }

// MultiSink fans one event out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(event Event) {
	for _, s := range m.sinks {
		s.Emit(event)
	}
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
