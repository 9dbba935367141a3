package facegate

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics. Implement it to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordRegister is called after each register operation.
	RecordRegister(duration time.Duration, err error)

	// RecordLogin is called after each login operation with its
	// terminal status. err is non-nil only for operational failures,
	// never for policy rejections.
	RecordLogin(status LoginStatus, duration time.Duration, err error)

	// RecordLedgerAppend is called after each attendance append,
	// including suppressed duplicates.
	RecordLedgerAppend(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRegister(time.Duration, error)           {}
func (NoopMetricsCollector) RecordLogin(LoginStatus, time.Duration, error) {}
func (NoopMetricsCollector) RecordLedgerAppend(time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external
// dependencies.
type BasicMetricsCollector struct {
	RegisterCount  atomic.Int64
	RegisterErrors atomic.Int64
	LoginCount     atomic.Int64
	LoginErrors    atomic.Int64
	Authenticated  atomic.Int64
	Rejected       atomic.Int64
	NoFaceDetected atomic.Int64
	AppendCount    atomic.Int64
	AppendErrors   atomic.Int64
}

// RecordRegister implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRegister(_ time.Duration, err error) {
	b.RegisterCount.Add(1)
	if err != nil {
		b.RegisterErrors.Add(1)
	}
}

// RecordLogin implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLogin(status LoginStatus, _ time.Duration, err error) {
	b.LoginCount.Add(1)
	if err != nil {
		b.LoginErrors.Add(1)
		return
	}
	switch status {
	case LoginAuthenticated:
		b.Authenticated.Add(1)
	case LoginRejected:
		b.Rejected.Add(1)
	case LoginNoFaceDetected:
		b.NoFaceDetected.Add(1)
	}
}

// RecordLedgerAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLedgerAppend(_ time.Duration, err error) {
	b.AppendCount.Add(1)
	if err != nil {
		b.AppendErrors.Add(1)
	}
}
