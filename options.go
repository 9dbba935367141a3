package facegate

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/facegate/codec"
	"github.com/hupe1980/facegate/distance"
	"github.com/hupe1980/facegate/embedding"
	"github.com/hupe1980/facegate/ledger"
	"github.com/hupe1980/facegate/match"
)

type options struct {
	dimension       int
	metric          distance.Metric
	threshold       float64
	rejectMargin    float64
	duplicateWindow time.Duration
	durability      ledger.DurabilityMode
	codec           codec.Codec
	logger          *Logger
	metrics         MetricsCollector
	loginRate       rate.Limit
	loginBurst      int
}

func defaultOptions() options {
	return options{
		dimension:       embedding.DefaultDimension,
		metric:          distance.MetricL2,
		threshold:       match.DefaultThreshold,
		duplicateWindow: ledger.DefaultDuplicateWindow,
		durability:      ledger.DurabilitySync,
		codec:           codec.Default,
		logger:          NoopLogger(),
		metrics:         NoopMetricsCollector{},
		loginRate:       rate.Inf,
	}
}

// Option configures Open behavior.
type Option func(*options)

// WithDimension sets the embedding dimensionality the store accepts.
// Defaults to embedding.DefaultDimension (128, dlib-style).
func WithDimension(dim int) Option {
	return func(o *options) { o.dimension = dim }
}

// WithMetric sets the distance metric used for matching. It must
// match the metric the embedding provider's vectors are calibrated
// for. Defaults to Euclidean (distance.MetricL2).
func WithMetric(m distance.Metric) Option {
	return func(o *options) { o.metric = m }
}

// WithThreshold sets the accept threshold for the configured metric.
// Thresholds are calibration-sensitive; tune per deployment.
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// WithRejectMargin enables ambiguity rejection: an otherwise accepted
// match is rejected when the second-best identity's distance is within
// margin of the best. Zero (default) disables the check.
func WithRejectMargin(margin float64) Option {
	return func(o *options) { o.rejectMargin = margin }
}

// WithDuplicateWindow sets the attendance duplicate-suppression
// window. Zero disables suppression.
func WithDuplicateWindow(window time.Duration) Option {
	return func(o *options) { o.duplicateWindow = window }
}

// WithDurability controls ledger fsync behavior.
func WithDurability(mode ledger.DurabilityMode) Option {
	return func(o *options) { o.durability = mode }
}

// WithCodec configures the codec used for persisted state.
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector. Defaults to no-op.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithLoginRateLimit caps login attempts to r per second with the
// given burst. Unlimited by default. Registration is not limited; the
// GUI layer gates it separately.
func WithLoginRateLimit(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.loginRate = r
		o.loginBurst = burst
	}
}
