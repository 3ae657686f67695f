// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	AccessAllowed      prometheus.Counter
	AccessDeniedBanned prometheus.Counter
	AccessDeniedMuted  prometheus.Counter
	ModerationActions  *prometheus.CounterVec
	AuditWriteFailures prometheus.Counter

	// Histograms (seconds)
	CheckAccessDuration prometheus.Observer

	// Gauges
	ActiveBansGauge  prometheus.Gauge
	ActiveMutesGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		AccessAllowed = promauto.NewCounter(prometheus.CounterOpts{Name: "moderation_access_allowed_total", Help: "Access checks that allowed the identity"})
		AccessDeniedBanned = promauto.NewCounter(prometheus.CounterOpts{Name: "moderation_access_denied_banned_total", Help: "Access checks denied by an active ban"})
		AccessDeniedMuted = promauto.NewCounter(prometheus.CounterOpts{Name: "moderation_access_denied_muted_total", Help: "Access checks denied by an active mute"})
		ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "moderation_actions_total", Help: "Admin moderation actions by category"}, []string{"category"})
		AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "moderation_audit_write_failures_total", Help: "Audit entries that failed to persist after a successful action"})
		CheckAccessDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "moderation_check_access_duration_seconds", Help: "CheckAccess duration seconds", Buckets: prometheus.DefBuckets})
		ActiveBansGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "moderation_active_bans", Help: "Currently active ban records"})
		ActiveMutesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "moderation_active_mutes", Help: "Currently active mute records"})
	})
}

// ObserveAccessCheck records the outcome and latency of one access check.
// No-op before Init so library code never has to care about ordering.
func ObserveAccessCheck(allowed bool, reason string, d time.Duration) {
	if CheckAccessDuration != nil {
		CheckAccessDuration.Observe(d.Seconds())
	}
	switch {
	case allowed:
		if AccessAllowed != nil {
			AccessAllowed.Inc()
		}
	case reason == "banned":
		if AccessDeniedBanned != nil {
			AccessDeniedBanned.Inc()
		}
	default:
		if AccessDeniedMuted != nil {
			AccessDeniedMuted.Inc()
		}
	}
}

// CountModerationAction increments the per-category action counter.
func CountModerationAction(category string) {
	if ModerationActions != nil {
		ModerationActions.WithLabelValues(category).Inc()
	}
}

// CountAuditFailure records a best-effort audit write that failed.
func CountAuditFailure() {
	if AuditWriteFailures != nil {
		AuditWriteFailures.Inc()
	}
}

// SetActiveRestrictions records the current active ban and mute counts.
func SetActiveRestrictions(bans, mutes int) {
	if ActiveBansGauge != nil {
		ActiveBansGauge.Set(float64(bans))
	}
	if ActiveMutesGauge != nil {
		ActiveMutesGauge.Set(float64(mutes))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
