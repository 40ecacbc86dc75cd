package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	awspkg "github.com/Faraz011/Hindustan-Bills-sub001/pkg/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder observes delivery attempts. Implementations must not block the
// dispatcher for long and must swallow their own errors.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt models.DeliveryAttempt)
	RecordDispatch(ctx context.Context, orderNumber string, attempts []models.DeliveryAttempt)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAttempt(context.Context, models.DeliveryAttempt)             {}
func (Nop) RecordDispatch(context.Context, string, []models.DeliveryAttempt) {}

// Multi fans out to several recorders.
type Multi []Recorder

func (m Multi) RecordAttempt(ctx context.Context, a models.DeliveryAttempt) {
	for _, r := range m {
		r.RecordAttempt(ctx, a)
	}
}

func (m Multi) RecordDispatch(ctx context.Context, orderNumber string, attempts []models.DeliveryAttempt) {
	for _, r := range m {
		r.RecordDispatch(ctx, orderNumber, attempts)
	}
}

// PromRecorder exports attempt counters and channel latency.
type PromRecorder struct {
	Attempts   *prometheus.CounterVec
	LatencyMS  *prometheus.HistogramVec
	Dispatches prometheus.Counter
}

func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hindustan_bills",
		Subsystem: "notification",
		Name:      "delivery_attempts_total",
		Help:      "Channel delivery attempts by outcome.",
	}, []string{"channel", "outcome", "kind"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hindustan_bills",
		Subsystem: "notification",
		Name:      "delivery_duration_ms",
		Help:      "Channel delivery latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"channel"})
	dispatches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hindustan_bills",
		Subsystem: "notification",
		Name:      "dispatches_total",
		Help:      "Dispatch invocations.",
	})

	reg.MustRegister(attempts, latency, dispatches)
	return &PromRecorder{Attempts: attempts, LatencyMS: latency, Dispatches: dispatches}
}

func (p *PromRecorder) RecordAttempt(_ context.Context, a models.DeliveryAttempt) {
	p.Attempts.WithLabelValues(string(a.Channel), string(a.Outcome), string(a.Kind)).Inc()
	p.LatencyMS.WithLabelValues(string(a.Channel)).Observe(float64(a.Duration.Milliseconds()))
}

func (p *PromRecorder) RecordDispatch(context.Context, string, []models.DeliveryAttempt) {
	p.Dispatches.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CloudWatchRecorder pushes attempt metrics asynchronously so the
// dispatcher never waits on CloudWatch.
type CloudWatchRecorder struct {
	client  *awspkg.MetricsClient
	timeout time.Duration
}

func NewCloudWatchRecorder(client *awspkg.MetricsClient) *CloudWatchRecorder {
	return &CloudWatchRecorder{client: client, timeout: 5 * time.Second}
}

func (c *CloudWatchRecorder) RecordAttempt(_ context.Context, a models.DeliveryAttempt) {
	if !c.client.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		dims := map[string]string{"Channel": string(a.Channel), "Outcome": string(a.Outcome)}
		_ = c.client.RecordCount(ctx, awspkg.MetricDeliveryAttempts, dims)
		_ = c.client.RecordLatency(ctx, awspkg.MetricDeliveryLatency, a.Duration, map[string]string{"Channel": string(a.Channel)})
	}()
}

func (c *CloudWatchRecorder) RecordDispatch(context.Context, string, []models.DeliveryAttempt) {
	if !c.client.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		_ = c.client.RecordCount(ctx, awspkg.MetricDispatches, map[string]string{"Service": "notification-service"})
	}()
}
