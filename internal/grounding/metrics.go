package grounding

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/complykit/groundd/internal/matcher"
)

const instrumentationName = "github.com/complykit/groundd/internal/grounding"

// Metrics holds grounding-run instruments.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	decisions metric.Int64Counter
	slots     metric.Int64Counter
}

// NewMetrics creates a Metrics instance. Instrument creation failures are
// logged and tolerated.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"groundd.grounding.run_duration_seconds",
		metric.WithDescription("Duration of a full grounding run, labeled by gate decision"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		m.logger.Warn("failed to create run duration histogram", zap.Error(err))
	}

	m.decisions, err = m.meter.Int64Counter(
		"groundd.grounding.decisions_total",
		metric.WithDescription("Gate decisions by status (PASS, WARNING, BLOCKED)"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		m.logger.Warn("failed to create decisions counter", zap.Error(err))
	}

	m.slots, err = m.meter.Int64Counter(
		"groundd.grounding.slots_total",
		metric.WithDescription("Slots processed, labeled by grounded outcome"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		m.logger.Warn("failed to create slots counter", zap.Error(err))
	}
}

// RecordRun records one grounding run.
func (m *Metrics) RecordRun(ctx context.Context, status string, duration time.Duration, slotResults []matcher.SlotGroundingResult) {
	statusAttr := metric.WithAttributes(attribute.String("status", status))
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), statusAttr)
	}
	if m.decisions != nil {
		m.decisions.Add(ctx, 1, statusAttr)
	}
	if m.slots != nil {
		grounded, ungrounded := int64(0), int64(0)
		for _, res := range slotResults {
			if res.IsGrounded {
				grounded++
			} else {
				ungrounded++
			}
		}
		m.slots.Add(ctx, grounded, metric.WithAttributes(attribute.Bool("grounded", true)))
		m.slots.Add(ctx, ungrounded, metric.WithAttributes(attribute.Bool("grounded", false)))
	}
}
