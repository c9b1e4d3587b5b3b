package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const serviceTracerName = "github.com/shoplist/shoplist/internal/service"

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(serviceTracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type organizeMetrics struct {
	runs             *prometheus.CounterVec
	proposed         prometheus.Counter
	applied          prometheus.Counter
	dropped          *prometheus.CounterVec
	classifyDuration prometheus.Histogram
}

func newOrganizeMetrics(reg prometheus.Registerer) *organizeMetrics {
	m := &organizeMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoplist",
			Subsystem: "organize",
			Name:      "runs_total",
			Help:      "Organize runs by outcome.",
		}, []string{"outcome"}),
		proposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shoplist",
			Subsystem: "organize",
			Name:      "proposed_assignments_total",
			Help:      "Assignments proposed by the classifier.",
		}),
		applied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shoplist",
			Subsystem: "organize",
			Name:      "applied_assignments_total",
			Help:      "Assignments committed to sections.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoplist",
			Subsystem: "organize",
			Name:      "dropped_assignments_total",
			Help:      "Classifier assignments discarded during validation.",
		}, []string{"reason"}),
		classifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shoplist",
			Subsystem: "organize",
			Name:      "classifier_duration_seconds",
			Help:      "Classifier call latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.proposed, m.applied, m.dropped, m.classifyDuration)
	}
	return m
}
