package ai

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zulandar/devtask/internal/models"
)

// Metrics holds the AI request collectors.
//
//   - devtask_ai_requests_total{provider,op,outcome}
//   - devtask_ai_request_duration_seconds{provider,op}
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics registers the AI collectors with reg. Registering twice returns
// the collectors already in place.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devtask_ai_requests_total",
		Help: "AI requests by provider, operation and outcome.",
	}, []string{"provider", "op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devtask_ai_request_duration_seconds",
		Help:    "AI request latency by provider and operation.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	}, []string{"provider", "op"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &Metrics{Requests: requests, Duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Instrument wraps p so every operation is counted and timed.
func Instrument(p Provider, m *Metrics) Provider {
	if m == nil {
		return p
	}
	return &instrumented{Provider: p, m: m}
}

type instrumented struct {
	Provider
	m *Metrics
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	name := string(i.Name())
	i.m.Requests.WithLabelValues(name, op, Outcome(err)).Inc()
	i.m.Duration.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) ChatTurn(ctx context.Context, history []models.ChatMessage, message string) ChatResult {
	start := time.Now()
	res := i.Provider.ChatTurn(ctx, history, message)
	i.observe(OpChat, start, res.Err)
	return res
}

func (i *instrumented) PreDevAnalysis(ctx context.Context, spec string) (models.PreDevAnalysis, error) {
	start := time.Now()
	out, err := i.Provider.PreDevAnalysis(ctx, spec)
	i.observe(OpPreDev, start, err)
	return out, err
}

func (i *instrumented) TestCases(ctx context.Context, spec string) ([]TestCaseDraft, error) {
	start := time.Now()
	out, err := i.Provider.TestCases(ctx, spec)
	i.observe(OpTestCases, start, err)
	return out, err
}

func (i *instrumented) Title(ctx context.Context, requirement string) (string, error) {
	start := time.Now()
	out, err := i.Provider.Title(ctx, requirement)
	i.observe(OpTitle, start, err)
	return out, err
}
