package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"healthlink/internal/platform/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unregisteredMetrics avoids promauto's global registry so tests can build
// as many as they need.
func unregisteredMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		DependencyStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_dependency_up",
		}, []string{"dependency"}),
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckDatabaseReportsPingFailure(t *testing.T) {
	pm := unregisteredMetrics()

	ok := checkDatabase(context.Background(), pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}), quietLogger(), pm)

	assert.False(t, ok)
	assert.Equal(t, 0.0, promtest.ToFloat64(pm.DependencyStatus.WithLabelValues("postgres")))
}

func TestCheckDatabaseReportsUp(t *testing.T) {
	pm := unregisteredMetrics()

	ok := checkDatabase(context.Background(), pingFunc(func(context.Context) error { return nil }), quietLogger(), pm)

	assert.True(t, ok)
	assert.Equal(t, 1.0, promtest.ToFloat64(pm.DependencyStatus.WithLabelValues("postgres")))
}

type fakeSink struct {
	pingErr   error
	topicErr  error
	topicCall int
}

func (f *fakeSink) Ping(context.Context) error { return f.pingErr }

func (f *fakeSink) EnsureTopic(_ context.Context, partitions int32, replication int16) error {
	f.topicCall++
	return f.topicErr
}

func TestBrokersReady(t *testing.T) {
	t.Run("unreachable brokers skip topic provisioning", func(t *testing.T) {
		sink := &fakeSink{pingErr: errors.New("dial tcp: refused")}
		assert.False(t, brokersReady(context.Background(), sink, "t", quietLogger()))
		assert.Zero(t, sink.topicCall)
	})

	t.Run("topic failure keeps kafka", func(t *testing.T) {
		sink := &fakeSink{topicErr: errors.New("not authorized")}
		assert.True(t, brokersReady(context.Background(), sink, "t", quietLogger()))
		assert.Equal(t, 1, sink.topicCall)
	})

	t.Run("healthy cluster", func(t *testing.T) {
		sink := &fakeSink{}
		assert.True(t, brokersReady(context.Background(), sink, "t", quietLogger()))
		assert.Equal(t, 1, sink.topicCall)
	})
}
