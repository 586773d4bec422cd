package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/wattwatch.v1.EnergyService/QueryEnergy"}

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func TestContextMiddlewareGeneratesID(t *testing.T) {
	var seen string
	_, err := ContextMiddleware(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 36)
}

func TestContextMiddlewareReusesIncomingID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "abc-123"))
	var seen string
	_, err := ContextMiddleware(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", seen)
}

func TestRateLimitingInterceptor(t *testing.T) {
	interceptor := NewRateLimitingInterceptor(1, 2)

	for i := 0; i < 2; i++ {
		resp, err := interceptor(context.Background(), nil, info, okHandler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	}

	_, err := interceptor(context.Background(), nil, info, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimitingInterceptorDisabled(t *testing.T) {
	interceptor := NewRateLimitingInterceptor(0, 0)
	for i := 0; i < 50; i++ {
		_, err := interceptor(context.Background(), nil, info, okHandler)
		require.NoError(t, err)
	}
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	interceptor := m.Interceptor()
	_, _ = interceptor(context.Background(), nil, info, okHandler)
	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.InvalidArgument, "bad")
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("QueryEnergy", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("QueryEnergy", "InvalidArgument")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice should fail")
}

func TestLoggingInterceptor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	interceptor := NewLoggingInterceptor(logger)

	ctx := context.WithValue(context.Background(), requestIDKey, "req-1")
	_, err := interceptor(ctx, nil, info, okHandler)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "OK", entry.Data["code"])

	boom := errors.New("boom")
	_, err = interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
