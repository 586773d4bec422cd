package server_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/tejusbharadwaj/wattwatch/internal/config"
	"github.com/tejusbharadwaj/wattwatch/internal/database"
	"github.com/tejusbharadwaj/wattwatch/internal/database/mocks"
	server "github.com/tejusbharadwaj/wattwatch/internal/grpc"
	middleware "github.com/tejusbharadwaj/wattwatch/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/wattwatch/internal/models"
)

var (
	end   = time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	start = end.Add(-24 * time.Hour)
)

func TestQueryEnergy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockEnergyRepository(ctrl)
	svc := server.NewEnergyService(mockRepo)

	tests := []struct {
		name          string
		request       *server.QueryRequest
		setupMock     func()
		expectedCode  codes.Code
		expectedError string
		expectedLen   int
	}{
		{
			name: "Success case",
			request: &server.QueryRequest{
				DeviceID:    "D1",
				Start:       start,
				End:         end,
				Bucket:      "1h",
				Aggregation: "AVG",
			},
			setupMock: func() {
				mockRepo.EXPECT().
					QueryEnergy(gomock.Any(), database.Query{
						DeviceID:    "D1",
						Start:       start,
						End:         end,
						Bucket:      "1h",
						Aggregation: "AVG",
					}).
					Return([]models.EnergyBucket{
						{Time: start, Channel: 0, Value: 100.0},
						{Time: start.Add(time.Hour), Channel: 0, Value: 200.0},
					}, nil)
			},
			expectedCode: codes.OK,
			expectedLen:  2,
		},
		{
			name: "Missing device",
			request: &server.QueryRequest{
				Start:       start,
				End:         end,
				Bucket:      "1h",
				Aggregation: "AVG",
			},
			setupMock:     func() {},
			expectedCode:  codes.InvalidArgument,
			expectedError: "missing device id",
		},
		{
			name: "Invalid bucket",
			request: &server.QueryRequest{
				DeviceID:    "D1",
				Start:       start,
				End:         end,
				Bucket:      "invalid",
				Aggregation: "AVG",
			},
			setupMock:     func() {},
			expectedCode:  codes.InvalidArgument,
			expectedError: "invalid bucket: invalid",
		},
		{
			name: "Invalid time range",
			request: &server.QueryRequest{
				DeviceID:    "D1",
				Start:       end,
				End:         start,
				Bucket:      "1h",
				Aggregation: "AVG",
			},
			setupMock:     func() {},
			expectedCode:  codes.InvalidArgument,
			expectedError: "start time must be before end time",
		},
		{
			name: "Repository failure",
			request: &server.QueryRequest{
				DeviceID:    "D1",
				Start:       start,
				End:         end,
				Bucket:      "1d",
				Aggregation: "SUM",
			},
			setupMock: func() {
				mockRepo.EXPECT().
					QueryEnergy(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("connection reset"))
			},
			expectedCode:  codes.Internal,
			expectedError: "query failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupMock()

			resp, err := svc.QueryEnergy(context.Background(), tt.request)

			if tt.expectedCode != codes.OK {
				require.Error(t, err)
				st, ok := status.FromError(err)
				require.True(t, ok)
				assert.Equal(t, tt.expectedCode, st.Code())
				assert.Contains(t, st.Message(), tt.expectedError)
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				require.NotNil(t, resp)
				assert.Len(t, resp.Data, tt.expectedLen)
			}
		})
	}
}

func serverConfig() config.ServerConfig {
	return config.ServerConfig{
		Port:           50051,
		RateLimit:      100,
		RateLimitBurst: 100,
	}
}

func dial(t *testing.T, srv *grpc.Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSetupServer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockEnergyRepository(ctrl)
	reg := prometheus.NewRegistry()

	srv, health, err := server.SetupServer(mockRepo, serverConfig(), nil, reg)
	require.NoError(t, err)
	require.NotNil(t, srv)
	require.NotNil(t, health)

	// Collectors are already registered on reg.
	srv, _, err = server.SetupServer(mockRepo, serverConfig(), nil, reg)
	require.Error(t, err)
	require.Nil(t, srv)
}

func TestQueryEnergyOverGRPC(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockEnergyRepository(ctrl)
	channel := 2
	mockRepo.EXPECT().
		QueryEnergy(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, q database.Query) ([]models.EnergyBucket, error) {
			assert.Equal(t, "D1", q.DeviceID)
			assert.True(t, start.Equal(q.Start))
			if assert.NotNil(t, q.Channel) {
				assert.Equal(t, 2, *q.Channel)
			}
			return []models.EnergyBucket{{Time: start, Channel: 2, Value: 42.5}}, nil
		})

	srv, _, err := server.SetupServer(mockRepo, serverConfig(), nil, prometheus.NewRegistry())
	require.NoError(t, err)
	conn := dial(t, srv)

	ctx := metadata.AppendToOutgoingContext(context.Background(), middleware.RequestIDHeader, "trace-7")
	var header metadata.MD
	resp, err := server.QueryEnergy(ctx, conn, &server.QueryRequest{
		DeviceID:    "D1",
		Start:       start,
		End:         end,
		Bucket:      "15m",
		Aggregation: "MAX",
		Metric:      "e_real",
		Channel:     &channel,
	}, grpc.Header(&header))
	require.NoError(t, err)

	require.Len(t, resp.Data, 1)
	assert.True(t, start.Equal(resp.Data[0].Time))
	assert.Equal(t, 2, resp.Data[0].Channel)
	assert.Equal(t, 42.5, resp.Data[0].Value)
	assert.Equal(t, []string{"trace-7"}, header.Get(middleware.RequestIDHeader))
}

func TestQueryEnergyOverGRPCInvalidArgument(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	srv, _, err := server.SetupServer(mocks.NewMockEnergyRepository(ctrl), serverConfig(), nil, prometheus.NewRegistry())
	require.NoError(t, err)
	conn := dial(t, srv)

	_, err = server.QueryEnergy(context.Background(), conn, &server.QueryRequest{
		DeviceID:    "D1",
		Start:       start,
		End:         end,
		Bucket:      "1h",
		Aggregation: "MEDIAN",
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestQueryEnergyOverGRPCRateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockEnergyRepository(ctrl)
	mockRepo.EXPECT().QueryEnergy(gomock.Any(), gomock.Any()).Return(nil, nil)

	cfg := serverConfig()
	cfg.RateLimit = 0.001
	cfg.RateLimitBurst = 1
	srv, _, err := server.SetupServer(mockRepo, cfg, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	conn := dial(t, srv)

	req := &server.QueryRequest{DeviceID: "D1", Start: start, End: end, Bucket: "1h", Aggregation: "AVG"}
	_, err = server.QueryEnergy(context.Background(), conn, req)
	require.NoError(t, err)
	_, err = server.QueryEnergy(context.Background(), conn, req)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestHealthOverGRPC(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	srv, health, err := server.SetupServer(mocks.NewMockEnergyRepository(ctrl), serverConfig(), nil, prometheus.NewRegistry())
	require.NoError(t, err)
	conn := dial(t, srv)
	client := grpc_health_v1.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: server.EnergyServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	_, err = client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Watch(ctx, &grpc_health_v1.HealthCheckRequest{Service: server.EnergyServiceName})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, first.Status)

	health.Shutdown()
	next, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, next.Status)

	// Updates after shutdown are ignored.
	health.SetServingStatus(server.EnergyServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	resp, err = client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: server.EnergyServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)
}
