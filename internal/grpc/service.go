package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tejusbharadwaj/wattwatch/internal/database"
	"github.com/tejusbharadwaj/wattwatch/internal/models"
)

const (
	EnergyServiceName = "wattwatch.v1.EnergyService"
	QueryEnergyMethod = "/" + EnergyServiceName + "/QueryEnergy"
)

// EnergyQuerier is the read side of the energy repository.
type EnergyQuerier interface {
	QueryEnergy(ctx context.Context, q database.Query) ([]models.EnergyBucket, error)
}

// QueryRequest asks for one device's stored readings aggregated into buckets.
type QueryRequest struct {
	DeviceID    string    `json:"device_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Bucket      string    `json:"bucket"`
	Aggregation string    `json:"aggregation"`
	Metric      string    `json:"metric,omitempty"`
	Channel     *int      `json:"channel,omitempty"`
}

type DataPoint struct {
	Time    time.Time `json:"time"`
	Channel int       `json:"channel"`
	Value   float64   `json:"value"`
}

type QueryResponse struct {
	Data []DataPoint `json:"data"`
}

// EnergyServiceServer is the server API for the energy service.
type EnergyServiceServer interface {
	QueryEnergy(context.Context, *QueryRequest) (*QueryResponse, error)
}

// EnergyService serves synced readings from the repository.
type EnergyService struct {
	repository EnergyQuerier
	validator  *RequestValidator
}

func NewEnergyService(repo EnergyQuerier) *EnergyService {
	return &EnergyService{
		repository: repo,
		validator:  NewRequestValidator(),
	}
}

// QueryEnergy implements EnergyServiceServer.
func (s *EnergyService) QueryEnergy(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	buckets, err := s.repository.QueryEnergy(ctx, database.Query{
		DeviceID:    req.DeviceID,
		Start:       req.Start,
		End:         req.End,
		Bucket:      req.Bucket,
		Aggregation: req.Aggregation,
		Metric:      req.Metric,
		Channel:     req.Channel,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "query failed: %v", err)
	}

	resp := &QueryResponse{Data: make([]DataPoint, len(buckets))}
	for i, b := range buckets {
		resp.Data[i] = DataPoint{Time: b.Time, Channel: b.Channel, Value: b.Value}
	}
	return resp, nil
}

// RegisterEnergyService adds srv to a gRPC server. Requests and responses
// use the JSON codec.
func RegisterEnergyService(r grpc.ServiceRegistrar, srv EnergyServiceServer) {
	r.RegisterService(&energyServiceDesc, srv)
}

// QueryEnergy calls the energy service over conn.
func QueryEnergy(ctx context.Context, conn grpc.ClientConnInterface, req *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := conn.Invoke(ctx, QueryEnergyMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func queryEnergyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnergyServiceServer).QueryEnergy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: QueryEnergyMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EnergyServiceServer).QueryEnergy(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var energyServiceDesc = grpc.ServiceDesc{
	ServiceName: EnergyServiceName,
	HandlerType: (*EnergyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "QueryEnergy",
			Handler:    queryEnergyHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}
