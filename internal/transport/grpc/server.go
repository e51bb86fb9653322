package grpcx

import (
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName names the room service and its health entry.
const ServiceName = "meet.v1.MeetService"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewServer serves reg as MeetService next to the health service.
// historyLimit applies when UserHistory is called without n.
func NewServer(reg Registry, historyLimit int, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	}, opts...)

	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.grpc.RegisterService(&MeetServiceDesc, &meetService{reg: reg, historyLimit: historyLimit})

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop flips health to NOT_SERVING before draining connections.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
