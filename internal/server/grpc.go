package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name reported by the gRPC health service.
const ServiceName = "tezos.gateway"

// NewGRPCServer 初始化 gRPC 服务 (health + reflection)
func NewGRPCServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return s, hs
}
