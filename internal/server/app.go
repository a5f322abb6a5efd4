package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tezos-gateway/pkg/logger"
)

type Config struct {
	HttpPort string
	GrpcPort string
}

type App struct {
	httpServer   *http.Server
	grpcServer   *grpc.Server
	health       *health.Server
	grpcListener net.Listener
	onShutdown   []func()
}

func New(cfg Config, httpHandler *gin.Engine, grpcServer *grpc.Server, hs *health.Server) (*App, error) {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HttpPort,
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GrpcPort)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on grpc port %s: %w", cfg.GrpcPort, err)
	}

	return &App{
		httpServer:   httpSrv,
		grpcServer:   grpcServer,
		health:       hs,
		grpcListener: lis,
	}, nil
}

// OnShutdown registers fn to run after the servers stopped, in order.
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() {
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Server failure", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Starting gRPC Server", zap.String("addr", a.grpcListener.Addr().String()))
		if err := a.grpcServer.Serve(a.grpcListener); err != nil {
			logger.Fatal("gRPC Server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if a.health != nil {
		a.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	a.grpcServer.GracefulStop()

	for _, fn := range a.onShutdown {
		fn()
	}
	logger.Info("Server exited properly")
}
