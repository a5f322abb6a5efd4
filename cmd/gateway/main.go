package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tezos-gateway/internal/bootstrap"
	"tezos-gateway/internal/handler"
	"tezos-gateway/internal/indexer"
	"tezos-gateway/internal/model"
	"tezos-gateway/internal/server"
	"tezos-gateway/internal/service"
	"tezos-gateway/internal/signer"
	"tezos-gateway/internal/store"
	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/utils/lock"

	_ "tezos-gateway/docs/swagger"
)

// @title Tezos Gateway API
// @version 1.0
// @description Forges, signs, injects and tracks Tezos contract calls.
// @host localhost:3333
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	db, err := bootstrap.Postgres(cfg.DB)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	if cfg.App.Env == "development" {
		logger.Info("开发环境: GORM AutoMigrate")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	}

	// 3. 连接 Redis
	rdb, err := bootstrap.Redis(cfg.Redis)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 节点池与浏览器池
	nodes, err := bootstrap.NodePool(cfg.Tezos)
	if err != nil {
		logger.Fatal("节点池初始化失败", zap.Error(err))
	}
	providers, err := indexer.NewProviders(cfg.Indexers)
	if err != nil {
		logger.Fatal("浏览器配置错误", zap.Error(err))
	}
	indexers, err := indexer.NewPool(cfg.Tezos.RetryAttempts, providers...)
	if err != nil {
		logger.Fatal("浏览器池初始化失败", zap.Error(err))
	}

	keys, err := signer.LoadKeyring(cfg.Signers)
	if err != nil {
		logger.Fatal("密钥加载失败", zap.Error(err))
	}
	logger.Info("Secure keys loaded", zap.Strings("names", keys.Names()))

	// 5. 消息队列
	hostname, _ := os.Hostname()
	producer, _ := bootstrap.Broker(cfg, rdb, hostname)

	// 6. 业务服务
	jobStore := store.NewGormStore(db)
	forging := service.NewForgingService(nodes, jobStore, bootstrap.SchemaCache(cfg.Cache, rdb), service.ForgingOptions{
		MaxOperationsPerBatch: cfg.Tezos.MaxOperationsPerBatch,
		RetryAttempts:         cfg.Tezos.RetryAttempts,
		SchemaTTL:             cfg.Cache.ContractTTL,
	})
	jobs := service.NewJobService(nodes, jobStore, forging, keys, producer, cfg.Queues, cfg.Tezos.RetryAttempts)

	// 7. 消息中继与确认监控
	ctx, cancel := context.WithCancel(context.Background())
	relay := service.NewRelayService(jobStore, producer)
	go relay.Start(ctx)

	confirmations := service.NewConfirmationMonitor(jobStore, indexers, producer, lock.NewRedisLock(rdb, hostname+"-"+uuid.NewString()), service.MonitorOptions{
		Schedule: cfg.Monitor.Schedule,
		Depth:    cfg.Tezos.ConfirmationDepth,
		Queue:    cfg.Queues.Confirmation,
		ClaimTTL: cfg.Monitor.ClaimTTL,
	})
	if err := confirmations.Start(); err != nil {
		logger.Fatal("确认监控启动失败", zap.Error(err))
	}

	// 8. HTTP + gRPC
	r := server.NewHTTPRouter(server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Probe{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Jobs:   handler.NewJobHandler(forging, jobs),
		Chain:  handler.NewChainHandler(indexers, cfg.Tezos.ConfirmationDepth),
	})
	grpcServer, hs := server.NewGRPCServer()

	app, err := server.New(server.Config{HttpPort: cfg.App.HttpPort, GrpcPort: cfg.App.GrpcPort}, r, grpcServer, hs)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}
	app.OnShutdown(confirmations.Stop)
	app.OnShutdown(cancel)
	app.OnShutdown(func() {
		_ = producer.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = rdb.Close()
	})

	// 运行 (阻塞)
	app.Run()
	logger.Info("系统已退出")
}
