package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tezos-gateway/internal/bootstrap"
	"tezos-gateway/internal/service"
	"tezos-gateway/internal/signer"
	"tezos-gateway/internal/store"
	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/logger"
	"tezos-gateway/pkg/utils/lock"
)

// send-worker 消费 send / inject 队列, 持有签名密钥
func main() {
	config.Init()
	cfg := config.Global

	logger.Init(cfg.App.Env)
	defer logger.Sync()

	logger.Info("启动发送服务 (Send Worker)...", zap.String("env", cfg.App.Env))

	db, err := bootstrap.Postgres(cfg.DB)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	rdb, err := bootstrap.Redis(cfg.Redis)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	nodes, err := bootstrap.NodePool(cfg.Tezos)
	if err != nil {
		logger.Fatal("节点池初始化失败", zap.Error(err))
	}
	keys, err := signer.LoadKeyring(cfg.Signers)
	if err != nil {
		logger.Fatal("密钥加载失败", zap.Error(err))
	}

	name := "send-worker-" + uuid.NewString()[:8]
	producer, consumer := bootstrap.Broker(cfg, rdb, name)

	jobStore := store.NewGormStore(db)
	forging := service.NewForgingService(nodes, jobStore, bootstrap.SchemaCache(cfg.Cache, rdb), service.ForgingOptions{
		MaxOperationsPerBatch: cfg.Tezos.MaxOperationsPerBatch,
		RetryAttempts:         cfg.Tezos.RetryAttempts,
		SchemaTTL:             cfg.Cache.ContractTTL,
	})
	jobs := service.NewJobService(nodes, jobStore, forging, keys, producer, cfg.Queues, cfg.Tezos.RetryAttempts)
	dispatcher := service.NewDispatcher(consumer, jobs, lock.NewRedisLock(rdb, name), cfg.Queues)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker ready", zap.String("name", name), zap.Strings("secure_keys", keys.Names()))
	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Dispatcher stopped", zap.Error(err))
	}

	logger.Info("正在停止发送服务...")
	_ = consumer.Close()
	_ = producer.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = rdb.Close()
	logger.Info("发送服务已停止")
	os.Exit(0)
}
