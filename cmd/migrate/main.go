package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"tezos-gateway/pkg/config"
	"tezos-gateway/pkg/logger"
)

func main() {
	var command, source string
	flag.StringVar(&command, "cmd", "up", "Command to run: up, down, version")
	flag.StringVar(&source, "path", "file://migrations", "Migration source URL")
	flag.Parse()

	config.Init()
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	db := config.Global.DB
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", db.User, db.Password, db.Host, db.Port, db.Name)

	m, err := migrate.New(source, dsn)
	if err != nil {
		logger.Fatal("Migration init failed", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("Migration up failed", zap.Error(err))
		}
		logger.Info("Migration up done")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("Migration down failed", zap.Error(err))
		}
		logger.Info("Migration down done")
	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			logger.Fatal("Migration version failed", zap.Error(err))
		}
		logger.Info("Migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	default:
		logger.Fatal("Unknown command", zap.String("cmd", command))
	}
}
