package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"genAgent/internal/cli"
	"genAgent/internal/config"
	"genAgent/internal/database"
	"genAgent/internal/logger"
	"genAgent/internal/migrations"
	"genAgent/internal/selectors"
	"genAgent/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logger.Env, cfg.Logger.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := migrations.Run(cfg, log); err != nil {
		log.Fatal("Ошибка миграций", zap.Error(err))
	}

	db, err := database.New(cfg, log)
	if err != nil {
		log.Fatal("Ошибка подключения к БД", zap.Error(err))
	}
	defer db.Close(log)

	repo := database.NewRepository(db.DB)

	reg, err := selectors.Load(cfg.Selectors.Path)
	if err != nil {
		log.Fatal("Ошибка загрузки селекторов", zap.Error(err))
	}

	srv := server.New(cfg, log, repo)
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("HTTP сервер остановился", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console := cli.New(cfg, reg, repo, srv, log)
	console.Run(ctx)
}
