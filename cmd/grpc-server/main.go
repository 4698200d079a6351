package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"streamhub/internal/catalogrpc"
	"streamhub/internal/content"
	"streamhub/internal/discovery"
	"streamhub/internal/profile"
	"streamhub/internal/subscription"
	"streamhub/pkg/database"
	"streamhub/pkg/logger"
	"streamhub/pkg/utils"
)

func main() {
	cfg, err := utils.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbCfg := database.ConfigFor(cfg.DBPath)
	db, err := database.Open(dbCfg)
	if err != nil {
		log.Fatal("open database", "path", dbCfg.Path, "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("migrate database", "error", err)
	}

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("grpc listen", "addr", cfg.GRPCAddr, "error", err)
	}

	contents := content.NewRepo(db)
	cat := &catalogrpc.Catalog{
		Discovery:     discovery.FromConfig(cfg.Discovery, contents, log),
		Contents:      contents,
		Profiles:      profile.NewRepo(db),
		Subscriptions: subscription.NewRepo(db),
		DefaultPages:  cfg.Discovery.DefaultPages,
	}
	grpcServer, healthServer := catalogrpc.NewServer(cat, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("grpc server listening", "addr", cfg.GRPCAddr, "db", dbCfg.Path)
		errCh <- grpcServer.Serve(listener)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		log.Error("grpc server stopped", "error", err)
	}

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	log.Info("grpc server stopped")
}
