package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/dialogtable/dialogtable/internal/config"
	"github.com/dialogtable/dialogtable/internal/handler"
	"github.com/dialogtable/dialogtable/internal/health"
	"github.com/dialogtable/dialogtable/internal/metrics"
	"github.com/dialogtable/dialogtable/internal/persist"
	"github.com/dialogtable/dialogtable/internal/rpcapi"
	"github.com/dialogtable/dialogtable/internal/server"
	"github.com/dialogtable/dialogtable/internal/session"
	"github.com/dialogtable/dialogtable/internal/store"
	"github.com/dialogtable/dialogtable/internal/table"
	"github.com/dialogtable/dialogtable/internal/util/workerpool"
)

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	if err := os.MkdirAll(cfg.WriteAhead.DataDir, 0755); err != nil {
		logger.Fatal("Failed to create write-ahead log directory", zap.Error(err))
	}

	pool := workerpool.NewWorkerPool(&workerpool.Config{
		Name:       "index-backfill",
		MaxWorkers: cfg.Engine.IndexBackfillWorkers,
		QueueSize:  cfg.Engine.IndexBackfillWorkers * 4,
		Logger:     logger,
	})
	defer pool.Stop(cfg.Server.ShutdownTimeout)

	tableStore := store.New(pool, logger)

	var wals []*persist.WriteAheadLog
	tableStore.SetWriteAheadFactory(func(tableName string) (table.WriteAheadLogger, error) {
		wal, err := persist.NewWriteAheadLog(&persist.WriteAheadConfig{
			DataDir:     cfg.WriteAhead.DataDir,
			SegmentSize: cfg.WriteAhead.SegmentSize,
			SyncWrites:  cfg.WriteAhead.SyncWrites,
			BufferSize:  cfg.WriteAhead.BufferSize,
			MaxAge:      cfg.WriteAhead.MaxAge,
		}, tableName, logger)
		if err != nil {
			return nil, err
		}
		wals = append(wals, wal)
		return wal, nil
	})
	defer func() {
		for _, wal := range wals {
			wal.Close()
		}
	}()

	sessions := session.NewManager(tableStore, cfg.Engine.CursorBatchSize)

	dialogHandler := handler.New(tableStore, sessions, logger)

	m := metrics.NewMetrics(cfg.Server.NodeID)

	healthChecker := health.NewHealthChecker(&health.HealthCheckConfig{
		NodeID:        cfg.Server.NodeID,
		MaxGoroutines: cfg.Health.MaxGoroutines,
	}, tableStore, logger)

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	go healthChecker.Start(healthCtx)
	defer cancelHealth()

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = server.NewMetricsServer(&server.MetricsServerConfig{Port: cfg.Metrics.Port}, m, tableStore, healthChecker, logger)
		if err := metricsServer.Start(); err != nil {
			logger.Fatal("Failed to start metrics server", zap.Error(err))
		}
		defer metricsServer.Stop()
	}

	grpcServer := grpc.NewServer(
		grpc.MaxConcurrentStreams(uint32(cfg.Server.MaxConcurrentStreams)),
	)
	rpcapi.RegisterDialogServiceServer(grpcServer, dialogHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err))
	}

	logger.Info("Dialog table service starting",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("address", addr))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gracefully...")
		healthChecker.SetReadiness(false)
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(listener); err != nil {
		logger.Fatal("Failed to serve", zap.Error(err))
	}
}

// initLogger initializes the zap logger.
func initLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
