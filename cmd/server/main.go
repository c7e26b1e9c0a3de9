package main

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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/settlement-engine/internal/adapter/cache"
	grpcadapter "github.com/simaogato/settlement-engine/internal/adapter/grpc"
	"github.com/simaogato/settlement-engine/internal/adapter/queue"
	"github.com/simaogato/settlement-engine/internal/adapter/repository/memory"
	"github.com/simaogato/settlement-engine/internal/adapter/repository/postgres"
	redisrepo "github.com/simaogato/settlement-engine/internal/adapter/repository/redis"
	"github.com/simaogato/settlement-engine/internal/adapter/sender"
	"github.com/simaogato/settlement-engine/internal/config"
	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
	"github.com/simaogato/settlement-engine/internal/usecase/command"
	"github.com/simaogato/settlement-engine/internal/usecase/executor"
	"github.com/simaogato/settlement-engine/internal/usecase/processor"
	"github.com/simaogato/settlement-engine/internal/usecase/reconcile"
)

const serviceName = "settlement-engine"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := telemetry.NewLogger(serviceName, cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("settlement engine stopped with error", zap.Error(err))
	}
	logger.Info("settlement engine stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 1. Tracing
	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTLPEndpoint, cfg.Environment, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdownTracer()

	var clearing domain.BankAccount
	if cfg.ClearingAccount != "" {
		clearing, err = domain.NewBankAccount(cfg.ClearingAccount)
		if err != nil {
			return err
		}
	}

	// 2. Result sinks
	sinks := []domain.Sender{sender.NewLogSender(logger)}

	if cfg.DBConnStr != "" {
		db, err := postgres.NewDB(cfg.DBConnStr)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		sinks = append(sinks, sender.NewRecordingSender(postgres.NewOutcomeRepository(db), logger))
		logger.Info("recording outcomes to postgres")
	}

	if cfg.NATSURL != "" {
		nc, err := sender.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()

		sinks = append(sinks, sender.NewNATSSender(nc, cfg.NATSSubject, logger))
		logger.Info("publishing outcomes to NATS", zap.String("subject", cfg.NATSSubject))
	}

	results := sender.NewFanout(sinks...)

	// 3. Enqueue acknowledgement log
	var acks domain.AckLog = memory.NewAckLog()
	if cfg.RedisAddr != "" {
		client, err := redisrepo.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		acks = redisrepo.NewAckLog(client, "")
		logger.Info("acknowledging enqueued requests in redis", zap.String("addr", cfg.RedisAddr))
	}

	// 4. Engine
	requests := cache.NewRequestCache()
	requestQueue := queue.NewChannel()
	exec := executor.NewExecutor(executor.Config{
		Delay:              cfg.ExecutionDelay,
		FailureProbability: cfg.FailureProbability,
	}, logger)

	proc := processor.NewProcessor(requestQueue, exec, results, logger)
	sweeper := reconcile.NewSweeper(requests, acks, cfg.ReconcileGrace, logger)
	commands := command.NewService(
		requests,
		sender.NewQueueSender(requestQueue, logger),
		results,
		exec,
		acks,
		clearing,
		logger,
	)

	// 5. gRPC server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.ObservabilityInterceptor(logger),
			grpcadapter.AuthInterceptor(cfg.APIToken),
		),
	)
	grpcadapter.RegisterSettlementServer(grpcServer, grpcadapter.NewServer(commands))
	reflection.Register(grpcServer)

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	// 6. Metrics server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		logger.Info("metrics server listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return ignoreCancellation(proc.Run(gctx))
	})

	g.Go(func() error {
		return ignoreCancellation(sweeper.Run(gctx, cfg.ReconcileInterval))
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")

		grpcServer.GracefulStop()
		requestQueue.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func ignoreCancellation(err error) error {
	if err == nil || domain.IsCancellation(err) || errors.Is(err, queue.ErrQueueClosed) {
		return nil
	}
	return err
}
