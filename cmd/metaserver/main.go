package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"eddisonso.com/go-qfs/internal/buildinfo"
	"eddisonso.com/go-qfs/internal/chunkstore"
	"eddisonso.com/go-qfs/internal/config"
	"eddisonso.com/go-qfs/internal/metaserver"
	"eddisonso.com/go-qfs/internal/wire"
	"eddisonso.com/go-qfs/pkg/qfslog"
	"github.com/google/uuid"
	"google.golang.org/grpc"
)

var (
	configPath string
	port       int
	dataDir    string
	logFile    string
	logSource  string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Config file (default "+config.Dir()+"/config.yaml)")
	flag.IntVar(&port, "port", 0, "Metaserver port, overrides server.port")
	flag.StringVar(&dataDir, "data", "", "Data directory for the WAL, overrides namespace.data_dir")
	flag.StringVar(&logFile, "log-file", "", "Mirror logs to this file as JSON lines")
	flag.StringVar(&logSource, "log-source", "qfs-metaserver", "Log source name (e.g., pod name)")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dataDir != "" {
		cfg.Namespace.DataDir = dataDir
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}

	logger, err := qfslog.NewLogger(qfslog.Config{
		Source:   logSource,
		MinLevel: cfg.Logging.SlogLevel(),
		Format:   cfg.Logging.Format,
		File:     cfg.Logging.File,
	})
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.Logger)
	defer logger.Close()

	slog.Info("starting metaserver",
		"port", cfg.Server.Port,
		"dataDir", cfg.Namespace.DataDir,
		"store", cfg.Store.Type,
		"buildId", buildinfo.BuildID,
		"buildTime", buildinfo.BuildTime)

	if cfg.Namespace.DataDir != "" {
		if err := os.MkdirAll(cfg.Namespace.DataDir, 0755); err != nil {
			slog.Error("failed to create data directory", "error", err)
			os.Exit(1)
		}
	}

	store, err := chunkstore.New(context.Background(), cfg.Store)
	if err != nil {
		slog.Error("failed to open chunk store", "error", err)
		os.Exit(1)
	}

	// The namespace owns the store from here on.
	ns, err := metaserver.NewNamespace(cfg.Namespace.Metaserver(), store)
	if err != nil {
		store.Close()
		slog.Error("failed to load namespace", "error", err)
		os.Exit(1)
	}
	defer ns.Close()

	secret := cfg.Server.SessionSecret
	if secret == "" {
		secret = uuid.NewString()
		slog.Warn("no session secret configured, sessions will not survive a restart")
	}
	sessions := metaserver.NewSessions(metaserver.StaticSecret([]byte(secret)), cfg.Server.SessionTTL)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(sessions.UnaryInterceptor()))
	wire.RegisterMetaServerServer(grpcServer, metaserver.NewGRPCServer(ns, sessions))

	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Server.Port))
	if err != nil {
		slog.Error("failed to listen", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down metaserver")

		timer := time.AfterFunc(cfg.Server.ShutdownTimeout, func() {
			slog.Warn("graceful shutdown timed out, closing connections")
			grpcServer.Stop()
		})
		grpcServer.GracefulStop()
		timer.Stop()
	}()

	slog.Info("metaserver listening", "port", cfg.Server.Port)
	if err := grpcServer.Serve(lis); err != nil {
		slog.Error("failed to serve", "error", err)
		os.Exit(1)
	}
}
