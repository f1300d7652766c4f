package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pettrace/config"
	"pettrace/core"
	"pettrace/core/events"
	"pettrace/core/genesis"
	"pettrace/observability"
	"pettrace/observability/logging"
	obsotel "pettrace/observability/otel"
	"pettrace/rpc"
	"pettrace/storage"
	"pettrace/storage/eventlog"
	"pettrace/storage/receipts"
)

const (
	genesisPathEnv  = "PETTRACE_GENESIS"
	shutdownTimeout = 10 * time.Second
	serviceName     = "pettraced"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	configFile := fs.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := fs.String("genesis", "", "Path to a genesis YAML file (overrides PETTRACE_GENESIS and config GenesisFile)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, logCloser := logging.SetupWithFile(serviceName, cfg.Environment, logging.ParseLevel(cfg.Logging.Level), logging.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()

	if _, err := cfg.RPC.JWT.Secret(); err != nil {
		logger.Error("RPC authentication misconfigured", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := obsotel.Init(ctx, obsotel.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        cfg.Telemetry.Headers,
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Error("Failed to initialise telemetry", slog.Any("error", err))
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(cfg.StateDir())
	if err != nil {
		logger.Error("Failed to open state database", slog.Any("error", err))
		return 1
	}
	defer db.Close()

	var spec *genesis.GenesisSpec
	path, explicit := resolveGenesisPath(*genesisFlag, cfg.ResolveGenesis(*configFile), os.LookupEnv)
	if _, statErr := os.Stat(path); path != "" && (explicit || statErr == nil) {
		spec, err = genesis.LoadGenesisSpec(path)
		if err != nil {
			logger.Error("Failed to load genesis spec", slog.String("path", path), slog.Any("error", err))
			return 1
		}
	}

	node, err := core.NewNode(db, spec)
	if err != nil {
		logger.Error("Failed to create node", slog.Any("error", err))
		return 1
	}
	maxNative, maxStable, err := cfg.Bounty.Caps()
	if err != nil {
		logger.Error("Failed to parse bounty caps", slog.Any("error", err))
		return 1
	}
	if err := node.SetCaps(maxNative, maxStable); err != nil {
		logger.Error("Failed to apply bounty caps", slog.Any("error", err))
		return 1
	}

	receiptStore, err := receipts.Open(cfg.ReceiptsFile, nil)
	if err != nil {
		logger.Error("Failed to open receipt store", slog.Any("error", err))
		return 1
	}
	defer receiptStore.Close()
	node.SetReceiptStore(receiptStore)

	hub := rpc.NewEventHub()
	defer hub.Close()
	sinks := events.Fanout{hub}
	var archive rpc.EventArchive
	if cfg.Archive.Enabled {
		store, err := eventlog.Open(cfg.Archive.Driver, cfg.Archive.DSN)
		if err != nil {
			logger.Error("Failed to open event archive", slog.String("driver", cfg.Archive.Driver), slog.Any("error", err))
			return 1
		}
		defer store.Close()
		store.OnFailure = func(error) { observability.Registry().RecordArchiveFailure() }
		sinks = append(sinks, store)
		archive = store
	}
	node.SetEventSink(sinks)

	rpcServer, err := rpc.NewServer(node, archive, hub, serverConfig(cfg))
	if err != nil {
		logger.Error("Failed to initialise RPC server", slog.Any("error", err))
		return 1
	}
	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- rpcServer.Start(cfg.ListenAddress)
		close(rpcErrCh)
	}()
	if err := waitForRPCStartup(cfg.ListenAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		return 1
	}
	logger.Info("PetTrace registry node running",
		slog.String("listen", cfg.ListenAddress),
		slog.Uint64("chainId", node.ChainID()),
		slog.Bool("archive", cfg.Archive.Enabled))

	exit := 0
	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err, ok := <-rpcErrCh:
		if ok && err != nil {
			logger.Error("RPC server terminated", slog.Any("error", err))
			exit = 1
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rpcServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("RPC shutdown incomplete", slog.Any("error", err))
	}
	return exit
}

func serverConfig(cfg *config.Config) rpc.ServerConfig {
	return rpc.ServerConfig{
		ReadHeaderTimeout: time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.RPC.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.RPC.IdleTimeout) * time.Second,
		MaxPageSize:       cfg.RPC.MaxPageSize,
		TxPerMinute:       cfg.RPC.TxPerMinute,
		TxBurst:           cfg.RPC.TxBurst,
		AllowedOrigins:    append([]string{}, cfg.RPC.AllowedOrigins...),
		JWT: rpc.JWTConfig{
			Enable:         cfg.RPC.JWT.Enable,
			HSSecretEnv:    cfg.RPC.JWT.HSSecretEnv,
			Issuer:         cfg.RPC.JWT.Issuer,
			Audience:       cfg.RPC.JWT.Audience,
			MaxSkewSeconds: cfg.RPC.JWT.MaxSkewSeconds,
		},
	}
}

type envLookupFunc func(string) (string, bool)

// resolveGenesisPath prefers the flag, then the environment, then config.
// explicit is false for the config path, which may be absent once the
// store holds a genesis.
func resolveGenesisPath(cliPath string, cfgPath string, lookup envLookupFunc) (path string, explicit bool) {
	if trimmed := strings.TrimSpace(cliPath); trimmed != "" {
		return trimmed, true
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return strings.TrimSpace(cfgPath), false
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				return fmt.Errorf("RPC server exited before startup confirmation")
			}
			return err
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
