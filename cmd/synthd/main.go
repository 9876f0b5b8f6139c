package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/manager"
	"github.com/luxfi/log"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/api"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/datastore"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/events"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/metrics"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/synth"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/websocket"
)

const (
	defaultDataDir     = ".synthd"
	defaultPort        = 8080
	defaultWSPort      = 8081
	defaultMetricsPort = 9090
)

type Config struct {
	DataDir  string
	LogLevel string

	HTTPPort    int
	WSPort      int
	MetricsPort int

	NATSUrl     string
	EventPrefix string

	EnableMetrics bool
}

type SynthNode struct {
	config  *Config
	db      database.Database
	store   *datastore.Store
	oracle  *synth.StaticOracle
	engine  *synth.Engine
	logger  log.Logger
	metrics *metrics.EngineMetrics

	wsServer *websocket.Server
	nats     *events.NATSEmitter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSynthNode(config *Config) (*SynthNode, error) {
	level, _ := log.ToLevel(config.LogLevel)
	logger := log.NewTestLogger(level)
	logger.Info("Initializing synthetics node")

	dataPath := filepath.Join(os.Getenv("HOME"), config.DataDir)
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// BadgerDB is the default, with an in-memory fallback for environments
	// where it cannot open.
	dbManager := manager.NewManager(dataPath, nil)
	dbConfig := manager.DefaultBadgerDBConfig("badgerdb")
	dbConfig.Namespace = "synthd"

	db, err := dbManager.New(dbConfig)
	if err != nil {
		logger.Warn("Failed to open BadgerDB", "error", err)
		memConfig := manager.DefaultMemoryConfig()
		db, err = dbManager.New(memConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		logger.Info("Using in-memory database")
	} else {
		logger.Info("BadgerDB initialized", "path", filepath.Join(dataPath, "badgerdb"))
	}

	store := datastore.New(db)
	oracle := synth.NewStaticOracle()

	ctx, cancel := context.WithCancel(context.Background())

	node := &SynthNode{
		config: config,
		db:     db,
		store:  store,
		oracle: oracle,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	// Event sinks: in-memory ring for the API, WebSocket fan-out, and an
	// optional NATS bridge for external indexers.
	sinks := []events.Emitter{events.NewMemoryEmitter(0)}

	var engineOpts []synth.Option
	if config.EnableMetrics {
		m, err := metrics.New("synth")
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		node.metrics = m
		engineOpts = append(engineOpts, synth.WithMetrics(m))
	}
	if config.NATSUrl != "" {
		nats, err := events.NewNATSEmitter(config.NATSUrl, config.EventPrefix, logger)
		if err != nil {
			logger.Warn("NATS unavailable, events stay local", "error", err)
		} else {
			node.nats = nats
			sinks = append(sinks, nats)
			logger.Info("NATS event bridge connected", "url", config.NATSUrl)
		}
	}

	engine := synth.NewEngine(store, oracle, logger, engineOpts...)
	node.engine = engine

	// The WebSocket server needs the engine for market snapshots, so the
	// emitter chain is finalized once both exist.
	ws := websocket.NewServer(engine, logger, websocket.DefaultConfig())
	node.wsServer = ws
	sinks = append(sinks, ws)
	synth.WithEmitter(events.NewMultiEmitter(sinks...))(engine)

	return node, nil
}

func (n *SynthNode) Start() error {
	n.logger.Info("Starting synthetics node",
		"dataDir", filepath.Join(os.Getenv("HOME"), n.config.DataDir),
		"httpPort", n.config.HTTPPort,
		"wsPort", n.config.WSPort)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		rpc := api.NewJSONRPCServer(n.engine, n.logger)
		rpc.SetOracle(n.oracle)
		if err := api.StartJSONRPCServerWithHandler(n.ctx, n.config.HTTPPort, rpc, n.logger); err != nil {
			n.logger.Error("JSON-RPC server error", "error", err)
		}
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.wsServer.Start(n.config.WSPort); err != nil {
			n.logger.Error("WebSocket server error", "error", err)
		}
	}()

	if n.metrics != nil {
		if err := n.metrics.StartServer(fmt.Sprintf("%d", n.config.MetricsPort)); err != nil {
			n.logger.Error("Metrics server error", "error", err)
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.metrics.CollectSystemMetrics(n.ctx)
		}()
	}

	n.logger.Info("Synthetics node started successfully")
	return nil
}

func (n *SynthNode) Shutdown() {
	n.logger.Info("Shutting down synthetics node...")

	n.cancel()
	if n.wsServer != nil {
		n.wsServer.Stop()
	}
	n.wg.Wait()

	if n.nats != nil {
		n.nats.Close()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info("Synthetics node shutdown complete")
}

func main() {
	config := &Config{}

	flag.StringVar(&config.DataDir, "data-dir", defaultDataDir, "Data directory (relative to $HOME)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.IntVar(&config.HTTPPort, "http-port", defaultPort, "HTTP API port")
	flag.IntVar(&config.WSPort, "ws-port", defaultWSPort, "WebSocket port")
	flag.IntVar(&config.MetricsPort, "metrics-port", defaultMetricsPort, "Prometheus metrics port")
	flag.StringVar(&config.NATSUrl, "nats-url", "", "NATS server URL (empty disables publishing)")
	flag.StringVar(&config.EventPrefix, "event-prefix", "synth.events", "NATS subject prefix for events")
	flag.BoolVar(&config.EnableMetrics, "enable-metrics", true, "Enable Prometheus metrics")
	flag.Parse()

	rootLogger := log.Root()
	rootLogger.Info("Starting synthetics pricing node",
		"platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		"cpus", runtime.NumCPU(),
		"dataDir", filepath.Join(os.Getenv("HOME"), config.DataDir))

	node, err := NewSynthNode(config)
	if err != nil {
		rootLogger.Crit("Failed to create node", "error", err)
		os.Exit(1)
	}

	if err := node.Start(); err != nil {
		rootLogger.Crit("Failed to start node", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	rootLogger.Info("Received shutdown signal", "signal", sig)

	node.Shutdown()
	time.Sleep(100 * time.Millisecond)
}
