package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/auth"
	"github.com/teranos/OPTIX/config"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/graph"
	"github.com/teranos/OPTIX/history"
	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/repocache"
	"github.com/teranos/OPTIX/scip"
	"github.com/teranos/OPTIX/server"
)

// ServeCmd starts the OPTIX server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the OPTIX server (worker pool + HTTP API)",
	Long: `Launch the OPTIX server: the async worker pool that executes graph
builds, history mining, and index ingestion, plus the HTTP API and the
WebSocket job-event stream that front them.`,
	RunE: runServe,
}

var (
	servePort   int
	serveDBPath string
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides config)")
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Default to 1 (Info) for the server so operators see job activity
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	port := cfg.ServerPort()
	if servePort > 0 {
		port = servePort
	}

	dbPath := serveDBPath
	if dbPath == "" {
		dbPath = cfg.DatabasePath()
	}

	database, err := openDatabase(dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	printStartupBanner(verbosity, dbPath)

	// Repository cache shared by the graph and history job handlers
	cache := repocache.NewCache(cfg.CacheDir(), cfg.CacheFetchInterval(), logger.Logger)

	// Identity and git credentials both come off request headers; the
	// CLI process itself holds no credentials.
	resolver := auth.NewHeaderResolver()

	// Register every job kind the pool can execute, then build the pool
	dispatcher := async.NewDispatcher()
	handlers := []async.Handler{
		graph.NewHandler(
			graph.NewStore(database),
			cache,
			resolver,
			graph.NewScanner(cfg.Graph.MaxFileKB, logger.Logger),
			logger.Logger,
		),
		history.NewHandler(
			history.NewStore(database),
			cache,
			resolver,
			history.NewMiner(logger.Logger),
			logger.Logger,
		),
		scip.NewHandler(
			scip.NewIngester(database, logger.Logger),
			logger.Logger,
		),
	}
	for _, h := range handlers {
		if err := dispatcher.Register(h); err != nil {
			return errors.Wrap(err, "failed to register job handler")
		}
	}

	poolCfg := async.Config{
		Workers:      cfg.Pulse.Workers,
		PollInterval: cfg.PulsePollInterval(),
		StaleAfter:   cfg.PulseStaleAfter(),
	}
	pool := async.NewWorkerPool(database, poolCfg, dispatcher, logger.Logger)

	srv, err := server.NewOPTIXServer(database, cfg, pool, cache, resolver, resolver, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	// Watch the config file for edits; stopped after the server drains
	watcher := setupConfigWatcher(cfg)
	if watcher != nil {
		defer watcher.Stop()
	}

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	// Wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		// Server failed to start or stopped unexpectedly
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		// Wait for either shutdown completion or second Ctrl+C
		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}

// setupConfigWatcher watches the loaded config file for edits. Reloads
// are validated before they take effect; settings that cannot apply to
// a running server (port, workers, storage paths) are called out so the
// operator knows a restart is needed.
func setupConfigWatcher(cfg *config.Config) *config.ConfigWatcher {
	configPath := config.ActiveConfigFile()
	if configPath == "" {
		logger.Infow("No config file found, using defaults (config watching disabled)")
		return nil
	}

	watcher, err := config.NewConfigWatcher(configPath)
	if err != nil {
		logger.Warnw("Failed to create config watcher, manual restart required for config changes",
			"error", err)
		return nil
	}

	// Set global watcher to prevent reload loops on our own writes
	config.SetGlobalWatcher(watcher)

	oldPort := cfg.ServerPort()
	oldWorkers := cfg.Pulse.Workers
	watcher.OnReload(func(newCfg *config.Config) error {
		// Hotspot defaults apply in place: the server reads them per
		// request through the same Config the handlers were built with.
		cfg.Hotspots = newCfg.Hotspots
		logger.Infow("Config reloaded",
			"path", configPath,
			"hotspot_window_weeks", newCfg.Hotspots.WindowWeeks,
			"hotspot_threshold", newCfg.Hotspots.Threshold,
		)
		if newCfg.ServerPort() != oldPort {
			logger.Warnw("server.port changed, restart required to take effect",
				"running", oldPort,
				"configured", newCfg.ServerPort(),
			)
		}
		if newCfg.Pulse.Workers != oldWorkers {
			logger.Warnw("pulse.workers changed, restart required to take effect",
				"running", oldWorkers,
				"configured", newCfg.Pulse.Workers,
			)
		}
		return nil
	})

	watcher.Start()
	logger.Infow("Config watcher started", "path", configPath)
	return watcher
}
