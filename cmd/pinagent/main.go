// Command pinagent is the long-running Pin process: it owns the state
// machine, watches the external command file, and keeps the mirror
// window alive for the lifetime of a pin.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/southflowpeak/pin/internal/agent"
	"github.com/southflowpeak/pin/internal/dispatch"
	"github.com/southflowpeak/pin/internal/permission"
	"github.com/southflowpeak/pin/internal/prefs"
	"github.com/southflowpeak/pin/internal/window"
)

// Config holds pinagent's runtime configuration.
type Config struct {
	ConfigDir    string `json:"config_dir"`
	CommandFile  string `json:"command_file"`
	ResponseFile string `json:"response_file"`
}

// DefaultConfig returns the default pinagent configuration.
func DefaultConfig() *Config {
	configDir := prefs.DefaultConfigDir()
	return &Config{
		ConfigDir:    configDir,
		CommandFile:  filepath.Join(configDir, "pin-command.txt"),
		ResponseFile: filepath.Join(configDir, "pin-response.json"),
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := DefaultConfig()
	if err := os.MkdirAll(cfg.ConfigDir, 0o700); err != nil {
		logger.Fatal("creating config directory", zap.Error(err))
	}
	if _, err := os.Stat(cfg.CommandFile); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.CommandFile, nil, 0o644); err != nil {
			logger.Fatal("creating command file", zap.Error(err))
		}
	}

	store, err := prefs.NewStore(cfg.ConfigDir)
	if err != nil {
		logger.Fatal("opening preferences store", zap.Error(err))
	}

	gate := permission.NewGateWithLogger(logger)
	windows := window.NewManager()
	a := agent.New(logger, windows, gate, store)
	d := dispatch.New(a, windows, cfg.ResponseFile, logger)

	watcher, err := dispatch.NewWatcher(cfg.CommandFile, d, logger)
	if err != nil {
		logger.Fatal("starting command watcher", zap.Error(err))
	}
	defer watcher.Close()

	logger.Info("pinagent started",
		zap.String("command_file", cfg.CommandFile),
		zap.String("response_file", cfg.ResponseFile))

	go watcher.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("pinagent shutting down")
	a.Panic()
}
