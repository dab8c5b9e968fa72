// imeswitchd is the input source switching daemon. It watches global
// keyboard events for the escape and short-modifier-tap gestures and
// switches between the configured Latin layout and the last used
// non-Latin input source.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"imeswitchd/internal/config"
	"imeswitchd/internal/daemon"
	"imeswitchd/internal/hook"
	"imeswitchd/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath  = flag.String("config", "", "path to config file")
	logLevel    = flag.String("log-level", "", "override log level (debug, info, warn, error)")
	showVersion = flag.Bool("version", false, "print version and exit")
	checkOnly   = flag.Bool("check", false, "validate config and report hook availability, then exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("imeswitchd %s\n", Version)
		return
	}

	path := *configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := initLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Default().Close()
	log := logging.Default().WithComponent("daemon")

	if *checkOnly {
		ok, detail := hook.New().Available()
		fmt.Printf("config: ok (%s)\n", path)
		fmt.Printf("keyboard hook: %s\n", detail)
		if !ok {
			os.Exit(2)
		}
		return
	}

	d, err := daemon.New(cfg, path, daemon.Options{Log: log.Logger})
	if err != nil {
		log.Error("daemon init failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting imeswitchd", "version", Version, "config", path)

	if err := d.Run(ctx); err != nil {
		if errors.Is(err, hook.ErrInstallFailed) {
			log.Error("keyboard hook could not be installed; "+
				"grant input monitoring permission and restart", "error", err)
			os.Exit(2)
		}
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) error {
	logCfg := logging.DefaultConfig()
	logCfg.Component = "imeswitchd"
	logCfg.Output = cfg.Logging.Output
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	if lv, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logCfg.Level = lv
	}
	if f, err := logging.ParseFormat(cfg.Logging.Format); err == nil {
		logCfg.Format = f
	}
	if *logLevel != "" {
		lv, err := logging.ParseLevel(*logLevel)
		if err != nil {
			return err
		}
		logCfg.Level = lv
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	return nil
}
