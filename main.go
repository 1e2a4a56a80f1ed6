package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"VisionTracker/config"
	"VisionTracker/control"
	"VisionTracker/logger"
	"VisionTracker/monitor"
	"VisionTracker/platform"
	"VisionTracker/tracker"

	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the yaml configuration file")
		source     = flag.String("source", "", "frame source: video file path or camera index (default: configured device)")
		modelPath  = flag.String("model", "", "model path override")
		backends   = flag.String("backends", "", "comma separated backends to preload, e.g. yolo,mock")
		testMode   = flag.Bool("test-mode", false, "use synthetic frames instead of a camera")
		headless   = flag.Bool("headless", false, "force the background loop even when a display exists")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logOpts := logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File}
	if cfg.Logging.Development {
		err = logger.InitDevelopment(logOpts)
	} else {
		err = logger.InitProduction(logOpts)
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Log()

	plat := platform.Detect()
	log.Info("platform detected",
		zap.String("system", plat.System),
		zap.String("arch", plat.Arch),
		zap.Bool("wsl", plat.IsWSL),
		zap.Bool("docker", plat.IsDocker),
		zap.Bool("gui", plat.HasGUI))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitor.NewMetrics(log)
	if cfg.Control.Enabled {
		metrics.Start(ctx, cfg.Control.MetricsPort)
	}

	trk := tracker.New(cfg, plat, log, metrics, *headless)

	var preload []string
	if *backends != "" {
		for _, name := range strings.Split(*backends, ",") {
			if name = strings.TrimSpace(name); name != "" {
				preload = append(preload, name)
			}
		}
	}

	if err := trk.Initialize(*source, *testMode, *modelPath, preload); err != nil {
		log.Fatal("tracker initialization failed", zap.Error(err))
	}

	if cfg.Control.Enabled {
		control.NewServer(trk, log).Start(ctx, cfg.Control.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		trk.Stop()
		cancel()
	}()

	// blocks on the caller goroutine when a display is available; headless
	// it returns immediately and the worker runs in the background
	trk.Start()

	if trk.State() == tracker.StateRunning || trk.State() == tracker.StatePaused {
		<-ctx.Done()
	} else {
		trk.Stop()
		cancel()
	}
	log.Info("shutdown complete")
}
