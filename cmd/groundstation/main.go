package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kstaniek/groundstation/internal/logstore"
	"github.com/kstaniek/groundstation/internal/metrics"
	"github.com/kstaniek/groundstation/internal/pipeline"
	"github.com/kstaniek/groundstation/internal/registry"
)

// Helper implementations live in dedicated files: version.go, config.go,
// logger.go, bus_init.go, metrics_logger.go, mdns.go, catalogue_init.go.

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("groundstation %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	bus := initBus(cfg, l)
	cat := loadCatalogue(cfg, l)
	reg := registry.New()

	logs, err := logstore.Open(cfg.dataDir, "groundstation", wallClockRun)
	if err != nil {
		l.Error("logstore_open_error", "error", err)
		return
	}

	pipe := pipeline.New(cat, reg, logs, bus, cfg.tickPeriod)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	wg.Add(1)
	go func() {
		defer wg.Done()
		pipe.Run()
	}()

	metrics.SetReadinessFunc(func() bool {
		return pipe.Ready() && ctx.Err() == nil
	})

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	if cfg.mdnsEnable {
		port := mdnsPortFromAddr(cfg.metricsAddr)
		cleanupMDNS, err := startMDNS(ctx, cfg, port)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
		} else {
			l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", port)
			defer cleanupMDNS()
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	pipe.Stop()
	if err := saveCatalogue(cfg, cat); err != nil {
		l.Error("catalogue_save_error", "error", err)
	}
	wg.Wait()
}

// wallClockRun provides logstore.Open's run-identity clock: the current
// date and time split into the two path components a run directory needs.
func wallClockRun() (date, clock string) {
	now := time.Now()
	return now.Format("2006-01-02"), now.Format("15-04-05")
}

// mdnsPortFromAddr extracts a numeric port from a "host:port" or ":port"
// listen address advertising the metrics endpoint, since that is the only
// surface this process actually binds. Returns 0 if addr is empty or not
// parseable; the service is still advertised by name.
func mdnsPortFromAddr(addr string) int {
	if addr == "" {
		return 0
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
