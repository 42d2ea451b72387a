package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/groundstation/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"errors", snap.Errors,
					"bus_clients", snap.Clients,
					"bus_fanout", snap.Fanout,
					"bus_drops", snap.DroppedMsg,
					"bus_kicks", snap.Kicks,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
