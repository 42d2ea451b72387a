package main

import (
	"log/slog"

	"github.com/kstaniek/groundstation/internal/eventbus"
)

func initBus(cfg *appConfig, l *slog.Logger) *eventbus.Bus {
	b := eventbus.New()
	switch cfg.busPolicy {
	case "drop":
		b.Policy = eventbus.PolicyDrop
	case "kick":
		b.Policy = eventbus.PolicyKick
	default:
		l.Warn("unknown_bus_policy", "policy", cfg.busPolicy, "used", "drop")
		b.Policy = eventbus.PolicyDrop
	}
	policyStr := map[eventbus.BackpressurePolicy]string{eventbus.PolicyDrop: "drop", eventbus.PolicyKick: "kick"}[b.Policy]
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	l.Info("bus_config", "policy", policyStr, "buffer", cfg.busBuffer)
	return b
}
