package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	dataDir         string
	catalogueFile   string
	tickPeriod      time.Duration
	logFormat       string
	logLevel        string
	metricsAddr     string
	busBuffer       int
	busPolicy       string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	dataDir := flag.String("data-dir", "./data", "Root directory for per-run raw and decoded logs")
	catalogueFile := flag.String("catalogue-file", "./catalogue.yaml", "Path to the persisted packet format catalogue")
	tickPeriod := flag.Duration("tick-period", 50*time.Millisecond, "Pipeline poll period")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	busBuf := flag.Int("bus-buffer", 512, "Per-client event bus buffer (events)")
	busPolicy := flag.String("bus-policy", "drop", "Backpressure policy: drop|kick")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default groundstation-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.dataDir = *dataDir
	cfg.catalogueFile = *catalogueFile
	cfg.tickPeriod = *tickPeriod
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.busBuffer = *busBuf
	cfg.busPolicy = *busPolicy
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open files or listeners, only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.busPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid bus-policy: %s", c.busPolicy)
	}
	if c.busBuffer <= 0 {
		return fmt.Errorf("bus-buffer must be > 0 (got %d)", c.busBuffer)
	}
	if c.tickPeriod <= 0 {
		return fmt.Errorf("tick-period must be > 0")
	}
	if c.dataDir == "" {
		return errors.New("data-dir must not be empty")
	}
	if c.catalogueFile == "" {
		return errors.New("catalogue-file must not be empty")
	}
	return nil
}

// applyEnvOverrides maps GROUNDSTATION_* environment variables to config
// fields unless a corresponding flag was explicitly set. Boolean & numeric
// parsing is lax: empty values ignored. Duration accepts Go's
// time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["data-dir"]; !ok {
		if v, ok := get("GROUNDSTATION_DATA_DIR"); ok && v != "" {
			c.dataDir = v
		}
	}
	if _, ok := set["catalogue-file"]; !ok {
		if v, ok := get("GROUNDSTATION_CATALOGUE_FILE"); ok && v != "" {
			c.catalogueFile = v
		}
	}
	if _, ok := set["tick-period"]; !ok {
		if v, ok := get("GROUNDSTATION_TICK_PERIOD"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.tickPeriod = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid GROUNDSTATION_TICK_PERIOD: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("GROUNDSTATION_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("GROUNDSTATION_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("GROUNDSTATION_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["bus-buffer"]; !ok {
		if v, ok := get("GROUNDSTATION_BUS_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.busBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid GROUNDSTATION_BUS_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["bus-policy"]; !ok {
		if v, ok := get("GROUNDSTATION_BUS_POLICY"); ok && v != "" {
			c.busPolicy = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("GROUNDSTATION_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("GROUNDSTATION_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("GROUNDSTATION_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid GROUNDSTATION_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}
