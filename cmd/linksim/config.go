package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// linksim config.toml key mapping to simulation settings.
type fileConfig struct {
	Ticks               int    `toml:"ticks"`
	PacketCount         int    `toml:"packet_count"`
	PayloadSize         int    `toml:"payload_size"`
	SkipInterval        int    `toml:"skip_interval"`
	SkipIntervalMax     int    `toml:"skip_interval_max"`
	RetryBufferCapacity int    `toml:"retry_buffer_capacity"`
	AckDelay            int    `toml:"ack_delay"`
	AckTimeout          int    `toml:"ack_timeout"`
	MaxRetryCount       int    `toml:"max_retry_count"`
	CorruptEvery        int    `toml:"corrupt_every"`
	MetricsAddr         string `toml:"metrics_addr"`
	QlogDir             string `toml:"qlog_dir"`
}

type simConfig struct {
	// Ticks is how many link ticks to run.
	Ticks int
	// PacketCount and PayloadSize describe the traffic: PacketCount
	// payloads of PayloadSize bytes, sent from each side.
	PacketCount int
	PayloadSize int

	SkipInterval        int
	SkipIntervalMax     int
	RetryBufferCapacity int
	AckDelay            int
	AckTimeout          int
	MaxRetryCount       int

	// CorruptEvery flips one bit in every n-th data frame crossing the
	// wire, 0 disables fault injection.
	CorruptEvery int

	// MetricsAddr is the listen address of the Prometheus endpoint, empty
	// disables it.
	MetricsAddr string
	// QlogDir is where per-side event logs are written, empty disables
	// them.
	QlogDir string
}

func defaultSimConfig() simConfig {
	return simConfig{
		Ticks:        200_000,
		PacketCount:  100,
		PayloadSize:  256,
		SkipInterval: 32,
		AckDelay:     16,
		AckTimeout:   2048,
	}
}

// loadSimConfig overlays config file settings on the defaults.
func loadSimConfig(path string) (simConfig, error) {
	cfg := defaultSimConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return simConfig{}, fmt.Errorf("load linksim config: %w", err)
	}

	if meta.IsDefined("ticks") {
		cfg.Ticks = raw.Ticks
	}
	if meta.IsDefined("packet_count") {
		cfg.PacketCount = raw.PacketCount
	}
	if meta.IsDefined("payload_size") {
		cfg.PayloadSize = raw.PayloadSize
	}
	if meta.IsDefined("skip_interval") {
		cfg.SkipInterval = raw.SkipInterval
	}
	if meta.IsDefined("skip_interval_max") {
		cfg.SkipIntervalMax = raw.SkipIntervalMax
	}
	if meta.IsDefined("retry_buffer_capacity") {
		cfg.RetryBufferCapacity = raw.RetryBufferCapacity
	}
	if meta.IsDefined("ack_delay") {
		cfg.AckDelay = raw.AckDelay
	}
	if meta.IsDefined("ack_timeout") {
		cfg.AckTimeout = raw.AckTimeout
	}
	if meta.IsDefined("max_retry_count") {
		cfg.MaxRetryCount = raw.MaxRetryCount
	}
	if meta.IsDefined("corrupt_every") {
		cfg.CorruptEvery = raw.CorruptEvery
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("qlog_dir") {
		cfg.QlogDir = strings.TrimSpace(raw.QlogDir)
	}

	if err := cfg.validate(); err != nil {
		return simConfig{}, fmt.Errorf("invalid linksim config: %w", err)
	}
	return cfg, nil
}

func (c simConfig) validate() error {
	if c.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive")
	}
	if c.PacketCount < 0 {
		return fmt.Errorf("packet_count must not be negative")
	}
	if c.PayloadSize <= 0 {
		return fmt.Errorf("payload_size must be positive")
	}
	if c.CorruptEvery < 0 {
		return fmt.Errorf("corrupt_every must not be negative")
	}
	return nil
}
