// Package config defines service configuration and its layered loading:
// defaults, then an optional YAML file, then environment variables.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// HiddenDim and LatentDim size the shared encoder.
	HiddenDim int `koanf:"hidden_dim"`
	LatentDim int `koanf:"latent_dim"`

	// DropoutRate is the latent dropout used by stochastic rollouts.
	DropoutRate float64 `koanf:"dropout_rate"`

	// EncoderSeed fixes the shared weight initialization.
	EncoderSeed int64 `koanf:"encoder_seed"`

	// Rollouts is the number of stochastic passes per simulation.
	Rollouts int `koanf:"rollouts"`

	// SimulationWindow is the default forward-window size in days.
	SimulationWindow int `koanf:"simulation_window"`

	// RiskWindow is how many recent records feed the risk query.
	RiskWindow int `koanf:"risk_window"`

	// Epochs and LearningRate drive personalization.
	Epochs       int     `koanf:"epochs"`
	LearningRate float64 `koanf:"learning_rate"`

	// WorkerCount sets the number of background personalization workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the personalization job queue.
	QueueSize int `koanf:"queue_size"`

	// ShardCount configures store and registry sharding.
	ShardCount int `koanf:"shard_count"`

	// SnapshotPath is the weight-snapshot database directory; empty keeps
	// snapshots in memory only.
	SnapshotPath string `koanf:"snapshot_path"`

	// RefitSchedule is a cron expression for periodic background refits of
	// users with enough history; empty disables the schedule.
	RefitSchedule string `koanf:"refit_schedule"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		HiddenDim:        32,
		LatentDim:        16,
		DropoutRate:      0.1,
		EncoderSeed:      1,
		Rollouts:         20,
		SimulationWindow: 7,
		RiskWindow:       7,
		Epochs:           50,
		LearningRate:     1e-3,
		WorkerCount:      runtime.NumCPU(),
		QueueSize:        1024,
		ShardCount:       8,
		SnapshotPath:     "",
		RefitSchedule:    "",
	}
}
