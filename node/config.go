package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// PriorityGrowth selects how repeated PriorityUp calls grow an account's
// bootstrap priority.
type PriorityGrowth string

const (
	PriorityGrowthAdditive       PriorityGrowth = "additive"
	PriorityGrowthMultiplicative PriorityGrowth = "multiplicative"
)

type Config struct {
	Network  string `json:"network"`
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`

	BlockProcessorBatchSize      int    `json:"block_processor_batch_size"`
	BlockProcessorFullSize       int    `json:"block_processor_full_size"`
	BlockProcessorBatchMaxTimeMS uint64 `json:"block_processor_batch_max_time_ms"`
	SignatureCheckerThreads      int    `json:"signature_checker_threads"`
	UncheckedCutoffTimeS         uint64 `json:"unchecked_cutoff_time_s"`
	MaxPruningAgeS               uint64 `json:"max_pruning_age_s"`
	MaxPruningDepth              uint64 `json:"max_pruning_depth"`
	RollbackMaxDepth             int    `json:"rollback_max_depth"`

	PrioritiesMax  uint64         `json:"priorities_max"`
	BlockingMax    uint64         `json:"blocking_max"`
	CooldownMS     uint64         `json:"cooldown_ms"`
	PriorityGrowth PriorityGrowth `json:"priority_growth"`

	UniquerSize int `json:"uniquer_size"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".weft"
	}
	return filepath.Join(home, ".weft")
}

func DefaultConfig() Config {
	return Config{
		Network:  "dev",
		DataDir:  DefaultDataDir(),
		LogLevel: "info",

		BlockProcessorBatchSize:      256,
		BlockProcessorFullSize:       65536,
		BlockProcessorBatchMaxTimeMS: 500,
		SignatureCheckerThreads:      runtime.NumCPU(),
		UncheckedCutoffTimeS:         4 * 60 * 60,
		MaxPruningAgeS:               24 * 60 * 60,
		MaxPruningDepth:              0,
		RollbackMaxDepth:             1024,

		PrioritiesMax:  262144,
		BlockingMax:    262144,
		CooldownMS:     3000,
		PriorityGrowth: PriorityGrowthAdditive,

		UniquerSize: 65536,
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.BlockProcessorBatchSize <= 0 {
		return errors.New("block_processor_batch_size must be > 0")
	}
	if cfg.BlockProcessorFullSize < cfg.BlockProcessorBatchSize {
		return errors.New("block_processor_full_size must be >= batch size")
	}
	if cfg.BlockProcessorBatchMaxTimeMS == 0 {
		return errors.New("block_processor_batch_max_time_ms must be > 0")
	}
	if cfg.SignatureCheckerThreads <= 0 {
		return errors.New("signature_checker_threads must be > 0")
	}
	if cfg.RollbackMaxDepth <= 0 {
		return errors.New("rollback_max_depth must be > 0")
	}
	if cfg.PrioritiesMax == 0 || cfg.BlockingMax == 0 {
		return errors.New("priorities_max and blocking_max must be > 0")
	}
	switch cfg.PriorityGrowth {
	case PriorityGrowthAdditive, PriorityGrowthMultiplicative:
	default:
		return fmt.Errorf("invalid priority_growth %q", cfg.PriorityGrowth)
	}
	return nil
}
