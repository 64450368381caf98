// Package config loads blefile settings from defaults, an optional YAML file,
// BLEFILE_* environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/blefile/file"
	"github.com/opd-ai/blefile/limits"
	"github.com/opd-ai/blefile/transport"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BLEFILE_"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete configuration of both binaries.
type Config struct {
	// URL is the WebSocket endpoint of the GATT bridge or simulator.
	URL       string          `yaml:"url"`
	Transfer  TransferConfig  `yaml:"transfer"`
	Logging   LoggingConfig   `yaml:"logging"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// TransferConfig maps onto file.Options.
type TransferConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	MaxPackets      int           `yaml:"max_packets"`
	MinChunkSize    int           `yaml:"min_chunk_size"`
	MaxChunkSize    int           `yaml:"max_chunk_size"`
	Alignment       int           `yaml:"alignment"`
	NameLength      int           `yaml:"name_length"`
	Marker          string        `yaml:"marker"`
	StartTimeout    time.Duration `yaml:"start_timeout"`
	FinalizeTimeout time.Duration `yaml:"finalize_timeout"`
	RenameTimeout   time.Duration `yaml:"rename_timeout"`
	PaceInterval    time.Duration `yaml:"pace_interval"`
	FinalizeRetries int           `yaml:"finalize_retries"`
	StrictFinalize  bool          `yaml:"strict_finalize"`
}

// LoggingConfig configures the logrus standard logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives log output; empty means stderr.
	File string `yaml:"file"`
}

// SimulatorConfig configures the blesim server.
type SimulatorConfig struct {
	Listen       string   `yaml:"listen"`
	RejectStart  bool     `yaml:"reject_start"`
	RejectRename bool     `yaml:"reject_rename"`
	DropChunks   []int    `yaml:"drop_chunks"`
	Silent       []string `yaml:"silent"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := file.DefaultOptions()
	return Config{
		URL: "ws://127.0.0.1:8765/ws",
		Transfer: TransferConfig{
			ChunkSize:       opts.Planner.DefaultChunkSize,
			MaxPackets:      opts.Planner.MaxPackets,
			MinChunkSize:    opts.Planner.MinChunkSize,
			MaxChunkSize:    opts.Planner.MaxChunkSize,
			Alignment:       opts.Planner.Alignment,
			NameLength:      opts.NameLength,
			Marker:          opts.Marker,
			StartTimeout:    opts.StartTimeout,
			FinalizeTimeout: opts.FinalizeTimeout,
			RenameTimeout:   opts.RenameTimeout,
			PaceInterval:    opts.PaceInterval,
			FinalizeRetries: opts.FinalizeRetries,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Simulator: SimulatorConfig{
			Listen: "127.0.0.1:8765",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path, when path is
// not empty, and then with environment variables found through lookup.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	env := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return v, ok && v != ""
	}
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := env(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := env(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := env(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := env(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("URL", &c.URL)
	num("CHUNK_SIZE", &c.Transfer.ChunkSize)
	num("MAX_PACKETS", &c.Transfer.MaxPackets)
	num("NAME_LENGTH", &c.Transfer.NameLength)
	str("MARKER", &c.Transfer.Marker)
	dur("START_TIMEOUT", &c.Transfer.StartTimeout)
	dur("FINALIZE_TIMEOUT", &c.Transfer.FinalizeTimeout)
	dur("RENAME_TIMEOUT", &c.Transfer.RenameTimeout)
	dur("PACE_INTERVAL", &c.Transfer.PaceInterval)
	num("FINALIZE_RETRIES", &c.Transfer.FinalizeRetries)
	boolean("STRICT_FINALIZE", &c.Transfer.StrictFinalize)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.File)
	str("LISTEN", &c.Simulator.Listen)

	return errors.Join(errs...)
}

// RegisterTransferFlags binds transfer and logging flags to c. Current values
// become the flag defaults, so flags override file and environment settings.
func (c *Config) RegisterTransferFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.URL, "url", c.URL, "WebSocket URL of the GATT bridge or simulator")
	fs.IntVar(&c.Transfer.ChunkSize, "chunk-size", c.Transfer.ChunkSize, "default chunk size in bytes")
	fs.IntVar(&c.Transfer.MaxPackets, "max-packets", c.Transfer.MaxPackets, "maximum number of chunks per upload")
	fs.DurationVar(&c.Transfer.StartTimeout, "start-timeout", c.Transfer.StartTimeout, "start acknowledgment timeout")
	fs.DurationVar(&c.Transfer.FinalizeTimeout, "finalize-timeout", c.Transfer.FinalizeTimeout, "finalize acknowledgment timeout")
	fs.DurationVar(&c.Transfer.RenameTimeout, "rename-timeout", c.Transfer.RenameTimeout, "rename acknowledgment timeout")
	fs.DurationVar(&c.Transfer.PaceInterval, "pace", c.Transfer.PaceInterval, "delay between chunk writes (0 disables)")
	fs.IntVar(&c.Transfer.FinalizeRetries, "finalize-retries", c.Transfer.FinalizeRetries, "replay rounds after a failed finalize")
	fs.BoolVar(&c.Transfer.StrictFinalize, "strict-finalize", c.Transfer.StrictFinalize, "fail when finalize still reports missing data after replay")
	c.registerLoggingFlags(fs)
}

// RegisterSimulatorFlags binds simulator and logging flags to c.
func (c *Config) RegisterSimulatorFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Simulator.Listen, "listen", c.Simulator.Listen, "listen address")
	fs.BoolVar(&c.Simulator.RejectStart, "reject-start", c.Simulator.RejectStart, "reject every start command")
	fs.BoolVar(&c.Simulator.RejectRename, "reject-rename", c.Simulator.RejectRename, "reject every rename command")
	fs.Var((*intList)(&c.Simulator.DropChunks), "drop", "chunk index to drop once (repeatable)")
	fs.Var((*stringList)(&c.Simulator.Silent), "silent", "opcode never acknowledged, e.g. C2 (repeatable)")
	c.registerLoggingFlags(fs)
}

func (c *Config) registerLoggingFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "log level (debug, info, warn, error)")
	fs.StringVar(&c.Logging.Format, "log-format", c.Logging.Format, "log format (text, json)")
	fs.StringVar(&c.Logging.File, "log-file", c.Logging.File, "log file path (default: stderr)")
}

// Validate rejects settings no upload could run with.
func (c Config) Validate() error {
	t := c.Transfer
	switch {
	case t.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	case t.MaxPackets <= 0 || t.MaxPackets > limits.MaxChunkCount:
		return fmt.Errorf("%w: max packets must be between 1 and %d", ErrInvalidConfig, limits.MaxChunkCount)
	case t.MinChunkSize <= 0 || t.MinChunkSize > t.MaxChunkSize:
		return fmt.Errorf("%w: chunk size bounds [%d, %d] are invalid", ErrInvalidConfig, t.MinChunkSize, t.MaxChunkSize)
	case t.Alignment <= 0:
		return fmt.Errorf("%w: alignment must be positive", ErrInvalidConfig)
	case t.NameLength <= 0:
		return fmt.Errorf("%w: name length must be positive", ErrInvalidConfig)
	case len(t.Marker) != 4 || !isHex(t.Marker):
		return fmt.Errorf("%w: marker %q must be 4 hex characters", ErrInvalidConfig, t.Marker)
	case t.StartTimeout <= 0 || t.FinalizeTimeout <= 0 || t.RenameTimeout <= 0:
		return fmt.Errorf("%w: acknowledgment timeouts must be positive", ErrInvalidConfig)
	case t.PaceInterval < 0:
		return fmt.Errorf("%w: pace interval cannot be negative", ErrInvalidConfig)
	case t.FinalizeRetries < 0:
		return fmt.Errorf("%w: finalize retries cannot be negative", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		return fmt.Errorf("%w: log format %q must be text or json", ErrInvalidConfig, c.Logging.Format)
	}
	if _, err := c.SilentOpcodes(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SessionOptions builds upload options from the transfer settings.
func (c Config) SessionOptions() file.Options {
	t := c.Transfer
	opts := file.DefaultOptions()
	opts.Planner = file.PlannerConfig{
		DefaultChunkSize: t.ChunkSize,
		MaxPackets:       t.MaxPackets,
		MinChunkSize:     t.MinChunkSize,
		MaxChunkSize:     t.MaxChunkSize,
		Alignment:        t.Alignment,
	}
	opts.NameLength = t.NameLength
	opts.Marker = strings.ToUpper(t.Marker)
	opts.StartTimeout = t.StartTimeout
	opts.FinalizeTimeout = t.FinalizeTimeout
	opts.RenameTimeout = t.RenameTimeout
	opts.PaceInterval = t.PaceInterval
	opts.FinalizeRetries = t.FinalizeRetries
	opts.StrictFinalize = t.StrictFinalize
	return opts
}

// SilentOpcodes parses Simulator.Silent.
func (c Config) SilentOpcodes() ([]transport.Opcode, error) {
	ops := make([]transport.Opcode, 0, len(c.Simulator.Silent))
	for _, s := range c.Simulator.Silent {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(s), "0X"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("silent opcode %q: %w", s, err)
		}
		ops = append(ops, transport.Opcode(v))
	}
	return ops, nil
}

// ConfigPath returns the value of a -config or --config argument, or the
// BLEFILE_CONFIG environment variable when no flag is given.
func ConfigPath(args []string, lookup func(string) (string, bool)) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(EnvPrefix + "CONFIG")
	return v
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

type intList []int

func (l *intList) String() string {
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return err
		}
		*l = append(*l, n)
	}
	return nil
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		*l = append(*l, strings.TrimSpace(part))
	}
	return nil
}
