// Package config provides unified configuration loading for spikenet.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/spikenet/internal/constants"
	"github.com/nvandessel/spikenet/internal/logging"
	"github.com/nvandessel/spikenet/internal/neuron"
	"github.com/nvandessel/spikenet/internal/pathutil"
	"github.com/nvandessel/spikenet/internal/plasticity"
	"github.com/nvandessel/spikenet/internal/topology"
	"github.com/nvandessel/spikenet/internal/world"
)

// Config contains all spikenet configuration settings.
type Config struct {
	Network      NetworkConfig      `json:"network" yaml:"network"`
	Morphology   MorphologyConfig   `json:"morphology" yaml:"morphology"`
	Plasticity   plasticity.Config  `json:"plasticity" yaml:"plasticity"`
	Transmission TransmissionConfig `json:"transmission" yaml:"transmission"`
	Run          RunConfig          `json:"run" yaml:"run"`
	Output       OutputConfig       `json:"output" yaml:"output"`
	Logging      LoggingConfig      `json:"logging" yaml:"logging"`
}

// NetworkConfig configures the layered-column topology.
type NetworkConfig struct {
	Columns int `json:"columns" yaml:"columns"`

	// LayerSizes maps layer names to the neuron count per column.
	LayerSizes map[string]int `json:"layer_sizes" yaml:"layer_sizes"`

	// LayerModels maps layer names to "izhikevich" or "hindmarsh_rose".
	// Layers not listed use Izhikevich neurons.
	LayerModels map[string]string `json:"layer_models" yaml:"layer_models"`

	AllowSelfConnections bool   `json:"allow_self_connections" yaml:"allow_self_connections"`
	Seed                 uint64 `json:"seed" yaml:"seed"`

	DelayMin           int     `json:"delay_min" yaml:"delay_min"`
	DelayMax           int     `json:"delay_max" yaml:"delay_max"`
	StrengthMin        float64 `json:"strength_min" yaml:"strength_min"`
	StrengthMax        float64 `json:"strength_max" yaml:"strength_max"`
	ExcitatoryFraction float64 `json:"excitatory_fraction" yaml:"excitatory_fraction"`
}

// MorphologyConfig holds the parameter sets shared by all neurons of a model.
type MorphologyConfig struct {
	Izhikevich    world.IzhikevichMorphology    `json:"izhikevich" yaml:"izhikevich"`
	HindmarshRose world.HindmarshRoseMorphology `json:"hindmarsh_rose" yaml:"hindmarsh_rose"`

	// NoiseMax bounds the uniform noise current added to Izhikevich neurons.
	NoiseMax float64 `json:"noise_max" yaml:"noise_max"`
}

// TransmissionConfig configures spike delivery.
type TransmissionConfig struct {
	// MaxAmplitude clamps each delivered amplitude. 0 disables the clamp.
	MaxAmplitude float64 `json:"max_amplitude" yaml:"max_amplitude"`
}

// RunConfig configures the tick loop.
type RunConfig struct {
	Ticks         uint64        `json:"ticks" yaml:"ticks"`
	RealTime      bool          `json:"real_time" yaml:"real_time"`
	TickDuration  time.Duration `json:"tick_duration" yaml:"tick_duration"`
	Workers       int           `json:"workers" yaml:"workers"`
	ProgressEvery uint64        `json:"progress_every" yaml:"progress_every"`
	CheckFinite   bool          `json:"check_finite" yaml:"check_finite"`
}

// OutputConfig configures the output sinks. Empty file names disable a sink.
type OutputConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	TraceCSV string `json:"trace_csv" yaml:"trace_csv"`
	Spikes   string `json:"spikes" yaml:"spikes"`
	Arrow    string `json:"arrow" yaml:"arrow"`
	SQLite   string `json:"sqlite" yaml:"sqlite"`

	// BufferSize is the write buffer per output file, e.g. "64KB" or "1MB".
	BufferSize datasize.ByteSize `json:"buffer_size" yaml:"buffer_size"`

	// BatchTicks is the number of ticks per Arrow record batch.
	BatchTicks int `json:"batch_ticks" yaml:"batch_ticks"`
}

// Path resolves an output file name against Dir. Absolute names are kept.
func (o OutputConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// LoggingConfig configures spikenet's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "warn", "info" (default), "debug", or "trace".
	// "debug" enables run event logging to <output dir>/events.jsonl.
	// "trace" additionally logs every tick.
	Level string `json:"level" yaml:"level"`
}

// Error reports an invalid configuration value.
type Error struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns a Config with the standard network and run settings.
func Default() *Config {
	params := topology.DefaultParams()
	sizes := make(map[string]int, len(world.Layers))
	for _, l := range world.Layers {
		sizes[l.String()] = constants.DefaultLayerSize
	}
	sizes[world.Internal.String()] = constants.DefaultInternalLayerSize

	return &Config{
		Network: NetworkConfig{
			Columns:            constants.DefaultColumns,
			LayerSizes:         sizes,
			LayerModels:        map[string]string{},
			Seed:               constants.DefaultSeed,
			DelayMin:           params.DelayMin,
			DelayMax:           params.DelayMax,
			StrengthMin:        params.StrengthMin,
			StrengthMax:        params.StrengthMax,
			ExcitatoryFraction: params.ExcitatoryFraction,
		},
		Morphology: MorphologyConfig{
			Izhikevich:    params.Izhikevich,
			HindmarshRose: params.HindmarshRose,
			NoiseMax:      neuron.DefaultNoiseMax,
		},
		Plasticity: plasticity.DefaultConfig(),
		Run: RunConfig{
			Ticks:         constants.DefaultTicks,
			TickDuration:  time.Millisecond,
			ProgressEvery: constants.DefaultProgressEvery,
		},
		Output: OutputConfig{
			Dir:        ".",
			TraceCSV:   constants.DefaultTraceFile,
			Spikes:     constants.DefaultSpikesFile,
			BufferSize: datasize.MB,
			BatchTicks: constants.DefaultBatchTicks,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.spikenet/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, constants.ConfigDirName, constants.ConfigFileName)
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadPath loads configuration from an explicit file and applies
// environment overrides. An empty path behaves like Load.
func LoadPath(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Settings the
// file leaves out keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that the configuration is valid. It returns a *Error
// naming the first offending field.
func (c *Config) Validate() error {
	if c.Network.Columns < 1 {
		return &Error{Field: "network.columns", Reason: fmt.Sprintf("must be at least 1, got %d", c.Network.Columns)}
	}
	for name, n := range c.Network.LayerSizes {
		if _, err := world.ParseLayer(name); err != nil {
			return &Error{Field: "network.layer_sizes", Reason: err.Error()}
		}
		if n < 0 {
			return &Error{Field: "network.layer_sizes." + name, Reason: fmt.Sprintf("must be non-negative, got %d", n)}
		}
	}
	for name, model := range c.Network.LayerModels {
		if _, err := world.ParseLayer(name); err != nil {
			return &Error{Field: "network.layer_models", Reason: err.Error()}
		}
		if _, err := world.ParseModel(model); err != nil {
			return &Error{Field: "network.layer_models." + name, Reason: err.Error()}
		}
	}
	for _, f := range []struct {
		field string
		v     float64
	}{
		{"network.strength_min", c.Network.StrengthMin},
		{"network.strength_max", c.Network.StrengthMax},
		{"network.excitatory_fraction", c.Network.ExcitatoryFraction},
		{"morphology.noise_max", c.Morphology.NoiseMax},
		{"transmission.max_amplitude", c.Transmission.MaxAmplitude},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &Error{Field: f.field, Reason: fmt.Sprintf("must be finite, got %g", f.v)}
		}
	}
	if err := c.Morphology.Izhikevich.Validate(); err != nil {
		return &Error{Field: "morphology.izhikevich", Reason: err.Error()}
	}
	if err := c.Morphology.HindmarshRose.Validate(); err != nil {
		return &Error{Field: "morphology.hindmarsh_rose", Reason: err.Error()}
	}
	if c.Morphology.NoiseMax < 0 {
		return &Error{Field: "morphology.noise_max", Reason: fmt.Sprintf("must be non-negative, got %g", c.Morphology.NoiseMax)}
	}
	if c.Plasticity.Enabled {
		if err := c.Plasticity.Validate(); err != nil {
			return &Error{Field: "plasticity", Reason: err.Error()}
		}
	}
	if c.Transmission.MaxAmplitude < 0 {
		return &Error{Field: "transmission.max_amplitude", Reason: fmt.Sprintf("must be non-negative, got %g", c.Transmission.MaxAmplitude)}
	}
	if c.Run.RealTime && c.Run.TickDuration <= 0 {
		return &Error{Field: "run.tick_duration", Reason: fmt.Sprintf("must be positive for real-time runs, got %v", c.Run.TickDuration)}
	}
	if c.Run.Workers < 0 {
		return &Error{Field: "run.workers", Reason: fmt.Sprintf("must be non-negative, got %d", c.Run.Workers)}
	}
	if c.Output.BatchTicks < 0 {
		return &Error{Field: "output.batch_ticks", Reason: fmt.Sprintf("must be non-negative, got %d", c.Output.BatchTicks)}
	}
	for _, f := range []struct{ field, name string }{
		{"output.trace_csv", c.Output.TraceCSV},
		{"output.spikes", c.Output.Spikes},
		{"output.arrow", c.Output.Arrow},
		{"output.sqlite", c.Output.SQLite},
	} {
		if f.name == "" || filepath.IsAbs(f.name) {
			continue
		}
		if err := pathutil.Within(c.Output.Dir, f.name); err != nil {
			return &Error{Field: f.field, Reason: err.Error()}
		}
	}
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return &Error{Field: "logging.level", Reason: fmt.Sprintf("invalid log level %q (valid: warn, info, debug, trace, or empty for default)", c.Logging.Level)}
	}

	p, err := c.TopologyParams()
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return &Error{Field: "network", Reason: err.Error()}
	}
	return nil
}

// TopologyParams converts the network and morphology settings into
// generator parameters using the default connection table.
func (c *Config) TopologyParams() (topology.Params, error) {
	p := topology.DefaultParams()
	p.Columns = c.Network.Columns
	p.AllowSelf = c.Network.AllowSelfConnections
	p.DelayMin = c.Network.DelayMin
	p.DelayMax = c.Network.DelayMax
	p.StrengthMin = c.Network.StrengthMin
	p.StrengthMax = c.Network.StrengthMax
	p.ExcitatoryFraction = c.Network.ExcitatoryFraction
	p.Izhikevich = c.Morphology.Izhikevich
	p.HindmarshRose = c.Morphology.HindmarshRose

	for name, n := range c.Network.LayerSizes {
		l, err := world.ParseLayer(name)
		if err != nil {
			return topology.Params{}, &Error{Field: "network.layer_sizes", Reason: err.Error()}
		}
		p.LayerSizes[l] = n
	}
	for name, model := range c.Network.LayerModels {
		l, err := world.ParseLayer(name)
		if err != nil {
			return topology.Params{}, &Error{Field: "network.layer_models", Reason: err.Error()}
		}
		m, err := world.ParseModel(model)
		if err != nil {
			return topology.Params{}, &Error{Field: "network.layer_models." + name, Reason: err.Error()}
		}
		p.LayerModels[l] = m
	}
	return p, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("SPIKENET_TICKS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &Error{Field: "SPIKENET_TICKS", Reason: fmt.Sprintf("invalid tick count %q", v)}
		}
		config.Run.Ticks = n
	}

	if v := os.Getenv("SPIKENET_REAL_TIME"); v != "" {
		b, err := strconv.ParseBool(v)
		switch {
		case slices.Contains([]string{"yes", "on"}, strings.ToLower(v)):
			b = true
		case slices.Contains([]string{"no", "off"}, strings.ToLower(v)):
			b = false
		case err != nil:
			return &Error{Field: "SPIKENET_REAL_TIME", Reason: fmt.Sprintf("invalid boolean %q", v)}
		}
		config.Run.RealTime = b
	}

	if v := os.Getenv("SPIKENET_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &Error{Field: "SPIKENET_SEED", Reason: fmt.Sprintf("invalid seed %q", v)}
		}
		config.Network.Seed = n
	}

	if v := os.Getenv("SPIKENET_COLUMNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: "SPIKENET_COLUMNS", Reason: fmt.Sprintf("invalid column count %q", v)}
		}
		config.Network.Columns = n
	}

	if v := os.Getenv("SPIKENET_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: "SPIKENET_WORKERS", Reason: fmt.Sprintf("invalid worker count %q", v)}
		}
		config.Run.Workers = n
	}

	if v := os.Getenv("SPIKENET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("SPIKENET_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}
	return nil
}
