package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/nvandessel/spikenet/internal/world"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Network.Columns != 20 {
		t.Errorf("expected 20 columns, got %d", config.Network.Columns)
	}
	if config.Network.LayerSizes["internal"] != 60 || config.Network.LayerSizes["sensory"] != 10 {
		t.Errorf("unexpected layer sizes %v", config.Network.LayerSizes)
	}
	if config.Network.AllowSelfConnections {
		t.Error("expected self connections to be disabled by default")
	}
	if config.Morphology.Izhikevich.C != -65 || config.Morphology.NoiseMax != 5 {
		t.Errorf("unexpected morphology %+v", config.Morphology)
	}
	if !config.Plasticity.Enabled || config.Plasticity.HalfLife != 20 {
		t.Errorf("unexpected plasticity %+v", config.Plasticity)
	}
	if config.Run.Ticks != 20000 || config.Run.RealTime {
		t.Errorf("unexpected run %+v", config.Run)
	}
	if config.Output.TraceCSV != "neuron-trace.csv" || config.Output.Spikes != "spikes.out" {
		t.Errorf("unexpected output files %+v", config.Output)
	}
	if config.Output.BufferSize != datasize.MB {
		t.Errorf("expected 1MB buffer, got %v", config.Output.BufferSize)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
network:
  columns: 4
  layer_sizes:
    internal: 30
  layer_models:
    efferent: hindmarsh_rose
  allow_self_connections: true
  seed: 99
plasticity:
  enabled: false
transmission:
  max_amplitude: 2.5
run:
  ticks: 500
  real_time: true
  tick_duration: 2ms
output:
  dir: out
  arrow: trace.arrow
  buffer_size: 64KB
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Network.Columns != 4 || config.Network.Seed != 99 || !config.Network.AllowSelfConnections {
		t.Errorf("unexpected network %+v", config.Network)
	}
	// Unlisted layers keep their defaults.
	if config.Network.LayerSizes["internal"] != 30 || config.Network.LayerSizes["motor"] != 10 {
		t.Errorf("unexpected layer sizes %v", config.Network.LayerSizes)
	}
	if config.Plasticity.Enabled {
		t.Error("expected plasticity disabled")
	}
	if config.Plasticity.HalfLife != 20 {
		t.Errorf("expected default half life kept, got %f", config.Plasticity.HalfLife)
	}
	if config.Transmission.MaxAmplitude != 2.5 {
		t.Errorf("expected max_amplitude 2.5, got %f", config.Transmission.MaxAmplitude)
	}
	if config.Run.Ticks != 500 || !config.Run.RealTime || config.Run.TickDuration != 2*time.Millisecond {
		t.Errorf("unexpected run %+v", config.Run)
	}
	if config.Output.BufferSize != 64*datasize.KB {
		t.Errorf("expected 64KB buffer, got %v", config.Output.BufferSize)
	}
	if config.Output.Path(config.Output.Arrow) != filepath.Join("out", "trace.arrow") {
		t.Errorf("unexpected arrow path %q", config.Output.Path(config.Output.Arrow))
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %q", config.Logging.Level)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	config := Default()
	config.Network.LayerModels["internal"] = "hindmarsh_rose"
	config.Output.BufferSize = 256 * datasize.KB

	data, err := config.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), "tick_duration: 1ms") {
		t.Errorf("expected readable duration in:\n%s", data)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, data, 0644)
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Output.BufferSize != 256*datasize.KB || loaded.Network.LayerModels["internal"] != "hindmarsh_rose" {
		t.Errorf("round trip lost settings: %+v %+v", loaded.Output, loaded.Network)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPIKENET_TICKS", "1234")
	t.Setenv("SPIKENET_REAL_TIME", "true")
	t.Setenv("SPIKENET_SEED", "77")
	t.Setenv("SPIKENET_COLUMNS", "3")
	t.Setenv("SPIKENET_WORKERS", "2")
	t.Setenv("SPIKENET_LOG_LEVEL", "trace")
	t.Setenv("SPIKENET_OUTPUT_DIR", "/tmp/spikes")

	config := Default()
	if err := applyEnvOverrides(config); err != nil {
		t.Fatalf("applyEnvOverrides: %v", err)
	}

	if config.Run.Ticks != 1234 || !config.Run.RealTime || config.Run.Workers != 2 {
		t.Errorf("unexpected run %+v", config.Run)
	}
	if config.Network.Seed != 77 || config.Network.Columns != 3 {
		t.Errorf("unexpected network %+v", config.Network)
	}
	if config.Logging.Level != "trace" || config.Output.Dir != "/tmp/spikes" {
		t.Errorf("unexpected logging/output %+v %+v", config.Logging, config.Output)
	}
}

func TestEnvOverrides_Invalid(t *testing.T) {
	t.Setenv("SPIKENET_TICKS", "many")

	var cfgErr *Error
	if err := applyEnvOverrides(Default()); !errors.As(err, &cfgErr) || cfgErr.Field != "SPIKENET_TICKS" {
		t.Errorf("expected *Error for SPIKENET_TICKS, got %v", err)
	}
}

func TestEnvOverrides_RealTime(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"YES", true},
		{"false", false},
		{"0", false},
		{"off", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SPIKENET_REAL_TIME", tt.value)
			config := Default()
			config.Run.RealTime = !tt.want
			if err := applyEnvOverrides(config); err != nil {
				t.Fatalf("applyEnvOverrides: %v", err)
			}
			if config.Run.RealTime != tt.want {
				t.Errorf("RealTime = %v, want %v", config.Run.RealTime, tt.want)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("SPIKENET_REAL_TIME", "garbage")
		var cfgErr *Error
		if err := applyEnvOverrides(Default()); !errors.As(err, &cfgErr) || cfgErr.Field != "SPIKENET_REAL_TIME" {
			t.Errorf("expected *Error for SPIKENET_REAL_TIME, got %v", err)
		}
	})
}

func TestLoadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	os.WriteFile(path, []byte("network:\n  columns: 5\n"), 0644)
	t.Setenv("SPIKENET_SEED", "8")

	config, err := LoadPath(path)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if config.Network.Columns != 5 || config.Network.Seed != 8 {
		t.Errorf("unexpected network %+v", config.Network)
	}
}

func TestLoad_HomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	os.MkdirAll(filepath.Join(home, ".spikenet"), 0755)
	os.WriteFile(filepath.Join(home, ".spikenet", "config.yaml"), []byte("run:\n  ticks: 42\n"), 0644)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Run.Ticks != 42 {
		t.Errorf("expected ticks from home config, got %d", config.Run.Ticks)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero columns", func(c *Config) { c.Network.Columns = 0 }, "network.columns"},
		{"unknown layer", func(c *Config) { c.Network.LayerSizes["cortex"] = 3 }, "network.layer_sizes"},
		{"negative layer", func(c *Config) { c.Network.LayerSizes["motor"] = -2 }, "network.layer_sizes.motor"},
		{"unknown model", func(c *Config) { c.Network.LayerModels["motor"] = "lif" }, "network.layer_models.motor"},
		{"zero time scale", func(c *Config) { c.Morphology.HindmarshRose.TS = 0 }, "morphology.hindmarsh_rose"},
		{"negative noise", func(c *Config) { c.Morphology.NoiseMax = -1 }, "morphology.noise_max"},
		{"bad half life", func(c *Config) { c.Plasticity.HalfLife = 0 }, "plasticity"},
		{"negative amplitude", func(c *Config) { c.Transmission.MaxAmplitude = -1 }, "transmission.max_amplitude"},
		{"real time without duration", func(c *Config) { c.Run.RealTime = true; c.Run.TickDuration = 0 }, "run.tick_duration"},
		{"negative workers", func(c *Config) { c.Run.Workers = -1 }, "run.workers"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"escaping output", func(c *Config) { c.Output.SQLite = "../run.db" }, "output.sqlite"},
		{"empty delay range", func(c *Config) { c.Network.DelayMax = c.Network.DelayMin }, "network"},
		{"NaN excitatory fraction", func(c *Config) { c.Network.ExcitatoryFraction = math.NaN() }, "network.excitatory_fraction"},
		{"NaN strength min", func(c *Config) { c.Network.StrengthMin = math.NaN() }, "network.strength_min"},
		{"infinite strength max", func(c *Config) { c.Network.StrengthMax = math.Inf(1) }, "network.strength_max"},
		{"NaN noise", func(c *Config) { c.Morphology.NoiseMax = math.NaN() }, "morphology.noise_max"},
		{"infinite amplitude", func(c *Config) { c.Transmission.MaxAmplitude = math.Inf(1) }, "transmission.max_amplitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)

			var cfgErr *Error
			err := config.Validate()
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("field = %q, want %q (%v)", cfgErr.Field, tt.field, err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromFile_NonFiniteRejected(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("network:\n  excitatory_fraction: .nan\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	var cfgErr *Error
	if err := config.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "network.excitatory_fraction" {
		t.Errorf("Validate() = %v, want network.excitatory_fraction error", err)
	}
}

func TestValidate_DisabledPlasticitySkipsParameters(t *testing.T) {
	config := Default()
	config.Plasticity.Enabled = false
	config.Plasticity.HalfLife = 0
	if err := config.Validate(); err != nil {
		t.Errorf("disabled plasticity should not be validated: %v", err)
	}
}

func TestTopologyParams(t *testing.T) {
	config := Default()
	config.Network.Columns = 3
	delete(config.Network.LayerSizes, "internal")
	config.Network.LayerSizes["Internal"] = 12
	config.Network.LayerModels["efferent"] = "hindmarsh-rose"
	config.Network.AllowSelfConnections = true

	p, err := config.TopologyParams()
	if err != nil {
		t.Fatalf("TopologyParams: %v", err)
	}
	if p.Columns != 3 || !p.AllowSelf {
		t.Errorf("unexpected params %+v", p)
	}
	if p.LayerSizes[world.Internal] != 12 {
		t.Errorf("internal size = %d, want 12", p.LayerSizes[world.Internal])
	}
	if p.LayerModels[world.Efferent] != world.HindmarshRose {
		t.Errorf("efferent model = %v", p.LayerModels[world.Efferent])
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(configPath, []byte("network: [unclosed"), 0644)

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
