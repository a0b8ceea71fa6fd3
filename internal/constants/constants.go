// Package constants provides named constants used throughout the spikenet codebase.
// This centralizes defaults shared by the configuration layer and the CLI.
package constants

// Run constants
const (
	// DefaultTicks is the tick budget of a run: 20 seconds of model time.
	DefaultTicks = 20000

	// DefaultSeed seeds topology generation and neuron noise.
	DefaultSeed = 1

	// DefaultProgressEvery is the number of ticks between progress log lines.
	DefaultProgressEvery = 1000
)

// Network constants
const (
	// DefaultColumns is the number of cortical columns.
	DefaultColumns = 20

	// DefaultLayerSize is the neuron count of the sensory, motor, afferent
	// and efferent layers of a column.
	DefaultLayerSize = 10

	// DefaultInternalLayerSize is the neuron count of the internal layer of a column.
	DefaultInternalLayerSize = 60
)

// Output constants
const (
	// DefaultTraceFile holds the membrane-potential trace.
	DefaultTraceFile = "neuron-trace.csv"

	// DefaultSpikesFile holds the spike raster.
	DefaultSpikesFile = "spikes.out"

	// DefaultBatchTicks is the number of ticks per Arrow record batch.
	DefaultBatchTicks = 1000
)

// Configuration file locations
const (
	// ConfigDirName is the per-user configuration directory under $HOME.
	ConfigDirName = ".spikenet"

	// ConfigFileName is the configuration file inside ConfigDirName.
	ConfigFileName = "config.yaml"
)
