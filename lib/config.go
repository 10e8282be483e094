package lib

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/units"
)

/* This file implements logic for 'user controlled' global configurations of each module of the simulator */

const (
	// FILE NAMES in the 'data directory'
	ConfigFilePath = "config.json" // the file path for the simulator configuration
)

// Config is the structure of the user configuration options for a simulation run
type Config struct {
	MainConfig      // main options spanning over all modules
	SimulatorConfig // network simulator options
	EngineConfig    // reference engine options
	StoreConfig     // persistence options for finalized batches
	MetricsConfig   // telemetry options
	P2PConfig       // concurrent transport options
}

// DefaultConfig() returns a Config with developer set options
func DefaultConfig() Config {
	return Config{
		MainConfig:      DefaultMainConfig(),
		SimulatorConfig: DefaultSimulatorConfig(),
		EngineConfig:    DefaultEngineConfig(),
		StoreConfig:     DefaultStoreConfig(),
		MetricsConfig:   DefaultMetricsConfig(),
		P2PConfig:       DefaultP2PConfig(),
	}
}

// MAIN CONFIG BELOW

type MainConfig struct {
	LogLevel string `json:"logLevel"` // any level includes the levels above it: debug < info < warning < error
}

// DefaultMainConfig() sets log level to 'info'
func DefaultMainConfig() MainConfig {
	return MainConfig{
		LogLevel: "info", // everything but debug is the default
	}
}

// GetLogLevel() parses the log string in the config file into a LogLevel Enum
func (m *MainConfig) GetLogLevel() int32 {
	switch {
	case strings.Contains(strings.ToLower(m.LogLevel), "deb"):
		return DebugLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "inf"):
		return InfoLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "war"):
		return WarnLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "err"):
		return ErrorLevel
	default:
		return DebugLevel
	}
}

// SIMULATOR CONFIG BELOW

// DeriveMaxFaulty is the MaxFaulty sentinel that means 'use floor((N-1)/3)'
const DeriveMaxFaulty = -1

// SimulatorConfig defines the simulated network and the round driving limits
type SimulatorConfig struct {
	NodeCount      int      `json:"nodeCount"`      // number of simulated peers
	TxnCount       int      `json:"txnCount"`       // number of contributions the harness submits to every peer
	TxnBytes       int      `json:"txnBytes"`       // size of each random contribution
	StepBudget     uint64   `json:"stepBudget"`     // the maximum number of drive steps before a run reports a liveness failure
	MaxFaulty      int      `json:"maxFaulty"`      // the number of engine failures tolerated before the run aborts (-1 derives it from NodeCount)
	FaultyNodes    []uint64 `json:"faultyNodes"`    // peers that are crashed before the run starts and never respond
	RetryAttempts  uint64   `json:"retryAttempts"`  // how many times a run is retried with a doubled budget after a liveness failure
	LogEmptyQueues bool     `json:"logEmptyQueues"` // log every 'no message' tick at debug level
}

// DefaultSimulatorConfig() mirrors the reference scenario: 20 peers, 1000 transactions of 10 bytes
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		NodeCount:      20,
		TxnCount:       1000,
		TxnBytes:       10,
		StepBudget:     10_000_000,
		MaxFaulty:      DeriveMaxFaulty,
		FaultyNodes:    nil,
		RetryAttempts:  0,
		LogEmptyQueues: false,
	}
}

// ToleratedFaults() returns the number of nodes that may fail without aborting a run over n nodes
func (s *SimulatorConfig) ToleratedFaults(n int) int {
	if s.MaxFaulty >= 0 {
		return s.MaxFaulty
	}
	return MaxFaultyFor(n)
}

// MaxFaultyFor() returns the byzantine tolerance f of a 3f+1 network of n nodes
func MaxFaultyFor(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / 3
}

// ENGINE CONFIG BELOW

// EngineConfig defines the options of the reference atomic broadcast engine
type EngineConfig struct {
	BatchSize               int    `json:"batchSize"`               // the number of contributions a leader packs into one epoch
	StartEpoch              uint64 `json:"startEpoch"`              // the first epoch number
	MaxFutureEpochs         uint64 `json:"maxFutureEpochs"`         // how far ahead of the current epoch a message may be buffered
	MaxPendingContributions int    `json:"maxPendingContributions"` // the limit of the pending contribution pool
	MaxContributionBytes    uint64 `json:"maxContributionBytes"`    // the size limit of a single contribution
	ViewTimeoutTicks        uint64 `json:"viewTimeoutTicks"`        // idle ticks a validator waits on the leader before moving to the next one
}

// DefaultEngineConfig() returns the developer recommended engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BatchSize:               150,
		StartEpoch:              0,
		MaxFutureEpochs:         16,
		MaxPendingContributions: 100_000,
		MaxContributionBytes:    uint64(4 * units.Kilobyte),
		ViewTimeoutTicks:        200,
	}
}

// STORE CONFIG BELOW

// StoreConfig is user configurations for the finalized batch ledger
type StoreConfig struct {
	DataDirPath string `json:"dataDirPath"` // path of the designated folder where the application stores its data
	DBName      string `json:"dbName"`      // name of the database
	InMemory    bool   `json:"inMemory"`    // non-disk database, only for testing
	Persist     bool   `json:"persist"`     // whether finalized batches are written to the ledger at all
}

// DefaultDataDirPath() is $USERHOME/.bftsim
func DefaultDataDirPath() string {
	// get the user home
	home, err := os.UserHomeDir()
	// if unable to get the user home
	if err != nil {
		// fall back to the working directory
		return ".bftsim"
	}
	// exit with full default data directory path
	return filepath.Join(home, ".bftsim")
}

// DefaultStoreConfig() returns the developer recommended store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DataDirPath: DefaultDataDirPath(),
		DBName:      "ledger",
		InMemory:    false,
		Persist:     false,
	}
}

// METRICS CONFIG BELOW

// MetricsConfig represents the configuration for the metrics server
type MetricsConfig struct {
	Enabled           bool   `json:"enabled"`           // if the metrics are enabled
	PrometheusAddress string `json:"prometheusAddress"` // the address of the server
}

// DefaultMetricsConfig() returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:           false,          // a simulation is usually short-lived
		PrometheusAddress: "0.0.0.0:9090", // the default prometheus address
	}
}

// P2P CONFIG BELOW

// P2PConfig defines the options of the concurrent (one goroutine per peer) transport
type P2PConfig struct {
	InboxNotifyBuffer int `json:"inboxNotifyBuffer"` // the capacity of each peer's 'new message' wake up channel
	RunTimeoutMS      int `json:"runTimeoutMS"`      // how long a concurrent run may take before it reports a liveness failure
	TickIntervalMS    int `json:"tickIntervalMS"`    // how often an idle peer ticks its engine
}

// DefaultP2PConfig() returns the default concurrent transport options
func DefaultP2PConfig() P2PConfig {
	return P2PConfig{
		InboxNotifyBuffer: 1,
		RunTimeoutMS:      60_000,
		TickIntervalMS:    5,
	}
}

// WriteToFile() saves the Config object to the config.json file of the data directory
func (c Config) WriteToFile(dataDirPath string) ErrorI {
	return SaveJSONToFile(c, dataDirPath, ConfigFilePath)
}

// NewConfigFromFile() populates a Config object from the config.json file of the data directory
func NewConfigFromFile(dataDirPath string) (Config, ErrorI) {
	// define the default config to fill in any blanks in the file
	c := DefaultConfig()
	// populate the default config with the file bytes
	if err := NewJSONFromFile(&c, dataDirPath, ConfigFilePath); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Check() validates the options that would otherwise make a run meaningless
func (c Config) Check() ErrorI {
	switch {
	case c.NodeCount <= 0:
		return ErrInvalidConfig("nodeCount must be positive")
	case c.BatchSize <= 0:
		return ErrInvalidConfig("batchSize must be positive")
	case c.TxnBytes <= 0:
		return ErrInvalidConfig("txnBytes must be positive")
	case c.StepBudget == 0:
		return ErrInvalidConfig("stepBudget must be positive")
	case c.ViewTimeoutTicks == 0:
		return ErrInvalidConfig("viewTimeoutTicks must be positive")
	case c.TickIntervalMS <= 0:
		return ErrInvalidConfig("tickIntervalMS must be positive")
	case uint64(c.TxnBytes) > c.MaxContributionBytes:
		return ErrInvalidConfig("txnBytes exceeds maxContributionBytes")
	}
	for _, id := range c.FaultyNodes {
		if id >= uint64(c.NodeCount) {
			return ErrInvalidConfig("faultyNodes contains an id outside of the network")
		}
	}
	return nil
}
