package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crytic/plum/compilation"
	"github.com/crytic/plum/utils"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"
	"golang.org/x/exp/slices"
)

// DefaultConfigFileName is the name of the project configuration file looked up in the working directory.
const DefaultConfigFileName = "plum.json"

// ProjectConfig describes the configuration of a plum project.
type ProjectConfig struct {
	// Directories describes where the project's files live.
	Directories DirectoriesConfig `json:"directories"`

	// Compilation describes the configuration used to compile the project's contracts.
	Compilation *compilation.CompilationConfig `json:"compilation"`

	// Networks describes the networks contracts can be deployed to, keyed by name.
	Networks map[string]*NetworkConfig `json:"networks"`

	// Network is the name of the network used when none is selected on the command line.
	Network string `json:"network"`

	// Deployment describes the configuration used when deploying contracts.
	Deployment DeploymentConfig `json:"deployment"`

	// Logging describes the configuration used for logging to file and console.
	Logging LoggingConfig `json:"logging"`
}

// DirectoriesConfig describes where the project's files live. Relative paths are relative to Base.
type DirectoriesConfig struct {
	// Base is the project root. If empty, the directory containing the configuration file is used.
	Base string `json:"base,omitempty"`

	// Contracts is the directory holding the contract sources.
	Contracts string `json:"contracts"`

	// Build is the directory holding the compiled artifacts.
	Build string `json:"build"`
}

// NetworkConfig describes how to reach a network and the default options of transactions sent to it.
type NetworkConfig struct {
	// Host is the host name of the node. It is ignored if URL is set.
	Host string `json:"host,omitempty"`

	// Port is the port of the node. It is ignored if URL is set.
	Port int `json:"port,omitempty"`

	// Secure selects https over http when connecting through Host and Port.
	Secure bool `json:"secure,omitempty"`

	// URL is the endpoint of the node, which takes precedence over Host and Port.
	URL string `json:"url,omitempty"`

	// NetworkID is the network identifier. If zero, it is queried from the node.
	NetworkID uint64 `json:"networkId,omitempty"`

	// Gas is the default gas limit of transactions. If zero, DefaultGas is used.
	Gas uint64 `json:"gas,omitempty"`

	// GasPrice is the default gas price of transactions, in wei. If nil, DefaultGasPrice is used.
	GasPrice *uint256.Int `json:"gasPrice,omitempty"`

	// From is the default sender of transactions. If empty, the first account of the node is used.
	From string `json:"from,omitempty"`
}

// DeploymentConfig describes the configuration used when deploying contracts.
type DeploymentConfig struct {
	// Script is the deployment plan executed by the deploy command.
	Script string `json:"script"`

	// ConfirmationTimeout is how long a transaction is waited for, in milliseconds. Zero waits forever.
	ConfirmationTimeout int64 `json:"confirmationTimeout"`

	// PollInterval is the delay between two receipt lookups, in milliseconds.
	PollInterval int64 `json:"pollInterval"`

	// Journal is the transaction journal database. If empty, no journal is kept.
	Journal string `json:"journal,omitempty"`
}

// LoggingConfig describes the configuration options used for logging
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	Level zerolog.Level `json:"level"`

	// LogDirectory describes the directory where structured log files will be outputted. If the string is empty, then
	// no log files are kept
	LogDirectory string `json:"logDirectory,omitempty"`

	// NoColor disables colored console output.
	NoColor bool `json:"noColor"`
}

// ReadProjectConfigFromFile reads a ProjectConfig from a provided file path. The file may contain comments and
// trailing commas. Values missing from the file keep their defaults.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	// Read our project configuration file data
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Parse the project configuration over the defaults
	projectConfig, err := GetDefaultProjectConfig(DefaultPlatform)
	if err != nil {
		return nil, err
	}
	// A networks section replaces the default networks rather than merging with them
	defaultNetworks := projectConfig.Networks
	projectConfig.Networks = nil
	if err = json.Unmarshal(jsonc.ToJSON(b), projectConfig); err != nil {
		return nil, errors.Wrapf(err, "could not parse project configuration %s", path)
	}
	if projectConfig.Networks == nil {
		projectConfig.Networks = defaultNetworks
	}

	// Relative paths are resolved against the directory of the configuration file
	if projectConfig.Directories.Base == "" {
		projectConfig.Directories.Base = filepath.Dir(path)
	}
	if projectConfig.Directories.Base, err = filepath.Abs(projectConfig.Directories.Base); err != nil {
		return nil, errors.WithStack(err)
	}

	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	// Serialize the configuration
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	// Save it to the provided output path and return the result
	return utils.WriteFileAtomic(path, b, 0644)
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	// Verify the directories are set
	if p.Directories.Contracts == "" || p.Directories.Build == "" {
		return errors.Errorf("the contracts and build directories must be set")
	}

	// Verify the compilation config
	if p.Compilation == nil {
		return errors.Errorf("a compilation configuration must be provided")
	}
	if err := p.Compilation.Validate(); err != nil {
		return err
	}

	// Verify every network can be reached
	for _, name := range p.NetworkNames() {
		if err := p.Networks[name].Validate(); err != nil {
			return errors.WithMessagef(err, "network '%s'", name)
		}
	}

	// Verify the deployment timings
	if p.Deployment.ConfirmationTimeout < 0 {
		return errors.Errorf("confirmation timeout cannot be negative")
	}
	if p.Deployment.PollInterval <= 0 {
		return errors.Errorf("poll interval must be a positive number")
	}
	return nil
}

// NetworkNames returns the names of the configured networks, sorted.
func (p *ProjectConfig) NetworkNames() []string {
	names := make([]string, 0, len(p.Networks))
	for name := range p.Networks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SelectNetwork returns the network with the provided name, or the configured default network if name is empty.
func (p *ProjectConfig) SelectNetwork(name string) (string, *NetworkConfig, error) {
	if name == "" {
		name = p.Network
	}
	network, ok := p.Networks[name]
	if !ok || network == nil {
		return "", nil, errors.Errorf("network '%s' is not defined, available networks: %v", name, p.NetworkNames())
	}
	return name, network, nil
}

// resolve returns path made absolute against the project root.
func (p *ProjectConfig) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Directories.Base, path)
}

// ContractsDirectory returns the absolute path of the contracts directory.
func (p *ProjectConfig) ContractsDirectory() string {
	return p.resolve(p.Directories.Contracts)
}

// BuildDirectory returns the absolute path of the build directory.
func (p *ProjectConfig) BuildDirectory() string {
	return p.resolve(p.Directories.Build)
}

// ScriptPath returns the absolute path of the deployment plan.
func (p *ProjectConfig) ScriptPath() string {
	return p.resolve(p.Deployment.Script)
}

// JournalPath returns the absolute path of the transaction journal, or an empty string if none is kept.
func (p *ProjectConfig) JournalPath() string {
	return p.resolve(p.Deployment.Journal)
}

// ConfirmationTimeoutDuration returns the confirmation timeout as a duration.
func (d DeploymentConfig) ConfirmationTimeoutDuration() time.Duration {
	return time.Duration(d.ConfirmationTimeout) * time.Millisecond
}

// PollIntervalDuration returns the poll interval as a duration.
func (d DeploymentConfig) PollIntervalDuration() time.Duration {
	return time.Duration(d.PollInterval) * time.Millisecond
}

// Endpoint returns the URL of the node.
func (n *NetworkConfig) Endpoint() string {
	if n.URL != "" {
		return n.URL
	}
	scheme := "http"
	if n.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, n.Host, n.Port)
}

// Validate validates that the NetworkConfig describes a reachable node and well-formed transaction defaults.
func (n *NetworkConfig) Validate() error {
	if n.URL == "" {
		if n.Host == "" {
			return errors.Errorf("either a url or a host must be set")
		}
		if n.Port <= 0 || n.Port > 65535 {
			return errors.Errorf("port %d is out of range", n.Port)
		}
	}
	if n.From != "" {
		if _, ok := utils.NormalizeAddress(n.From); !ok {
			return errors.Errorf("malformed sender address %s", n.From)
		}
	}
	return nil
}

// GasOrDefault returns the configured gas limit, or DefaultGas if none is set.
func (n *NetworkConfig) GasOrDefault() uint64 {
	if n.Gas == 0 {
		return DefaultGas
	}
	return n.Gas
}

// GasPriceOrDefault returns the configured gas price, or DefaultGasPrice if none is set.
func (n *NetworkConfig) GasPriceOrDefault() *uint256.Int {
	if n.GasPrice == nil {
		return uint256.NewInt(DefaultGasPrice)
	}
	return new(uint256.Int).Set(n.GasPrice)
}
