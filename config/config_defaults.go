package config

import (
	"github.com/crytic/plum/compilation"
	"github.com/rs/zerolog"
)

const (
	// DefaultPlatform is the compilation platform used when none is configured.
	DefaultPlatform = "solc"

	// DefaultNetwork is the name of the network created for new projects.
	DefaultNetwork = "development"

	// DefaultGas is the gas limit of transactions when the network does not set one.
	DefaultGas uint64 = 6000000

	// DefaultGasPrice is the gas price of transactions when the network does not set one, 100 gwei.
	DefaultGasPrice uint64 = 100000000000
)

// GetDefaultProjectConfig obtains a default configuration for a project. It populates a default compilation config
// based on the provided platform, or a nil one if an empty string is provided.
func GetDefaultProjectConfig(platform string) (*ProjectConfig, error) {
	var (
		compilationConfig *compilation.CompilationConfig
		err               error
	)
	if platform != "" {
		compilationConfig, err = compilation.NewCompilationConfig(platform)
		if err != nil {
			return nil, err
		}
	}

	// Create a project configuration
	projectConfig := &ProjectConfig{
		Directories: DirectoriesConfig{
			Contracts: "contracts",
			Build:     "build",
		},
		Compilation: compilationConfig,
		Networks: map[string]*NetworkConfig{
			DefaultNetwork: {
				Host: "localhost",
				Port: 8545,
			},
		},
		Network: DefaultNetwork,
		Deployment: DeploymentConfig{
			Script:              "deployment.json",
			ConfirmationTimeout: 240000,
			PollInterval:        1000,
			Journal:             ".plum/journal.db",
		},
		Logging: LoggingConfig{
			Level: zerolog.InfoLevel,
		},
	}

	// Return the project configuration
	return projectConfig, nil
}
