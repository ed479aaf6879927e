package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadProjectConfigWithComments ensures JSONC files are accepted and values missing from them keep their
// defaults.
func TestReadProjectConfigWithComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFileName)
	content := `{
	// Deploy to a local node by default
	"networks": {
		"local": {"host": "127.0.0.1", "port": 7545, "gasPrice": "20000000000",},
		"remote": {"url": "https://rpc.example.org", "networkId": 5, "from": "0x1111111111111111111111111111111111111111"},
	},
	"network": "local",
	"deployment": {"confirmationTimeout": 0},
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	projectConfig, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	require.NoError(t, projectConfig.Validate())

	// The default network is replaced, not merged
	assert.Equal(t, []string{"local", "remote"}, projectConfig.NetworkNames())

	name, network, err := projectConfig.SelectNetwork("")
	require.NoError(t, err)
	assert.Equal(t, "local", name)
	assert.Equal(t, "http://127.0.0.1:7545", network.Endpoint())
	assert.Equal(t, DefaultGas, network.GasOrDefault())
	assert.Equal(t, uint256.NewInt(20000000000), network.GasPriceOrDefault())

	_, remote, err := projectConfig.SelectNetwork("remote")
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.org", remote.Endpoint())
	assert.EqualValues(t, 5, remote.NetworkID)
	assert.Equal(t, uint256.NewInt(DefaultGasPrice), remote.GasPriceOrDefault())

	_, _, err = projectConfig.SelectNetwork("missing")
	assert.Error(t, err)

	// Defaults and explicit zeroes
	assert.Zero(t, projectConfig.Deployment.ConfirmationTimeoutDuration())
	assert.Equal(t, time.Second, projectConfig.Deployment.PollIntervalDuration())
	require.NotNil(t, projectConfig.Compilation)
	assert.Equal(t, DefaultPlatform, projectConfig.Compilation.Platform)
	assert.Equal(t, zerolog.InfoLevel, projectConfig.Logging.Level)

	// Paths are resolved against the configuration file's directory
	absDir, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(absDir, "contracts"), projectConfig.ContractsDirectory())
	assert.Equal(t, filepath.Join(absDir, "build"), projectConfig.BuildDirectory())
	assert.Equal(t, filepath.Join(absDir, "deployment.json"), projectConfig.ScriptPath())
}

// TestWriteAndReadProjectConfig ensures a written default configuration reads back with the same values.
func TestWriteAndReadProjectConfig(t *testing.T) {
	projectConfig, err := GetDefaultProjectConfig(DefaultPlatform)
	require.NoError(t, err)
	require.NoError(t, projectConfig.Validate())

	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	require.NoError(t, projectConfig.WriteToFile(path))

	readConfig, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, projectConfig.Networks, readConfig.Networks)
	assert.Equal(t, projectConfig.Deployment, readConfig.Deployment)
	assert.Equal(t, projectConfig.Compilation.Platform, readConfig.Compilation.Platform)
	assert.Equal(t, projectConfig.Logging, readConfig.Logging)
}

// TestProjectConfigValidation ensures invalid values are rejected.
func TestProjectConfigValidation(t *testing.T) {
	mutations := map[string]func(p *ProjectConfig){
		"no build directory":   func(p *ProjectConfig) { p.Directories.Build = "" },
		"no compilation":       func(p *ProjectConfig) { p.Compilation = nil },
		"unknown platform":     func(p *ProjectConfig) { p.Compilation.Platform = "unknown" },
		"network without host": func(p *ProjectConfig) { p.Networks[DefaultNetwork].Host = "" },
		"port out of range":    func(p *ProjectConfig) { p.Networks[DefaultNetwork].Port = 70000 },
		"malformed sender":     func(p *ProjectConfig) { p.Networks[DefaultNetwork].From = "0x1234" },
		"negative timeout":     func(p *ProjectConfig) { p.Deployment.ConfirmationTimeout = -1 },
		"zero poll interval":   func(p *ProjectConfig) { p.Deployment.PollInterval = 0 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			projectConfig, err := GetDefaultProjectConfig(DefaultPlatform)
			require.NoError(t, err)
			mutate(projectConfig)
			assert.Error(t, projectConfig.Validate())
		})
	}
}

// TestReadProjectConfigInvalid ensures malformed files are reported.
func TestReadProjectConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"networks": [}`), 0644))
	_, err := ReadProjectConfigFromFile(path)
	assert.Error(t, err)

	_, err = ReadProjectConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
