package compilation

import (
	"encoding/json"

	"github.com/crytic/plum/compilation/platforms"
	"github.com/pkg/errors"
)

// DefaultConcurrency is the default number of source files compiled at once.
const DefaultConcurrency = 4

// CompilationConfig describes the configuration options used to compile the contracts of a project.
type CompilationConfig struct {
	// Platform references an identifier indicating which compilation platform to use.
	// PlatformConfig is a structure dependent on the defined Platform.
	Platform string `json:"platform"`

	// PlatformConfig describes the Platform-specific configuration needed to compile.
	PlatformConfig *json.RawMessage `json:"platformConfig"`

	// Concurrency describes the maximum number of source files compiled at once.
	Concurrency int `json:"concurrency"`
}

// NewCompilationConfig returns a CompilationConfig with default values for a given platform identifier.
// If an error occurs, it is returned instead.
func NewCompilationConfig(platform string) (*CompilationConfig, error) {
	// Verify the platform is valid
	if !IsSupportedCompilationPlatform(platform) {
		return nil, errors.Errorf("could not get default compilation configs: platform '%s' is unsupported", platform)
	}
	return NewCompilationConfigFromPlatformConfig(GetDefaultPlatformConfig(platform))
}

// NewCompilationConfigFromPlatformConfig takes a platforms.PlatformConfig and wraps it in a generic
// CompilationConfig. This allows many platform config types to be serialized/deserialized to their appropriate
// types and supported generally.
func NewCompilationConfigFromPlatformConfig(platformConfig platforms.PlatformConfig) (*CompilationConfig, error) {
	// Marshal our config to a raw message
	b, err := json.Marshal(platformConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	platformConfigMsg := (*json.RawMessage)(&b)

	return &CompilationConfig{
		Platform:       platformConfig.Platform(),
		PlatformConfig: platformConfigMsg,
		Concurrency:    DefaultConcurrency,
	}, nil
}

// GetPlatformConfig deserializes the inner platforms.PlatformConfig over the platform's defaults, so fields omitted
// from the configuration keep their default values.
func (c *CompilationConfig) GetPlatformConfig() (platforms.PlatformConfig, error) {
	// Verify the platform is valid
	if !IsSupportedCompilationPlatform(c.Platform) {
		return nil, errors.Errorf("could not compile from configs: platform '%s' is unsupported", c.Platform)
	}

	// Allocate a platform config given our platform string in our compilation config
	// It is necessary to do so as json.Unmarshal needs a concrete structure to populate
	platformConfig := GetDefaultPlatformConfig(c.Platform)
	if c.PlatformConfig != nil {
		if err := json.Unmarshal(*c.PlatformConfig, platformConfig); err != nil {
			return nil, errors.Wrapf(err, "could not parse the '%s' platform configuration", c.Platform)
		}
	}
	return platformConfig, nil
}

// NewCompiler creates the compiler of the configured platform for the provided contracts directory.
func (c *CompilationConfig) NewCompiler(contractsDirectory string) (platforms.Compiler, error) {
	platformConfig, err := c.GetPlatformConfig()
	if err != nil {
		return nil, err
	}
	return platformConfig.NewCompiler(contractsDirectory)
}

// Validate returns an error if the configuration cannot be used.
func (c *CompilationConfig) Validate() error {
	if c.Concurrency <= 0 {
		return errors.Errorf("compilation concurrency must be positive, got %d", c.Concurrency)
	}
	_, err := c.GetPlatformConfig()
	return err
}
