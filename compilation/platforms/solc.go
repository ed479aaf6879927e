package platforms

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver"
	"github.com/crytic/plum/compilation/types"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
)

var (
	// standardJSONConstraint describes the solc versions which accept --standard-json.
	standardJSONConstraint = mustConstraint(">= 0.4.11")

	// basePathConstraint describes the solc versions which accept --base-path.
	basePathConstraint = mustConstraint(">= 0.6.9")

	// solcVersionRegexp extracts the version from the output of solc --version.
	solcVersionRegexp = regexp.MustCompile(`\d+\.\d+\.\d+`)
)

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// SolcOptimizerConfig describes the optimizer settings passed to solc.
type SolcOptimizerConfig struct {
	// Enabled describes whether the optimizer runs.
	Enabled bool `json:"enabled"`

	// Runs describes how many times the optimizer expects each opcode to be executed.
	Runs int `json:"runs"`
}

// SolcCompilationConfig describes the configuration of the solc platform.
type SolcCompilationConfig struct {
	// Binary is the solc executable to invoke, looked up on PATH if it is not a path.
	Binary string `json:"binary"`

	// Optimizer describes the optimizer settings.
	Optimizer SolcOptimizerConfig `json:"optimizer"`

	// EVMVersion optionally selects the EVM version to target.
	EVMVersion string `json:"evmVersion,omitempty"`

	// Remappings are optional import remappings, in solc's "prefix=target" form.
	Remappings []string `json:"remappings,omitempty"`
}

// NewSolcCompilationConfig returns a SolcCompilationConfig with default values.
func NewSolcCompilationConfig() *SolcCompilationConfig {
	return &SolcCompilationConfig{
		Binary: "solc",
		Optimizer: SolcOptimizerConfig{
			Enabled: true,
			Runs:    200,
		},
	}
}

// Platform returns the identifier of the solc platform.
func (s *SolcCompilationConfig) Platform() string {
	return "solc"
}

// NewCompiler creates a SolcCompiler for source files under the provided contracts directory.
func (s *SolcCompilationConfig) NewCompiler(contractsDirectory string) (Compiler, error) {
	if s.Binary == "" {
		return nil, errors.New("no solc binary configured")
	}
	if s.Optimizer.Runs < 0 {
		return nil, errors.Errorf("invalid optimizer runs %d", s.Optimizer.Runs)
	}
	absDirectory, err := filepath.Abs(contractsDirectory)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &SolcCompiler{
		config:             *s,
		contractsDirectory: absDirectory,
	}, nil
}

// GetSystemSolcVersion runs the provided solc binary to obtain its version.
func GetSystemSolcVersion(binary string) (*semver.Version, error) {
	// Run solc --version to obtain our compiler version.
	out, err := exec.Command(binary, "--version").CombinedOutput()
	if err != nil {
		return nil, errors.Errorf("error while executing %s:\nOUTPUT:\n%s\nERROR: %s\n", binary, string(out), err.Error())
	}

	// Parse the compiler version out of the output
	versionStr := solcVersionRegexp.FindString(string(out))
	if versionStr == "" {
		return nil, errors.Errorf("could not parse solc version using '%s --version'", binary)
	}
	return semver.NewVersion(versionStr)
}

// SolcCompiler compiles single source files by invoking solc with its standard JSON interface.
type SolcCompiler struct {
	// config describes the platform settings.
	config SolcCompilationConfig

	// contractsDirectory is the absolute path source paths are relative to.
	contractsDirectory string

	// versionOnce ensures the solc version is only probed once, even with concurrent callers.
	versionOnce sync.Once
	version     *semver.Version
	versionErr  error
}

// Version returns the version of the configured solc binary.
func (c *SolcCompiler) Version() (*semver.Version, error) {
	c.versionOnce.Do(func() {
		c.version, c.versionErr = GetSystemSolcVersion(c.config.Binary)
	})
	return c.version, c.versionErr
}

// Compile compiles the source file at the provided path, relative to the contracts directory.
func (c *SolcCompiler) Compile(ctx context.Context, sourcePath string) (*types.CompilerOutput, error) {
	version, err := c.Version()
	if err != nil {
		return nil, err
	}
	if !standardJSONConstraint.Check(version) {
		return nil, errors.Errorf("solc %s is not supported, version 0.4.11 or newer is required", version)
	}

	sourceKey := filepath.ToSlash(filepath.Clean(sourcePath))
	content, err := os.ReadFile(filepath.Join(c.contractsDirectory, filepath.FromSlash(sourceKey)))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	input, err := json.Marshal(newSolcInput(sourceKey, string(content), c.config))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Imports are resolved relative to the contracts directory
	args := []string{"--standard-json", "--allow-paths", c.contractsDirectory}
	if basePathConstraint.Check(version) {
		args = append(args, "--base-path", c.contractsDirectory)
	}
	cmd := exec.CommandContext(ctx, c.config.Binary, args...)
	cmd.Dir = c.contractsDirectory

	cmdStdout, _, cmdCombined, err := utils.RunCommandWithInput(cmd, input)
	if err != nil {
		return nil, errors.Errorf("error while executing %s:\n%s\n\nCommand Output:\n%s\n", c.config.Binary, err.Error(), string(cmdCombined))
	}
	return parseSolcOutput(cmdStdout, sourceKey)
}

// solcInput describes the standard JSON input of solc.
type solcInput struct {
	Language string                     `json:"language"`
	Sources  map[string]solcInputSource `json:"sources"`
	Settings solcSettings               `json:"settings"`
}

type solcInputSource struct {
	Content string `json:"content"`
}

type solcSettings struct {
	Optimizer       SolcOptimizerConfig            `json:"optimizer"`
	EVMVersion      string                         `json:"evmVersion,omitempty"`
	Remappings      []string                       `json:"remappings,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

// newSolcInput builds the standard JSON input compiling a single source.
func newSolcInput(sourceKey string, content string, config SolcCompilationConfig) solcInput {
	return solcInput{
		Language: "Solidity",
		Sources: map[string]solcInputSource{
			sourceKey: {Content: content},
		},
		Settings: solcSettings{
			Optimizer:  config.Optimizer,
			EVMVersion: config.EVMVersion,
			Remappings: config.Remappings,
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": {
						"abi",
						"evm.bytecode.object",
						"evm.bytecode.linkReferences",
						"evm.deployedBytecode.object",
						"evm.deployedBytecode.linkReferences",
					},
				},
			},
		},
	}
}

// solcOutput describes the parts of the standard JSON output of solc that are consumed.
type solcOutput struct {
	Errors []struct {
		Severity         string `json:"severity"`
		Message          string `json:"message"`
		FormattedMessage string `json:"formattedMessage"`
		SourceLocation   *struct {
			File string `json:"file"`
		} `json:"sourceLocation"`
	} `json:"errors"`
	Contracts map[string]map[string]struct {
		Abi json.RawMessage `json:"abi"`
		Evm struct {
			Bytecode         solcBytecode `json:"bytecode"`
			DeployedBytecode solcBytecode `json:"deployedBytecode"`
		} `json:"evm"`
	} `json:"contracts"`
}

type solcBytecode struct {
	Object         string                                   `json:"object"`
	LinkReferences map[string]map[string][]solcLinkReference `json:"linkReferences"`
}

// solcLinkReference describes the byte range a library address occupies in bytecode.
type solcLinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// parseSolcOutput converts solc's standard JSON output into a CompilerOutput.
func parseSolcOutput(data []byte, sourceKey string) (*types.CompilerOutput, error) {
	var output solcOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, errors.Wrap(err, "could not parse solc output")
	}

	result := types.NewCompilerOutput()
	for _, e := range output.Errors {
		message := strings.TrimSpace(e.FormattedMessage)
		if message == "" {
			message = strings.TrimSpace(e.Message)
		}
		diagnostic := types.Diagnostic{
			Severity:     types.ParseSeverity(e.Severity),
			Message:      message,
			CompiledFile: sourceKey,
		}
		if e.SourceLocation != nil {
			diagnostic.SourceFile = e.SourceLocation.File
		}
		result.Diagnostics = append(result.Diagnostics, diagnostic)
	}

	for sourcePath, sourceContracts := range output.Contracts {
		for name, contract := range sourceContracts {
			result.Contracts[sourcePath+":"+name] = types.CompiledContract{
				Name:             name,
				SourcePath:       sourcePath,
				Abi:              contract.Abi,
				Bytecode:         normalizeLinkPlaceholders(contract.Evm.Bytecode),
				DeployedBytecode: normalizeLinkPlaceholders(contract.Evm.DeployedBytecode),
			}
		}
	}
	return result, nil
}

// normalizeLinkPlaceholders returns the "0x"-prefixed bytecode object with every library reference rewritten into
// the named placeholder form, whatever placeholder form the solc version emitted.
func normalizeLinkPlaceholders(bytecode solcBytecode) string {
	object := []byte(strings.TrimPrefix(bytecode.Object, "0x"))
	for _, libraries := range bytecode.LinkReferences {
		for library, references := range libraries {
			placeholder := contracts.MakePlaceholder(library)
			for _, reference := range references {
				start := reference.Start * 2
				if reference.Length*2 != contracts.PlaceholderLength || start < 0 || start+contracts.PlaceholderLength > len(object) {
					continue
				}
				copy(object[start:start+contracts.PlaceholderLength], placeholder)
			}
		}
	}
	return "0x" + string(object)
}
