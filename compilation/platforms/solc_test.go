package platforms

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crytic/plum/compilation/types"
	"github.com/crytic/plum/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSolcInput ensures the standard JSON input carries the source and the optimizer settings.
func TestSolcInput(t *testing.T) {
	config := NewSolcCompilationConfig()
	config.Optimizer.Runs = 2
	config.EVMVersion = "paris"

	data, err := json.Marshal(newSolcInput("token/Token.sol", "contract Token {}", *config))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, "Solidity", decoded["language"])

	sources := decoded["sources"].(map[string]any)
	assert.EqualValues(t, "contract Token {}", sources["token/Token.sol"].(map[string]any)["content"])

	settings := decoded["settings"].(map[string]any)
	optimizer := settings["optimizer"].(map[string]any)
	assert.EqualValues(t, true, optimizer["enabled"])
	assert.EqualValues(t, 2, optimizer["runs"])
	assert.EqualValues(t, "paris", settings["evmVersion"])
	assert.NotContains(t, settings, "remappings")
}

// TestParseSolcOutput checks that diagnostics and contracts are converted, and that solc's hashed library
// placeholders are rewritten into the named form.
func TestParseSolcOutput(t *testing.T) {
	hashedPlaceholder := "__$" + strings.Repeat("a", 34) + "$__"
	output := `{
		"errors": [
			{"severity": "warning", "message": "unused variable", "formattedMessage": "Warning: unused variable", "sourceLocation": {"file": "token/Token.sol"}},
			{"severity": "error", "message": "not found", "sourceLocation": {"file": "lib/Math.sol"}}
		],
		"contracts": {
			"token/Token.sol": {
				"Token": {
					"abi": [],
					"evm": {
						"bytecode": {
							"object": "6080` + hashedPlaceholder + `00",
							"linkReferences": {"lib/Math.sol": {"Math": [{"start": 2, "length": 20}]}}
						},
						"deployedBytecode": {"object": "6080"}
					}
				}
			},
			"lib/Math.sol": {
				"Math": {"abi": [], "evm": {"bytecode": {"object": ""}, "deployedBytecode": {"object": ""}}}
			}
		}
	}`

	result, err := parseSolcOutput([]byte(output), "token/Token.sol")
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 2)
	assert.EqualValues(t, types.SeverityWarning, result.Diagnostics[0].Severity)
	assert.EqualValues(t, "Warning: unused variable", result.Diagnostics[0].Message)
	assert.EqualValues(t, "token/Token.sol", result.Diagnostics[0].SourceFile)
	assert.EqualValues(t, "not found", result.Diagnostics[1].Message)
	assert.EqualValues(t, "token/Token.sol", result.Diagnostics[1].CompiledFile)
	assert.True(t, result.HasErrors())

	require.Len(t, result.Contracts, 2)
	token := result.Contracts["token/Token.sol:Token"]
	assert.EqualValues(t, "0x6080"+contracts.MakePlaceholder("Math")+"00", token.Bytecode)
	assert.EqualValues(t, "0x6080", token.DeployedBytecode)
	assert.EqualValues(t, "0x", result.Contracts["lib/Math.sol:Math"].Bytecode)

	attributed := result.ContractsFor("token/Token.sol")
	require.Len(t, attributed, 1)
	assert.EqualValues(t, "Token", attributed[0].Name)

	_, err = parseSolcOutput([]byte("Error: not json"), "token/Token.sol")
	assert.Error(t, err)
}

// TestSolcConfigValidation ensures an unusable configuration is rejected when creating a compiler.
func TestSolcConfigValidation(t *testing.T) {
	config := NewSolcCompilationConfig()
	config.Binary = ""
	_, err := config.NewCompiler(t.TempDir())
	assert.Error(t, err)

	config = NewSolcCompilationConfig()
	config.Optimizer.Runs = -1
	_, err = config.NewCompiler(t.TempDir())
	assert.Error(t, err)
}

// TestSimpleSolcCompilation compiles a contract with the solc binary on PATH, if there is one.
func TestSimpleSolcCompilation(t *testing.T) {
	if _, err := exec.LookPath("solc"); err != nil {
		t.Skip("solc is not installed")
	}

	// Define our contract source code
	contractSource := `
pragma solidity >=0.4.11;

contract SimpleSolcCompilation {
    uint x1;

    function setx1(uint val) public {
        x1 = val;
    }
}`

	// Write the contract out to our temporary test directory
	directory := t.TempDir()
	err := os.WriteFile(filepath.Join(directory, "SimpleSolcCompilation.sol"), []byte(contractSource), 0644)
	require.NoError(t, err)

	compiler, err := NewSolcCompilationConfig().NewCompiler(directory)
	require.NoError(t, err)

	output, err := compiler.Compile(context.Background(), "SimpleSolcCompilation.sol")
	require.NoError(t, err)
	assert.False(t, output.HasErrors())

	compiled := output.ContractsFor("SimpleSolcCompilation.sol")
	require.Len(t, compiled, 1)
	assert.EqualValues(t, "SimpleSolcCompilation", compiled[0].Name)
	assert.True(t, len(compiled[0].Bytecode) > 2)
}
