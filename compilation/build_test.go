package compilation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crytic/plum/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

// TestBuildUpToDate ensures a build with no stale source files does not invoke the compiler.
func TestBuildUpToDate(t *testing.T) {
	root := t.TempDir()
	contractsDir := filepath.Join(root, "contracts")
	buildDir := filepath.Join(root, "build")
	require.NoError(t, os.MkdirAll(contractsDir, 0755))
	require.NoError(t, os.MkdirAll(buildDir, 0755))

	sourcePath := filepath.Join(contractsDir, "Token.sol")
	artifactPath := filepath.Join(buildDir, "Token.json")
	require.NoError(t, os.WriteFile(sourcePath, []byte("contract Token {}"), 0644))
	require.NoError(t, os.WriteFile(artifactPath, []byte("{}"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(sourcePath, past, past))

	// The binary does not exist, so any attempt to compile would fail
	config, err := NewCompilationConfig("solc")
	require.NoError(t, err)
	raw := json.RawMessage(`{"binary":"plum-missing-solc","optimizer":{"enabled":true,"runs":200}}`)
	config.PlatformConfig = &raw

	result, err := Build(context.Background(), BuildOptions{
		ContractsDirectory: contractsDir,
		Store:              contracts.NewStore(buildDir),
		Config:             config,
	})
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Empty(t, result.Started)
}

// TestBuildMissingContractsDirectory ensures a build does not start without a contracts tree.
func TestBuildMissingContractsDirectory(t *testing.T) {
	root := t.TempDir()
	config, err := NewCompilationConfig("solc")
	require.NoError(t, err)

	_, err = Build(context.Background(), BuildOptions{
		ContractsDirectory: filepath.Join(root, "contracts"),
		Store:              contracts.NewStore(filepath.Join(root, "build")),
		Config:             config,
	})
	assert.Error(t, err)
}
