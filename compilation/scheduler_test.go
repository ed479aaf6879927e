package compilation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crytic/plum/compilation/types"
	"github.com/crytic/plum/contracts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompiler is a platforms.Compiler returning canned outputs. Files with a gate block until it is closed.
type scriptedCompiler struct {
	outputs map[string]*types.CompilerOutput
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (c *scriptedCompiler) Compile(ctx context.Context, sourcePath string) (*types.CompilerOutput, error) {
	current := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		highest := c.maxInFlight.Load()
		if current <= highest || c.maxInFlight.CompareAndSwap(highest, current) {
			break
		}
	}

	if c.started != nil {
		c.started <- sourcePath
	}
	if gate, ok := c.gates[sourcePath]; ok {
		<-gate
	}
	return c.outputs[sourcePath], c.errs[sourcePath]
}

// outputFor returns a compiler output for the file holding the named contracts, a warning, and a contract from an
// unrelated file.
func outputFor(file string, contractNames ...string) *types.CompilerOutput {
	output := types.NewCompilerOutput()
	output.Diagnostics = append(output.Diagnostics, types.Diagnostic{
		Severity:     types.SeverityWarning,
		Message:      "warning from " + file,
		CompiledFile: file,
	})
	for _, name := range contractNames {
		output.Contracts[file+":"+name] = types.CompiledContract{
			Name:       name,
			SourcePath: file,
			Abi:        json.RawMessage(`[]`),
			Bytecode:   "0x6080",
		}
	}
	output.Contracts["lib/Other.sol:Unrelated"] = types.CompiledContract{
		Name:       "Unrelated",
		SourcePath: "lib/Other.sol",
		Abi:        json.RawMessage(`[]`),
		Bytecode:   "0x00",
	}
	return output
}

// TestCompileAllWritesArtifacts checks that artifacts are written for attributed contracts only, that a file
// without contracts yields an empty artifact, and that deployment records on disk survive recompilation.
func TestCompileAllWritesArtifacts(t *testing.T) {
	store := contracts.NewStore(t.TempDir())

	// An artifact from a previous build, with a deployment
	previous, err := contracts.NewContract(contracts.ContractDefinition{Name: "A", Abi: json.RawMessage(`[]`), Bytecode: "0x00"})
	require.NoError(t, err)
	require.NoError(t, previous.SetAddress(1, "0x1111111111111111111111111111111111111111"))
	require.NoError(t, previous.Save(store.ArtifactPath("", "A"), false))

	compiler := &scriptedCompiler{
		outputs: map[string]*types.CompilerOutput{
			"A.sol":        outputFor("A.sol", "A"),
			"nested/B.sol": outputFor("nested/B.sol", "B", "BHelper"),
			"Empty.sol":    outputFor("Empty.sol"),
		},
	}
	scheduler := NewScheduler(compiler, store, 2, nil)
	files := []SourceFile{{Path: "A.sol"}, {Path: "nested/B.sol"}, {Path: "Empty.sol"}}

	result := scheduler.CompileAll(context.Background(), files)
	require.NoError(t, result.Err)
	assert.False(t, result.Failed())
	assert.EqualValues(t, []string{"A.sol", "nested/B.sol", "Empty.sol"}, result.Started)
	assert.Len(t, result.Diagnostics, 3)
	assert.LessOrEqual(t, compiler.maxInFlight.Load(), int32(2))
	assert.ElementsMatch(t, []string{
		store.ArtifactPath("", "A"),
		store.ArtifactPath("nested", "B"),
		store.ArtifactPath("nested", "BHelper"),
		store.ArtifactPath("", "Empty"),
	}, result.Artifacts)

	assert.NoFileExists(t, store.ArtifactPath("lib", "Unrelated"))
	assert.NoFileExists(t, store.ArtifactPath("", "Unrelated"))

	data, err := os.ReadFile(store.ArtifactPath("", "Empty"))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	a, err := contracts.LoadContract(store.ArtifactPath("", "A"))
	require.NoError(t, err)
	assert.EqualValues(t, "0x6080", a.Bytecode())
	assert.EqualValues(t, "A.sol", a.SourcePath())
	address, ok := a.GetAddress(1, -1)
	assert.True(t, ok)
	assert.EqualValues(t, "0x1111111111111111111111111111111111111111", address)
}

// TestCompileAllLatchesFirstFailure runs six files with four workers where the second file fails. Files in flight
// when the failure is latched finish and keep their diagnostics, no further file is started, and no output is
// written after the failure.
func TestCompileAllLatchesFirstFailure(t *testing.T) {
	files := []SourceFile{{Path: "f1.sol"}, {Path: "f2.sol"}, {Path: "f3.sol"}, {Path: "f4.sol"}, {Path: "f5.sol"}, {Path: "f6.sol"}}
	compiler := &scriptedCompiler{
		outputs: make(map[string]*types.CompilerOutput),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, len(files)),
	}
	for _, file := range files {
		compiler.outputs[file.Path] = outputFor(file.Path, "C"+file.Path[1:2])
		compiler.gates[file.Path] = make(chan struct{})
	}
	compiler.outputs["f2.sol"].Diagnostics = append(compiler.outputs["f2.sol"].Diagnostics, types.Diagnostic{
		Severity:     types.SeverityError,
		Message:      "f2.sol: syntax error",
		CompiledFile: "f2.sol",
	})

	store := contracts.NewStore(t.TempDir())
	scheduler := NewScheduler(compiler, store, 4, nil)
	failureProcessed := make(chan struct{})
	scheduler.fileCompleted = func(file SourceFile) {
		if file.Path == "f2.sol" {
			close(failureProcessed)
		}
	}

	resultChannel := make(chan *BatchResult, 1)
	go func() {
		resultChannel <- scheduler.CompileAll(context.Background(), files)
	}()

	// Wait for every worker slot to be taken
	started := make(map[string]bool)
	for len(started) < 4 {
		select {
		case path := <-compiler.started:
			started[path] = true
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for workers to start")
		}
	}
	assert.EqualValues(t, map[string]bool{"f1.sol": true, "f2.sol": true, "f3.sol": true, "f4.sol": true}, started)

	// Fail the second file, then let the others drain
	close(compiler.gates["f2.sol"])
	select {
	case <-failureProcessed:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the failure to be processed")
	}
	for _, path := range []string{"f1.sol", "f3.sol", "f4.sol"} {
		close(compiler.gates[path])
	}

	var result *BatchResult
	select {
	case result = <-resultChannel:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the batch to resolve")
	}

	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, ErrCompilationFailed)
	assert.Contains(t, result.Err.Error(), "f2.sol")
	assert.EqualValues(t, []string{"f1.sol", "f2.sol", "f3.sol", "f4.sol"}, result.Started)
	assert.Empty(t, result.Artifacts)
	assert.EqualValues(t, int32(4), compiler.maxInFlight.Load())
	assert.Len(t, compiler.started, 0)

	// Every file in flight contributed its diagnostics
	compiledFiles := make(map[string]int)
	for _, diagnostic := range result.Diagnostics {
		compiledFiles[diagnostic.CompiledFile]++
	}
	assert.EqualValues(t, map[string]int{"f1.sol": 1, "f2.sol": 2, "f3.sol": 1, "f4.sol": 1}, compiledFiles)

	// The diagnostics of the failing file keep their order
	var f2Diagnostics []string
	for _, diagnostic := range result.Diagnostics {
		if diagnostic.CompiledFile == "f2.sol" {
			f2Diagnostics = append(f2Diagnostics, diagnostic.Message)
		}
	}
	assert.EqualValues(t, []string{"warning from f2.sol", "f2.sol: syntax error"}, f2Diagnostics)

	paths, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

// TestCompileAllCompilerError ensures a compiler that cannot be invoked fails the batch.
func TestCompileAllCompilerError(t *testing.T) {
	compiler := &scriptedCompiler{
		outputs: map[string]*types.CompilerOutput{},
		errs:    map[string]error{"A.sol": errors.New("solc: not found")},
	}
	scheduler := NewScheduler(compiler, contracts.NewStore(t.TempDir()), 0, nil)

	result := scheduler.CompileAll(context.Background(), []SourceFile{{Path: "A.sol"}})
	assert.ErrorIs(t, result.Err, ErrCompilationFailed)
	assert.Contains(t, result.Err.Error(), "solc: not found")
}

// TestCompileAllWriteFailure ensures an artifact that cannot be written fails the batch like a compiler error.
func TestCompileAllWriteFailure(t *testing.T) {
	// The build directory is a regular file, so nothing can be written under it
	buildPath := filepath.Join(t.TempDir(), "build")
	require.NoError(t, os.WriteFile(buildPath, []byte("not a directory"), 0644))

	compiler := &scriptedCompiler{
		outputs: map[string]*types.CompilerOutput{
			"A.sol": outputFor("A.sol", "A"),
			"B.sol": outputFor("B.sol", "B"),
		},
	}
	scheduler := NewScheduler(compiler, contracts.NewStore(buildPath), 1, nil)

	result := scheduler.CompileAll(context.Background(), []SourceFile{{Path: "A.sol"}, {Path: "B.sol"}})
	assert.True(t, result.Failed())
	assert.NotErrorIs(t, result.Err, ErrCompilationFailed)
	assert.EqualValues(t, []string{"A.sol"}, result.Started)
	assert.Empty(t, result.Artifacts)
}

// TestCompileAllCancelled ensures no work is started once the context is cancelled.
func TestCompileAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	compiler := &scriptedCompiler{outputs: map[string]*types.CompilerOutput{"A.sol": outputFor("A.sol", "A")}}
	result := NewScheduler(compiler, contracts.NewStore(t.TempDir()), 1, nil).CompileAll(ctx, []SourceFile{{Path: "A.sol"}})
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Empty(t, result.Started)
}
