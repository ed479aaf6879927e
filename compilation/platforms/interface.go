package platforms

import (
	"context"

	"github.com/crytic/plum/compilation/types"
)

// Compiler describes a provider which compiles one source file per invocation. Compile may be called concurrently.
type Compiler interface {
	// Compile compiles the source file at the provided path, relative to the contracts directory. An error is only
	// returned if the compiler could not be invoked or its output could not be understood. Problems in the source
	// are reported as error diagnostics in the output instead.
	Compile(ctx context.Context, sourcePath string) (*types.CompilerOutput, error)
}

// PlatformConfig describes the interface all compilation platform configs must implement.
type PlatformConfig interface {
	// Platform returns the identifier of the platform.
	Platform() string

	// NewCompiler creates a Compiler for source files under the provided contracts directory.
	NewCompiler(contractsDirectory string) (Compiler, error)
}
