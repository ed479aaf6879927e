package types

import (
	"encoding/json"
	"path"
	"path/filepath"
)

// CompiledContract describes a single contract produced by a compiler invocation.
type CompiledContract struct {
	// Name is the name of the contract.
	Name string

	// SourcePath is the source file the compiler attributes the contract to, relative to the contracts directory and
	// using forward slashes.
	SourcePath string

	// Abi is the JSON-encoded ABI of the contract.
	Abi json.RawMessage

	// Bytecode is the hex-encoded creation bytecode, with library placeholders in the 40-character named form.
	Bytecode string

	// DeployedBytecode is the hex-encoded runtime bytecode, with library placeholders in the same form.
	DeployedBytecode string
}

// IsAttributedTo returns true if the compiler attributes the contract to the provided source path.
func (c CompiledContract) IsAttributedTo(sourcePath string) bool {
	return path.Clean(filepath.ToSlash(c.SourcePath)) == path.Clean(filepath.ToSlash(sourcePath))
}
