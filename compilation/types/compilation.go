package types

import (
	"strings"

	"golang.org/x/exp/slices"
)

// CompilerOutput describes the result of compiling a single source file.
type CompilerOutput struct {
	// Diagnostics holds every message the compiler reported, in the order it reported them.
	Diagnostics []Diagnostic

	// Contracts maps a compiler-specific contract key to each contract the compiler produced. A compiler may report
	// contracts from files other than the one it was asked to compile.
	Contracts map[string]CompiledContract
}

// NewCompilerOutput returns a new, empty CompilerOutput.
func NewCompilerOutput() *CompilerOutput {
	return &CompilerOutput{
		Diagnostics: make([]Diagnostic, 0),
		Contracts:   make(map[string]CompiledContract),
	}
}

// HasErrors returns true if any diagnostic has error severity.
func (c *CompilerOutput) HasErrors() bool {
	return slices.IndexFunc(c.Diagnostics, func(d Diagnostic) bool { return d.IsError() }) >= 0
}

// ContractsFor returns the contracts attributed to the provided source path, sorted by name.
func (c *CompilerOutput) ContractsFor(sourcePath string) []CompiledContract {
	contracts := make([]CompiledContract, 0)
	for _, contract := range c.Contracts {
		if contract.IsAttributedTo(sourcePath) {
			contracts = append(contracts, contract)
		}
	}
	slices.SortFunc(contracts, func(a, b CompiledContract) int {
		return strings.Compare(a.Name, b.Name)
	})
	return contracts
}
