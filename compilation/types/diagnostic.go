package types

import "strings"

// Severity describes how serious a compiler diagnostic is.
type Severity string

const (
	// SeverityError marks a diagnostic that fails the compilation of its file.
	SeverityError Severity = "error"
	// SeverityWarning marks a diagnostic that does not fail compilation.
	SeverityWarning Severity = "warning"
	// SeverityInfo marks an informational diagnostic.
	SeverityInfo Severity = "info"
)

// ParseSeverity converts a compiler-reported severity string into a Severity. Unknown values are treated as errors,
// so that a diagnostic is never silently downgraded.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return SeverityWarning
	case "info":
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Diagnostic describes a single message reported by a compiler.
type Diagnostic struct {
	// Severity describes how serious the diagnostic is.
	Severity Severity `json:"severity"`

	// Message is the compiler-provided text of the diagnostic.
	Message string `json:"message"`

	// SourceFile is the file the diagnostic refers to, if any.
	SourceFile string `json:"sourceFile,omitempty"`

	// CompiledFile is the file whose compilation produced the diagnostic.
	CompiledFile string `json:"compiledFile"`
}

// IsError returns true if the diagnostic fails compilation.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}
