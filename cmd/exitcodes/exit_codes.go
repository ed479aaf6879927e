package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeHandledError indicates that there was an error that was already logged, so the top-level does not need
	// to print it again.
	ExitCodeHandledError = 5

	// ExitCodeCompilationFailed indicates the compiler reported an error for at least one source file.
	ExitCodeCompilationFailed = 6

	// ExitCodeDeploymentFailed indicates the deployment script failed.
	ExitCodeDeploymentFailed = 7

	// ExitCodeTransactionTimeout indicates the deployment failed because a transaction was not mined in time.
	ExitCodeTransactionTimeout = 8
)

// IsReported returns whether errors carrying the given exit code have already been logged by the command that
// returned them.
func IsReported(exitCode int) bool {
	switch exitCode {
	case ExitCodeHandledError, ExitCodeCompilationFailed, ExitCodeDeploymentFailed, ExitCodeTransactionTimeout:
		return true
	default:
		return false
	}
}
