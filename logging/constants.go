package logging

// These constants are used to identify the various services that may do some logging. They are used as the value of
// the "module" key of a sub-logger.
const (
	// COMPILATION_SERVICE is the constant used to identify the compilation package
	COMPILATION_SERVICE = "compilation"
	// CONTRACTS_SERVICE is the constant used to identify the contracts package
	CONTRACTS_SERVICE = "contracts"
	// CHAIN_SERVICE is the constant used to identify the chain package
	CHAIN_SERVICE = "chain"
	// DEPLOYMENT_SERVICE is the constant used to identify the deployment package
	DEPLOYMENT_SERVICE = "deployment"
	// CLI_SERVICE is the constant used to identify the cmd package
	CLI_SERVICE = "cli"
)
