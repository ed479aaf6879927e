package cmd

import "github.com/crytic/plum/config"

// DefaultProjectConfigFilename describes the default config filename for a given project folder.
const DefaultProjectConfigFilename = config.DefaultConfigFileName

// DefaultCompilationPlatform describes the default compilation platform to use if one is not provided
const DefaultCompilationPlatform = config.DefaultPlatform

// DefaultDeploymentScript is the deployment plan written by the init command.
const DefaultDeploymentScript = `// Deployment steps run in order by "plum deploy". Each step deploys a contract, calls a view
// method, or sends a transaction. Reference a deployed contract's address with "@Name".
{
  "steps": []
}
`
