package cmd

// addCompileFlags adds the various flags for the compile command
func addCompileFlags() error {
	// Recompile everything
	compileCmd.Flags().Bool("all", false, "recompile every contract, not just the ones that changed")

	return nil
}
