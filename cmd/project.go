package cmd

import (
	"os"
	"os/signal"
	"path/filepath"

	"github.com/crytic/plum/cmd/exitcodes"
	"github.com/crytic/plum/compilation"
	"github.com/crytic/plum/config"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
)

// resolveConfigPath returns the path given by the --config flag, or the default configuration file in the working
// directory if the flag was not used.
func resolveConfigPath(cmd *cobra.Command) (string, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", err
	}
	if configPath != "" {
		return configPath, nil
	}

	workingDirectory, err := os.Getwd()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return filepath.Join(workingDirectory, DefaultProjectConfigFilename), nil
}

// loadProjectConfig reads and validates the project configuration selected by the command's flags and sets up the
// global logger from its logging section.
func loadProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, error) {
	configPath, err := resolveConfigPath(cmd)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, errors.Errorf("unable to find a project configuration at %s, run 'plum init' to create one", configPath)
	}

	projectConfig, err := config.ReadProjectConfigFromFile(configPath)
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}
	if noColor {
		projectConfig.Logging.NoColor = true
	}

	if err := projectConfig.Validate(); err != nil {
		return nil, err
	}

	if err := setupGlobalLogger(projectConfig); err != nil {
		return nil, err
	}
	return projectConfig, nil
}

// setupGlobalLogger configures logging.GlobalLogger from the project's logging configuration. Console output is always
// enabled. If a log directory is set, structured output is also written to a file in it.
func setupGlobalLogger(projectConfig *config.ProjectConfig) error {
	logging.GlobalLogger.SetLevel(projectConfig.Logging.Level)
	logging.GlobalLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, !projectConfig.Logging.NoColor)

	if projectConfig.Logging.LogDirectory == "" {
		return nil
	}

	logDirectory := projectConfig.Logging.LogDirectory
	if !filepath.IsAbs(logDirectory) {
		logDirectory = filepath.Join(projectConfig.Directories.Base, logDirectory)
	}
	file, err := utils.CreateFile(logDirectory, "plum.log")
	if err != nil {
		return err
	}
	logging.GlobalLogger.AddWriter(file, logging.STRUCTURED, false)
	return nil
}

// interruptContext returns a context that is cancelled on a keyboard interrupt. The returned function releases the
// signal handler and must be called once the command is done.
func interruptContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			cmdLogger.Warn("Interrupt received, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(c)
		cancel()
	}
}

// buildProject compiles the stale contracts of the project. A compilation failure is returned with
// ExitCodeCompilationFailed.
func buildProject(ctx context.Context, projectConfig *config.ProjectConfig, forceAll bool) error {
	result, err := compilation.Build(ctx, compilation.BuildOptions{
		ContractsDirectory: projectConfig.ContractsDirectory(),
		Store:              contracts.NewStore(projectConfig.BuildDirectory()),
		Config:             projectConfig.Compilation,
		ForceAll:           forceAll,
	})
	if err != nil {
		return err
	}
	if result.Failed() {
		return exitcodes.NewErrorWithExitCode(result.Err, exitcodes.ExitCodeCompilationFailed)
	}
	return nil
}
