package compilation

import (
	"os"
	"time"

	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// BuildOptions describes a single build of a project's contracts tree.
type BuildOptions struct {
	// ContractsDirectory is the root of the contracts tree.
	ContractsDirectory string

	// Store is the artifact store the build output is written to.
	Store *contracts.Store

	// Config describes the compilation platform and concurrency.
	Config *CompilationConfig

	// ForceAll recompiles every source file regardless of staleness.
	ForceAll bool

	// Logger is used for build output. If nil, the global logger is used.
	Logger *logging.Logger
}

// Build compiles every stale source file in the contracts tree into the artifact store. The returned error is set
// if the build could not be started. A build that started returns its BatchResult, whose Err reports the first
// compilation or write failure.
func Build(ctx context.Context, options BuildOptions) (*BatchResult, error) {
	logger := options.Logger
	if logger == nil {
		logger = logging.GlobalLogger
	}
	if options.Store == nil || options.Config == nil {
		return nil, errors.New("a build requires an artifact store and a compilation config")
	}

	if _, err := os.Stat(options.ContractsDirectory); err != nil {
		return nil, errors.Wrapf(err, "contracts directory %s is not accessible", options.ContractsDirectory)
	}
	if err := utils.MakeDirectory(options.Store.Directory()); err != nil {
		return nil, err
	}

	detector := NewStalenessDetector(os.DirFS(options.ContractsDirectory), options.Store.FS(), logger)
	stale, err := detector.SelectStale(options.ForceAll)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		logger.Info("Everything is up to date, there is nothing to compile")
		return &BatchResult{}, nil
	}

	compiler, err := options.Config.NewCompiler(options.ContractsDirectory)
	if err != nil {
		return nil, err
	}

	logger.Info("Compiling ", len(stale), " source file(s) with ", colors.Bold, options.Config.Platform, colors.Reset)
	start := time.Now()
	scheduler := NewScheduler(compiler, options.Store, options.Config.Concurrency, logger)
	result := scheduler.CompileAll(ctx, stale)
	if result.Failed() {
		logger.Error("Compilation failed", result.Err)
		return result, nil
	}

	logger.Info(
		"Compiled ", len(result.Started), " source file(s) into ", len(result.Artifacts), " artifact(s) in ",
		time.Since(start).Round(time.Millisecond),
	)
	NotifyArtifactHashStatus(options.Store, logger)
	return result, nil
}
