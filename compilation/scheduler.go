package compilation

import (
	"path"
	"strconv"
	"sync"

	"github.com/crytic/plum/compilation/platforms"
	"github.com/crytic/plum/compilation/types"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// ErrCompilationFailed indicates a source file could not be compiled.
var ErrCompilationFailed = errors.New("compilation failed")

// BatchResult describes the outcome of compiling a batch of source files.
type BatchResult struct {
	// Err is the first fatal error encountered, or nil if the batch succeeded.
	Err error

	// Diagnostics holds every diagnostic collected, grouped by file in order of completion. The diagnostics of a
	// single file keep the order the compiler reported them in.
	Diagnostics []types.Diagnostic

	// Started lists the source files compilation was started for, in order.
	Started []string

	// Artifacts lists the paths of every artifact file written.
	Artifacts []string
}

// Failed returns true if the batch encountered a fatal error.
func (r *BatchResult) Failed() bool {
	return r.Err != nil
}

// Scheduler compiles batches of source files with a bounded number of concurrent compiler invocations, writing the
// resulting artifacts to a store.
type Scheduler struct {
	// compiler compiles single source files.
	compiler platforms.Compiler

	// store is where artifacts are written.
	store *contracts.Store

	// concurrency is the maximum number of compiler invocations in flight.
	concurrency int

	// logger describes the scheduler's logger.
	logger *logging.Logger

	// fileCompleted is invoked once a file's completion has been fully processed, before its worker slot is freed.
	fileCompleted func(file SourceFile)
}

// NewScheduler creates a Scheduler. A non-positive concurrency selects DefaultConcurrency. If logger is nil, the
// global logger is used.
func NewScheduler(compiler platforms.Compiler, store *contracts.Store, concurrency int, logger *logging.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &Scheduler{
		compiler:    compiler,
		store:       store,
		concurrency: concurrency,
		logger:      logger.NewSubLogger("module", logging.COMPILATION_SERVICE),
	}
}

// batch holds the shared state of one CompileAll call.
type batch struct {
	result *BatchResult

	// lock guards result, and serializes artifact writes.
	lock sync.Mutex
}

// failed returns true if a fatal error was latched.
func (b *batch) failed() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.result.Err != nil
}

// latch records err as the batch error, unless one was recorded already. The caller must hold the lock.
func (b *batch) latch(err error) {
	if b.result.Err == nil {
		b.result.Err = err
	}
}

// CompileAll compiles the provided source files in order, with at most the configured number of compiler invocations
// in flight. A new file is only started once a worker slot frees up. The first fatal error (a compiler failure, an
// error diagnostic, or an artifact write failure) is latched: no new files are started and the output of files that
// complete afterwards is discarded, but files already in flight run to completion and their diagnostics are kept.
func (s *Scheduler) CompileAll(ctx context.Context, staleFiles []SourceFile) *BatchResult {
	b := &batch{
		result: &BatchResult{
			Diagnostics: make([]types.Diagnostic, 0),
			Started:     make([]string, 0),
			Artifacts:   make([]string, 0),
		},
	}

	// Worker slots are reserved by sending into the channel and freed by receiving from it
	threadReserveChannel := make(chan struct{}, s.concurrency)
	availableWorkerIndexes := make([]int, s.concurrency)
	availableWorkerIndexesLock := sync.Mutex{}
	for i := 0; i < len(availableWorkerIndexes); i++ {
		availableWorkerIndexes[i] = i
	}

	var wg sync.WaitGroup
	for _, file := range staleFiles {
		// Block until a worker slot frees up
		select {
		case threadReserveChannel <- struct{}{}:
		case <-ctx.Done():
		}

		// Stop pulling work once a failure is latched or we were cancelled
		if utils.CheckContextDone(ctx) {
			b.lock.Lock()
			b.latch(errors.WithStack(ctx.Err()))
			b.lock.Unlock()
		}
		if b.failed() {
			break
		}

		// Pop a worker index off of our queue
		availableWorkerIndexesLock.Lock()
		workerIndex := availableWorkerIndexes[0]
		availableWorkerIndexes = availableWorkerIndexes[1:]
		availableWorkerIndexesLock.Unlock()

		b.lock.Lock()
		b.result.Started = append(b.result.Started, file.Path)
		b.lock.Unlock()

		wg.Add(1)
		go func(workerIndex int, file SourceFile) {
			defer wg.Done()
			s.compileFile(ctx, workerIndex, file, b)

			// Free our worker id before unblocking our channel, as a free one will be expected.
			availableWorkerIndexesLock.Lock()
			availableWorkerIndexes = append(availableWorkerIndexes, workerIndex)
			availableWorkerIndexesLock.Unlock()
			<-threadReserveChannel
		}(workerIndex, file)
	}

	// Let in-flight work drain
	wg.Wait()

	if b.result.Err != nil {
		s.logger.Error("Compilation failed after starting ", len(b.result.Started), " of ", len(staleFiles), " file(s)", b.result.Err)
	} else {
		s.logger.Info("Compiled ", colors.Bold, len(b.result.Started), colors.Reset, " file(s), wrote ", len(b.result.Artifacts), " artifact(s)")
	}
	return b.result
}

// compileFile compiles a single source file on the given worker and processes its completion.
func (s *Scheduler) compileFile(ctx context.Context, workerIndex int, file SourceFile, b *batch) {
	logger := s.logger.NewSubLogger("worker", strconv.Itoa(workerIndex))
	logger.Info("Compiling ", colors.Bold, file.Path, colors.Reset)

	output, err := s.compiler.Compile(ctx, file.Path)

	// Diagnostics are emitted by this worker in the order the compiler reported them
	var diagnostics []types.Diagnostic
	if output != nil {
		diagnostics = output.Diagnostics
	}
	for _, diagnostic := range diagnostics {
		logDiagnostic(logger, diagnostic)
	}

	b.lock.Lock()
	defer func() {
		b.lock.Unlock()
		if s.fileCompleted != nil {
			s.fileCompleted(file)
		}
	}()

	b.result.Diagnostics = append(b.result.Diagnostics, diagnostics...)
	switch {
	case err != nil:
		b.latch(errors.Wrapf(ErrCompilationFailed, "could not compile %s: %v", file.Path, err))
		return
	case output.HasErrors():
		b.latch(errors.Wrapf(ErrCompilationFailed, "%s has errors", file.Path))
		return
	case b.result.Err != nil:
		logger.Debug("Discarding the output of ", file.Path, " after an earlier failure")
		return
	}

	written, err := s.writeArtifacts(file, output)
	b.result.Artifacts = append(b.result.Artifacts, written...)
	if err != nil {
		b.latch(err)
	}
}

// logDiagnostic emits a diagnostic at the log level matching its severity.
func logDiagnostic(logger *logging.Logger, diagnostic types.Diagnostic) {
	switch diagnostic.Severity {
	case types.SeverityError:
		logger.Error(diagnostic.Message)
	case types.SeverityWarning:
		logger.Warn(diagnostic.Message)
	default:
		logger.Info(diagnostic.Message)
	}
}

// writeArtifacts writes an artifact for every contract the compiler attributes to the file, keeping the deployment
// records of any artifact already on disk. If no contract is attributed to the file, an empty artifact named after
// the file is written instead. The paths written are returned.
func (s *Scheduler) writeArtifacts(file SourceFile, output *types.CompilerOutput) ([]string, error) {
	relativeDirectory := path.Dir(file.Path)
	if relativeDirectory == "." {
		relativeDirectory = ""
	}

	compiled := output.ContractsFor(file.Path)
	if len(compiled) == 0 {
		artifactPath := s.store.ArtifactPath(relativeDirectory, utils.GetFileNameWithoutExtension(file.Path))
		if err := s.store.WriteEmpty(artifactPath); err != nil {
			return nil, errors.WithMessagef(err, "could not write artifact for %s", file.Path)
		}
		return []string{artifactPath}, nil
	}

	written := make([]string, 0, len(compiled))
	for _, c := range compiled {
		contract, err := contracts.NewContract(contracts.ContractDefinition{
			Name:             c.Name,
			Abi:              c.Abi,
			Bytecode:         c.Bytecode,
			DeployedBytecode: c.DeployedBytecode,
			SourcePath:       file.Path,
		})
		if err != nil {
			return written, errors.Wrapf(ErrCompilationFailed, "compiler produced an unusable artifact for %s: %v", c.Name, err)
		}

		artifactPath := s.store.ArtifactPath(relativeDirectory, c.Name)
		if existing, err := s.store.Load(artifactPath); err == nil {
			contract.InheritNetworks(existing)
		}
		if err = s.store.Save(contract, artifactPath, true); err != nil {
			return written, err
		}
		written = append(written, artifactPath)
	}
	return written, nil
}
