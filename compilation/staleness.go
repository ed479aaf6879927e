package compilation

import (
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/pkg/errors"
)

// SourceExtension is the file extension of contract source files.
const SourceExtension = ".sol"

// SourceFile describes a snapshot of a contract source file, taken once per build pass.
type SourceFile struct {
	// Path is the path of the file relative to the contracts root, using forward slashes.
	Path string

	// ModTime is the last modification time of the file.
	ModTime time.Time

	// Imports are the first-level imports of the file, resolved relative to the contracts root.
	Imports []string

	// Unreadable indicates the file could not be inspected, in which case it is always considered stale.
	Unreadable bool
}

// CompiledArtifact describes an artifact file in the build output, used only for staleness comparison.
type CompiledArtifact struct {
	// Path is the path of the file relative to the build root, using forward slashes.
	Path string

	// ModTime is the last modification time of the file.
	ModTime time.Time
}

// artifactKey returns the case-insensitive key a source file or artifact is matched on: its path with the
// extension removed.
func artifactKey(p string) string {
	return strings.ToLower(strings.TrimSuffix(p, path.Ext(p)))
}

// SelectStale returns the source files which must be recompiled, in input order. Unless forceAll is set, a source
// file is stale if it could not be inspected, if no artifact matches it, if it is newer than its artifact, or if any
// of its imports is newer than its artifact. Imports which are not among the source files are ignored.
func SelectStale(sources []SourceFile, artifacts []CompiledArtifact, forceAll bool) []SourceFile {
	if forceAll {
		return append([]SourceFile{}, sources...)
	}

	artifactTimes := make(map[string]time.Time, len(artifacts))
	for _, artifact := range artifacts {
		key := artifactKey(artifact.Path)
		if _, exists := artifactTimes[key]; !exists {
			artifactTimes[key] = artifact.ModTime
		}
	}
	sourceTimes := make(map[string]time.Time, len(sources))
	for _, source := range sources {
		if !source.Unreadable {
			sourceTimes[source.Path] = source.ModTime
		}
	}

	stale := make([]SourceFile, 0)
	seen := make(map[string]bool, len(sources))
	for _, source := range sources {
		if seen[source.Path] {
			continue
		}
		seen[source.Path] = true
		if isStale(source, artifactTimes, sourceTimes) {
			stale = append(stale, source)
		}
	}
	return stale
}

// isStale decides whether a single source file must be recompiled.
func isStale(source SourceFile, artifactTimes map[string]time.Time, sourceTimes map[string]time.Time) bool {
	if source.Unreadable {
		return true
	}
	artifactTime, ok := artifactTimes[artifactKey(source.Path)]
	if !ok || source.ModTime.After(artifactTime) {
		return true
	}
	for _, imported := range source.Imports {
		if importTime, ok := sourceTimes[imported]; ok && importTime.After(artifactTime) {
			return true
		}
	}
	return false
}

// StalenessDetector scans a contracts tree and a build output tree to decide which source files must be recompiled.
type StalenessDetector struct {
	// sources is the contracts tree.
	sources fs.FS

	// artifacts is the build output tree.
	artifacts fs.FS

	// logger describes the detector's logger.
	logger *logging.Logger
}

// NewStalenessDetector creates a StalenessDetector over the provided contracts and build output trees. If logger is
// nil, the global logger is used.
func NewStalenessDetector(sources fs.FS, artifacts fs.FS, logger *logging.Logger) *StalenessDetector {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &StalenessDetector{
		sources:   sources,
		artifacts: artifacts,
		logger:    logger.NewSubLogger("module", logging.COMPILATION_SERVICE),
	}
}

// ScanSources returns a snapshot of every source file in the contracts tree, in lexical order. A file that cannot be
// inspected is reported as unreadable rather than failing the scan. An error is only returned if the tree itself
// cannot be walked.
func (d *StalenessDetector) ScanSources() ([]SourceFile, error) {
	sources := make([]SourceFile, 0)
	err := fs.WalkDir(d.sources, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				return err
			}
			d.logger.Warn("Could not inspect ", colors.Bold, p, colors.Reset, ", it will be recompiled: ", err.Error())
			if entry != nil && !entry.IsDir() {
				sources = append(sources, SourceFile{Path: p, Unreadable: true})
			}
			return nil
		}
		if entry.IsDir() || !strings.EqualFold(path.Ext(p), SourceExtension) {
			return nil
		}
		sources = append(sources, d.scanSource(p, entry))
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return sources, nil
}

// scanSource takes a snapshot of a single source file.
func (d *StalenessDetector) scanSource(p string, entry fs.DirEntry) SourceFile {
	info, err := entry.Info()
	if err != nil {
		d.logger.Warn("Could not inspect ", colors.Bold, p, colors.Reset, ", it will be recompiled: ", err.Error())
		return SourceFile{Path: p, Unreadable: true}
	}
	source := SourceFile{
		Path:    p,
		ModTime: info.ModTime(),
		Imports: make([]string, 0),
	}

	// An unreadable file still has a usable timestamp, only its imports are lost
	content, err := fs.ReadFile(d.sources, p)
	if err != nil {
		d.logger.Debug("Could not read imports of ", p, ": ", err.Error())
		return source
	}
	for _, importPath := range ParseImports(content) {
		if resolved, ok := ResolveImport(p, importPath); ok {
			source.Imports = append(source.Imports, resolved)
		}
	}
	return source
}

// ScanArtifacts returns every artifact file in the build output tree. Artifacts that cannot be inspected are left
// out, which makes their sources stale. A missing build output tree yields no artifacts.
func (d *StalenessDetector) ScanArtifacts() ([]CompiledArtifact, error) {
	artifacts := make([]CompiledArtifact, 0)
	err := fs.WalkDir(d.artifacts, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if p == "." {
				if errors.Is(err, fs.ErrNotExist) {
					return fs.SkipAll
				}
				return err
			}
			return nil
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !strings.EqualFold(path.Ext(p), contracts.ArtifactExtension) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		artifacts = append(artifacts, CompiledArtifact{Path: p, ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return artifacts, nil
}

// SelectStale scans both trees and returns the source files which must be recompiled. If forceAll is set, every
// source file is returned.
func (d *StalenessDetector) SelectStale(forceAll bool) ([]SourceFile, error) {
	sources, err := d.ScanSources()
	if err != nil {
		return nil, err
	}
	artifacts, err := d.ScanArtifacts()
	if err != nil {
		return nil, err
	}

	stale := SelectStale(sources, artifacts, forceAll)
	d.logger.Debug(len(stale), " of ", len(sources), " source file(s) need compiling")
	return stale, nil
}
