package contracts

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// ArtifactExtension is the file extension of persisted contract artifacts.
const ArtifactExtension = ".json"

// emptyArtifact is written in place of an artifact when a source file yields no contracts.
var emptyArtifact = []byte("{}\n")

// Store reads and writes contract artifact files under a build directory. It performs no validation beyond what
// loading a Contract requires.
type Store struct {
	// directory is the root of the build output tree.
	directory string
}

// NewStore creates a Store rooted at the provided build directory.
func NewStore(directory string) *Store {
	return &Store{directory: directory}
}

// Directory returns the root of the build output tree.
func (s *Store) Directory() string {
	return s.directory
}

// FS returns a read-only file system view of the build output tree.
func (s *Store) FS() fs.FS {
	return os.DirFS(s.directory)
}

// ArtifactPath returns the path of the artifact for the given contract, placed in the provided directory relative to
// the build root.
func (s *Store) ArtifactPath(relativeDirectory string, contractName string) string {
	return filepath.Join(s.directory, filepath.FromSlash(relativeDirectory), contractName+ArtifactExtension)
}

// List returns the paths of every artifact file in the build output tree, sorted. Hidden files are skipped. A missing
// build directory yields an empty list.
func (s *Store) List() ([]string, error) {
	paths := make([]string, 0)
	err := filepath.WalkDir(s.directory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.directory {
				return filepath.SkipDir
			}
			return err
		}
		if strings.HasPrefix(entry.Name(), ".") && path != s.directory {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ArtifactExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	slices.Sort(paths)
	return paths, nil
}

// Load reads the artifact at the provided path.
func (s *Store) Load(path string) (*Contract, error) {
	return LoadContract(path)
}

// Save writes the contract to the provided path, or to the path it was loaded from if path is empty. Clean contracts
// are only written if force is set.
func (s *Store) Save(contract *Contract, path string, force bool) error {
	return contract.Save(path, force)
}

// WriteEmpty writes an empty artifact at the provided path.
func (s *Store) WriteEmpty(path string) error {
	return utils.WriteFileAtomic(path, emptyArtifact, 0644)
}
