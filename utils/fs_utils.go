package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CreateFile will create a file at the given path and file name combination. If the path is the empty string, the
// file will be created in the current working directory
func CreateFile(path string, fileName string) (*os.File, error) {
	// By default, the path will be the name of the file
	filePath := fileName

	// Check to see if the file needs to be created in another directory or the working directory
	if path != "" {
		// Make the directory, if it does not exist already
		err := MakeDirectory(path)
		if err != nil {
			return nil, err
		}
		filePath = filepath.Join(path, fileName)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return file, nil
}

// WriteFileAtomic writes data to a temporary file in the target's directory and then moves it over the target path,
// so readers never observe a partially written file. Parent directories are created as needed.
func WriteFileAtomic(targetPath string, data []byte, perm os.FileMode) error {
	targetDirectory := filepath.Dir(targetPath)
	err := MakeDirectory(targetDirectory)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(targetDirectory, "."+filepath.Base(targetPath)+".*.tmp")
	if err != nil {
		return errors.WithStack(err)
	}
	tmpPath := tmpFile.Name()

	_, err = tmpFile.Write(data)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, perm)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return errors.WithStack(err)
	}

	err = MoveFile(tmpPath, targetPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// MoveFile will move a given file from the source path to the target path. Returns an error if one occured.
func MoveFile(sourcePath string, targetPath string) error {
	// Obtain file info for the source file
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}

	// If the path refers to a directory, return an error
	if sourceInfo.IsDir() {
		return fmt.Errorf("could not move file from '%s' to '%s' because the source path refers to a directory", sourcePath, targetPath)
	}

	// Ensure the existence of the directory we wish to move to.
	err = MakeDirectory(filepath.Dir(targetPath))
	if err != nil {
		return err
	}

	return errors.WithStack(os.Rename(sourcePath, targetPath))
}

// GetFileNameWithoutExtension obtains a filename without the extension. This does not contain any preceding directory
// paths.
func GetFileNameWithoutExtension(filePath string) string {
	return GetFilePathWithoutExtension(filepath.Base(filePath))
}

// GetFilePathWithoutExtension obtains a file path without the extension. This retains all preceding directory paths.
func GetFilePathWithoutExtension(filePath string) string {
	return filePath[:len(filePath)-len(filepath.Ext(filePath))]
}

// MakeDirectory creates a directory at the given path, including any parent directories which do not exist.
// Returns an error, if one occurred.
func MakeDirectory(dirToMake string) error {
	dirInfo, err := os.Stat(dirToMake)
	if err != nil {
		// Directory does not exist, as expected.
		if os.IsNotExist(err) {
			err = os.MkdirAll(dirToMake, 0755)
			if err != nil {
				return errors.WithStack(err)
			}
			return nil
		}
		return errors.WithStack(err)
	}

	// dirToMake is a file, throw an error accordingly
	if !dirInfo.IsDir() {
		return fmt.Errorf("there is a file with the same name as %s", dirToMake)
	}

	// Directory already exists, good to go
	return nil
}

// IsDirectoryEmpty returns true if the directory at the provided path does not exist or holds no entries.
func IsDirectoryEmpty(directoryPath string) (bool, error) {
	entries, err := os.ReadDir(directoryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, errors.WithStack(err)
	}
	return len(entries) == 0, nil
}
