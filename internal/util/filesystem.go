package util

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// IsSameFilesystem checks if two paths are on the same filesystem
// by comparing their device IDs (st_dev).
// Returns (false, err) if either path cannot be stat'd.
func IsSameFilesystem(path1, path2 string) (bool, error) {
	stat1, err := os.Stat(path1)
	if err != nil {
		return false, err
	}

	stat2, err := os.Stat(path2)
	if err != nil {
		return false, err
	}

	sysStat1, ok1 := stat1.Sys().(*syscall.Stat_t)
	sysStat2, ok2 := stat2.Sys().(*syscall.Stat_t)
	if !ok1 || !ok2 {
		// Unknown: treat as different so callers fall back to copy+remove
		return false, nil
	}

	return sysStat1.Dev == sysStat2.Dev, nil
}

// PathExists reports whether anything exists at path.
// Errors other than "does not exist" are returned as-is.
func PathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
