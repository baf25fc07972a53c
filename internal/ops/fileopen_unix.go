//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/attune/internal/errors"
)

// createExportTemp creates the temp file an export is written to before the
// rename. The name is random, so O_EXCL doubles as a collision check.
func createExportTemp(path string) (*os.File, error) {
	return openNoFollow(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
}

// openImportFile opens a journal file for import.
func openImportFile(path string) (*os.File, error) {
	return openNoFollow(path, os.O_RDONLY, 0)
}

// openNoFollow refuses a symlink in the final component. Parent directories
// were checked by validateExportPath.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), path), nil
	case stderrors.Is(err, syscall.ELOOP):
		return nil, errors.NewInvalidRequest("journal file must not be a symlink")
	case stderrors.Is(err, syscall.ENOENT) && flag&os.O_CREATE == 0:
		return nil, errors.NewFileNotFound(path)
	}
	return nil, err
}
