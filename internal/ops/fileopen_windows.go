//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/attune/internal/errors"
)

// createExportTemp creates the temp file an export is written to before the
// rename. Windows has no O_NOFOLLOW; validateExportPath has already refused
// symlinks.
func createExportTemp(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
}

// openImportFile opens a journal file for import.
func openImportFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
