package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/attune/internal/errors"
)

// Export file extensions. A sealed export carries its own suffix so a
// ciphertext file is never mistaken for a readable journal dump.
const (
	exportExt       = ".jsonl"
	sealedExportExt = ".sealed.jsonl"
)

// exportAccess says whether a journal file is about to be read or written.
type exportAccess int

const (
	importRead exportAccess = iota
	exportWrite
)

// exportsDir is where exports land when no path is given: the exports/
// directory next to the journal database.
func (e *Env) exportsDir() (string, error) {
	if e.ExportsDir != "" {
		return filepath.Clean(e.ExportsDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, ".attune", "exports"), nil
}

// exportFileName names a journal snapshot taken at now.
func exportFileName(now time.Time, sealed bool) string {
	ext := exportExt
	if sealed {
		ext = sealedExportExt
	}
	return "journal-" + now.Format("2006-01-02T150405") + ext
}

func isSealedName(path string) bool {
	return strings.HasSuffix(filepath.Base(path), sealedExportExt)
}

// checkExportName enforces the extension rule for a write: sealed exports
// must end in .sealed.jsonl and plain ones must not.
func checkExportName(path string, sealed bool) error {
	switch {
	case sealed && !isSealedName(path):
		return errors.NewInvalidRequest("encrypted exports must use the " + sealedExportExt + " extension")
	case !sealed && isSealedName(path):
		return errors.NewInvalidRequest(sealedExportExt + " is reserved for encrypted exports; pass a passphrase or rename the file")
	}
	return nil
}

// validateExportPath checks a journal file path before it is opened.
//
// The file must sit directly in the exports directory or an allowed_paths
// entry. Nested directories are refused, so no intermediate component can
// be swapped for a symlink between this check and the O_NOFOLLOW open.
// allow_unsafe_paths lifts the directory rule but not the symlink rule.
func (e *Env) validateExportPath(path string, access exportAccess) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if hasParentRef(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != exportExt {
		return errors.NewInvalidRequest("path must have " + exportExt + " extension")
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if !e.config().AllowUnsafePaths {
		roots, err := e.exportRoots()
		if err != nil {
			return err
		}
		parent := filepath.Dir(abs)
		if !slices.Contains(roots, parent) {
			return errors.NewInvalidRequest(fmt.Sprintf(
				"journal files must be directly in the exports directory or allowed_paths (no subdirectories); allowed: %v", roots))
		}
		if isSymlink(parent) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if access == importRead {
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if isSymlink(abs) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// exportRoots lists the directories journal files may live in. Roots that
// are themselves symlinks are resolved so the comparison uses real paths.
func (e *Env) exportRoots() ([]string, error) {
	dir, err := e.exportsDir()
	if err != nil {
		return nil, err
	}
	candidates := []string{dir}
	for _, p := range e.config().AllowedPaths {
		if filepath.IsAbs(p) {
			candidates = append(candidates, p)
		}
	}

	roots := make([]string, 0, len(candidates))
	for _, c := range candidates {
		abs, err := filepath.Abs(filepath.Clean(c))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			if abs, err = filepath.EvalSymlinks(abs); err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
		}
		roots = append(roots, abs)
	}
	return roots, nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// hasParentRef reports a ".." component under either separator.
func hasParentRef(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}
