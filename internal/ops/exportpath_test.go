package ops

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/attune/internal/errors"
)

// newExportsEnv returns an env whose exports directory is a fresh temp dir
// and which has no allowed_paths.
func newExportsEnv(t *testing.T) (*Env, string) {
	t.Helper()
	env, _ := newTestEnv(t)
	env.Cfg.AllowedPaths = nil
	env.ExportsDir = t.TempDir()
	return env, env.ExportsDir
}

func skipWithoutSymlinks(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}
}

func TestValidateExportPath_Traversal(t *testing.T) {
	env, dir := newExportsEnv(t)

	for _, p := range []string{
		"../journal.jsonl",
		"../../etc/journal.jsonl",
		dir + "/../journal.jsonl",
		dir + "/sub/../../journal.jsonl",
	} {
		err := env.validateExportPath(p, exportWrite)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), "path %q: %v", p, err)
		require.ErrorContains(t, err, "traversal")
	}
}

func TestValidateExportPath_Extension(t *testing.T) {
	env, dir := newExportsEnv(t)

	for _, name := range []string{"journal", "journal.json", "journal.txt", "journal.jsonl.bak"} {
		err := env.validateExportPath(filepath.Join(dir, name), exportWrite)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest), name)
	}
	require.NoError(t, env.validateExportPath(filepath.Join(dir, "journal.jsonl"), exportWrite))
	require.NoError(t, env.validateExportPath(filepath.Join(dir, "journal.sealed.jsonl"), exportWrite))
}

func TestValidateExportPath_Directories(t *testing.T) {
	env, dir := newExportsEnv(t)
	other := t.TempDir()

	require.NoError(t, env.validateExportPath(filepath.Join(dir, "journal.jsonl"), exportWrite))

	err := env.validateExportPath(filepath.Join(other, "journal.jsonl"), exportWrite)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.ErrorContains(t, err, "exports directory")

	err = env.validateExportPath(filepath.Join(dir, "2026", "journal.jsonl"), exportWrite)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "subdirectories of the exports dir are refused")

	env.Cfg.AllowedPaths = []string{other, "relative/ignored"}
	require.NoError(t, env.validateExportPath(filepath.Join(other, "journal.jsonl"), exportWrite))
}

func TestValidateExportPath_UnsafePaths(t *testing.T) {
	skipWithoutSymlinks(t)
	env, _ := newExportsEnv(t)
	env.Cfg.AllowUnsafePaths = true
	anywhere := t.TempDir()

	require.NoError(t, env.validateExportPath(filepath.Join(anywhere, "journal.jsonl"), exportWrite))

	target := filepath.Join(anywhere, "real.jsonl")
	require.NoError(t, os.WriteFile(target, []byte("{}\n"), 0600))
	link := filepath.Join(anywhere, "link.jsonl")
	require.NoError(t, os.Symlink(target, link))

	err := env.validateExportPath(link, importRead)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "symlinks are refused even with allow_unsafe_paths")
}

func TestValidateExportPath_ReadMissing(t *testing.T) {
	env, dir := newExportsEnv(t)

	err := env.validateExportPath(filepath.Join(dir, "journal.jsonl"), importRead)
	require.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func TestValidateExportPath_Symlinks(t *testing.T) {
	skipWithoutSymlinks(t)
	env, dir := newExportsEnv(t)

	outside := filepath.Join(t.TempDir(), "secret.jsonl")
	require.NoError(t, os.WriteFile(outside, []byte("{}\n"), 0600))
	link := filepath.Join(dir, "journal.jsonl")
	require.NoError(t, os.Symlink(outside, link))

	for _, access := range []exportAccess{importRead, exportWrite} {
		err := env.validateExportPath(link, access)
		require.True(t, errors.Is(err, errors.ErrInvalidRequest))
		require.ErrorContains(t, err, "symlink")
	}

	t.Run("symlinked allowed path resolves", func(t *testing.T) {
		realDir := t.TempDir()
		linked := filepath.Join(t.TempDir(), "exports")
		require.NoError(t, os.Symlink(realDir, linked))
		env.Cfg.AllowedPaths = []string{linked}

		roots, err := env.exportRoots()
		require.NoError(t, err)
		resolved, err := filepath.EvalSymlinks(realDir)
		require.NoError(t, err)
		require.Contains(t, roots, resolved)
	})
}

func TestCheckExportName(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		sealed  bool
		wantErr bool
	}{
		{"plain", "/x/journal.jsonl", false, false},
		{"sealed", "/x/journal.sealed.jsonl", true, false},
		{"sealed needs suffix", "/x/journal.jsonl", true, true},
		{"plain must not claim sealed", "/x/journal.sealed.jsonl", false, true},
		{"bare sealed name", "/x/sealed.jsonl", true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkExportName(tc.path, tc.sealed)
			if tc.wantErr {
				require.True(t, errors.Is(err, errors.ErrInvalidRequest))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExportFileName(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 5, 7, 0, time.UTC)
	require.Equal(t, "journal-2026-03-10T090507.jsonl", exportFileName(at, false))
	require.Equal(t, "journal-2026-03-10T090507.sealed.jsonl", exportFileName(at, true))
}

func TestExport_DefaultPathInExportsDir(t *testing.T) {
	env, dir := newExportsEnv(t)
	seedJournal(t, env)
	ctx := context.Background()

	out, err := Export(ctx, env, ExportInput{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, exportFileName(testNow, false)), out.Path)

	out, err = Export(ctx, env, ExportInput{Passphrase: "pw"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, exportFileName(testNow, true)), out.Path)
	require.True(t, out.Encrypted)
}

func TestExport_SealedExtensionRule(t *testing.T) {
	env, dir := newExportsEnv(t)
	seedJournal(t, env)
	ctx := context.Background()

	_, err := Export(ctx, env, ExportInput{Path: filepath.Join(dir, "journal.jsonl"), Passphrase: "pw"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Export(ctx, env, ExportInput{Path: filepath.Join(dir, "journal.sealed.jsonl")})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "rejected exports leave nothing behind")
}

func TestImport_SealedNameMustBeEncrypted(t *testing.T) {
	env, dir := newExportsEnv(t)
	path := filepath.Join(dir, "journal.sealed.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"_attune_export":true,"schema_version":"1.0","exported_at":1}`+"\n"), 0600))

	_, err := Import(context.Background(), env, ImportInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.ErrorContains(t, err, "not encrypted")
}

func TestHasParentRef(t *testing.T) {
	require.True(t, hasParentRef(".."))
	require.True(t, hasParentRef("a/../b.jsonl"))
	require.True(t, hasParentRef(`a\..\b.jsonl`) == (filepath.Separator == '\\'))
	require.False(t, hasParentRef("a/..b/c.jsonl"))
	require.False(t, hasParentRef("journal..jsonl"))
}
