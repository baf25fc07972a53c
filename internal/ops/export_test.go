package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/vault"
)

// seedJournal writes two check-ins and one mood entry.
func seedJournal(t *testing.T, env *Env) []string {
	t.Helper()
	ctx := context.Background()

	a, err := Submit(ctx, env, SubmitInput{Retrospective: "inbox", Prospective: "finish report", HoursSlept: float64Ptr(7)})
	require.NoError(t, err)
	b, err := Submit(ctx, env, SubmitInput{Retrospective: "finish report", Prospective: "walk"})
	require.NoError(t, err)
	m, err := RecordMood(ctx, env, MoodInput{Ratings: fullRatings(3, 2), Note: "steady"})
	require.NoError(t, err)
	return []string{a.ID, b.ID, m.ID}
}

func readLines(t *testing.T, path string) []journal.ExportRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []journal.ExportRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec journal.ExportRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestExport_HappyPath(t *testing.T) {
	env, tmpDir := newTestEnv(t)
	ids := seedJournal(t, env)

	exportPath := filepath.Join(tmpDir, "journal.jsonl")
	out, err := Export(context.Background(), env, ExportInput{Path: exportPath})
	require.NoError(t, err)
	require.Equal(t, exportPath, out.Path)
	require.Equal(t, 2, out.CheckIns)
	require.Equal(t, 1, out.Moods)
	require.False(t, out.Encrypted)
	require.Equal(t, testNow.Unix(), out.ExportedAt)

	lines := readLines(t, exportPath)
	require.Len(t, lines, 4)
	require.True(t, lines[0].AttuneExport)
	require.Equal(t, ExportSchemaVersion, lines[0].SchemaVersion)
	require.Equal(t, journal.KindCheckIn, lines[1].Kind)
	require.Equal(t, ids[0], lines[1].CheckIn.ID)
	require.Equal(t, ids[1], lines[2].CheckIn.ID)
	require.NotNil(t, lines[2].CheckIn.AlignmentToPriorIntent)
	require.Equal(t, journal.KindMood, lines[3].Kind)
	require.Equal(t, ids[2], lines[3].Mood.ID)

	info, err := os.Stat(exportPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// No temp files left behind.
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp")
	}
}

func TestExport_Encrypted(t *testing.T) {
	env, tmpDir := newTestEnv(t)
	seedJournal(t, env)

	exportPath := filepath.Join(tmpDir, "journal.sealed.jsonl")
	out, err := Export(context.Background(), env, ExportInput{Path: exportPath, Passphrase: "correct horse"})
	require.NoError(t, err)
	require.True(t, out.Encrypted)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	require.True(t, vault.IsSealed(data))
	require.NotContains(t, string(data), "finish report")

	plain, err := vault.Open(data, "correct horse")
	require.NoError(t, err)
	require.Contains(t, string(plain), "finish report")
}

func TestExport_PathRejected(t *testing.T) {
	env, tmpDir := newTestEnv(t)

	_, err := Export(context.Background(), env, ExportInput{Path: filepath.Join(tmpDir, "journal.json")})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Export(context.Background(), env, ExportInput{Path: filepath.Join(t.TempDir(), "journal.jsonl")})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestImport_RoundTrip(t *testing.T) {
	src, tmpDir := newTestEnv(t)
	ids := seedJournal(t, src)
	exportPath := filepath.Join(tmpDir, "journal.jsonl")
	_, err := Export(context.Background(), src, ExportInput{Path: exportPath})
	require.NoError(t, err)

	dst, _ := newTestEnv(t)
	dst.Cfg.AllowedPaths = []string{tmpDir}
	ctx := context.Background()

	out, err := Import(ctx, dst, ImportInput{Path: exportPath})
	require.NoError(t, err)
	require.Equal(t, 3, out.Imported)
	require.Empty(t, out.Errors)

	got, err := db.GetCheckIn(ctx, dst.DB, ids[1])
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Seq)
	require.Equal(t, "finish report", got.Retrospective)
	require.NotNil(t, got.AlignmentToPriorIntent)

	m, err := db.GetMood(ctx, dst.DB, ids[2])
	require.NoError(t, err)
	require.Equal(t, 30, m.PositiveAffect)
	require.Equal(t, 20, m.NegativeAffect)

	// A second error-mode import collides and changes nothing.
	out, err = Import(ctx, dst, ImportInput{Path: exportPath, Mode: ImportModeError})
	require.NoError(t, err)
	require.Zero(t, out.Imported)
	require.Len(t, out.Errors, 1)
	require.Equal(t, "ID_COLLISION", out.Errors[0].Code)
	require.Equal(t, ids[0], out.Errors[0].ID)

	n, err := db.CountCheckIns(ctx, dst.DB)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Skip mode skips every existing id.
	out, err = Import(ctx, dst, ImportInput{Path: exportPath, Mode: ImportModeSkip})
	require.NoError(t, err)
	require.Zero(t, out.Imported)
	require.Equal(t, 3, out.Skipped)
}

func TestImport_ErrorModeIsAtomic(t *testing.T) {
	env, tmpDir := newTestEnv(t)
	ctx := context.Background()

	existing, err := Submit(ctx, env, SubmitInput{Retrospective: "already here"})
	require.NoError(t, err)

	lines := []journal.ExportRecord{
		{AttuneExport: true, SchemaVersion: ExportSchemaVersion, ExportedAt: 1},
		{Kind: journal.KindCheckIn, CheckIn: &journal.CheckInRecord{ID: "01NEW0001", Timestamp: 10, Retrospective: "new"}},
		{Kind: journal.KindCheckIn, CheckIn: &journal.CheckInRecord{ID: existing.ID, Timestamp: 11, Retrospective: "dup"}},
	}
	path := writeExportFile(t, tmpDir, "partial.jsonl", lines)

	out, err := Import(ctx, env, ImportInput{Path: path})
	require.NoError(t, err)
	require.Zero(t, out.Imported)
	require.Equal(t, "ID_COLLISION", out.Errors[0].Code)
	require.True(t, errors.Is(out.Failure(ImportModeError), errors.ErrConflict))
	require.True(t, errors.Is(out.Failure(""), errors.ErrConflict), "empty mode means error mode")

	exists, err := db.CheckInExists(ctx, env.DB, "01NEW0001")
	require.NoError(t, err)
	require.False(t, exists, "error mode must roll back earlier inserts")

	out, err = Import(ctx, env, ImportInput{Path: path, Mode: ImportModeSkip})
	require.NoError(t, err)
	require.Equal(t, 1, out.Imported)
	require.Equal(t, 1, out.Skipped)
	require.NoError(t, out.Failure(ImportModeSkip))
}

func TestImport_InvalidRecords(t *testing.T) {
	env, tmpDir := newTestEnv(t)
	ctx := context.Background()

	badMood := fullRatings(3, 3)
	delete(badMood, "afraid")
	path := filepath.Join(tmpDir, "bad.jsonl")
	content := `{"_attune_export":true,"schema_version":"1.0","exported_at":1}
not json
{"kind":"checkin","checkin":{"id":"","timestamp":1,"retrospective":"x"}}
{"kind":"unknown"}
`
	moodLine, err := json.Marshal(journal.ExportRecord{Kind: journal.KindMood, Mood: &journal.MoodRecord{ID: "01MOOD", Timestamp: 1, Ratings: badMood}})
	require.NoError(t, err)
	sleepLine, err := json.Marshal(journal.ExportRecord{Kind: journal.KindCheckIn, CheckIn: &journal.CheckInRecord{ID: "01SLEEP", Timestamp: 2, Prospective: "ok", HoursSlept: float64Ptr(30)}})
	require.NoError(t, err)
	goodLine, err := json.Marshal(journal.ExportRecord{Kind: journal.KindCheckIn, CheckIn: &journal.CheckInRecord{ID: "01GOOD", Timestamp: 2, Prospective: "ok"}})
	require.NoError(t, err)
	content += string(moodLine) + "\n" + string(sleepLine) + "\n" + string(goodLine) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	out, err := Import(ctx, env, ImportInput{Path: path})
	require.NoError(t, err)
	require.Zero(t, out.Imported)
	require.Len(t, out.Errors, 5)
	require.Equal(t, "PARSE_ERROR", out.Errors[0].Code)
	require.Equal(t, 2, out.Errors[0].Line)
	require.Equal(t, "INVALID_RECORD", out.Errors[1].Code)
	require.Equal(t, "INVALID_RECORD", out.Errors[3].Code)
	require.Equal(t, "01MOOD", out.Errors[3].ID)
	require.Equal(t, "01SLEEP", out.Errors[4].ID)
	require.True(t, errors.Is(out.Failure(ImportModeError), errors.ErrInvalidRequest))

	out, err = Import(ctx, env, ImportInput{Path: path, Mode: ImportModeSkip})
	require.NoError(t, err)
	require.Equal(t, 1, out.Imported)
	require.Equal(t, 5, out.Skipped)
	require.NoError(t, out.Failure(ImportModeSkip), "skip mode reports bad lines without failing")
}

func TestImport_Encrypted(t *testing.T) {
	src, tmpDir := newTestEnv(t)
	seedJournal(t, src)
	exportPath := filepath.Join(tmpDir, "journal.sealed.jsonl")
	_, err := Export(context.Background(), src, ExportInput{Path: exportPath, Passphrase: "s3cret"})
	require.NoError(t, err)

	dst, _ := newTestEnv(t)
	dst.Cfg.AllowedPaths = []string{tmpDir}
	ctx := context.Background()

	_, err = Import(ctx, dst, ImportInput{Path: exportPath})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(ctx, dst, ImportInput{Path: exportPath, Passphrase: "wrong"})
	require.True(t, errors.Is(err, errors.ErrDecryptFailed))

	out, err := Import(ctx, dst, ImportInput{Path: exportPath, Passphrase: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, 3, out.Imported)
}

func TestImport_Validation(t *testing.T) {
	env, tmpDir := newTestEnv(t)
	ctx := context.Background()

	_, err := Import(ctx, env, ImportInput{})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(ctx, env, ImportInput{Path: filepath.Join(tmpDir, "x.jsonl"), Mode: "replace"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Import(ctx, env, ImportInput{Path: filepath.Join(tmpDir, "missing.jsonl")})
	require.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func writeExportFile(t *testing.T, dir, name string, lines []journal.ExportRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, l := range lines {
		require.NoError(t, enc.Encode(l))
	}
	return path
}
