package ops

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/vault"
)

// ExportSchemaVersion is written to the header line of every export.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path       string // optional, default: <exports dir>/journal-<timestamp>.jsonl (.sealed.jsonl when encrypted)
	Passphrase string // optional; seals the whole file when set
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	CheckIns   int    `json:"checkins"`
	Moods      int    `json:"moods"`
	Encrypted  bool   `json:"encrypted"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes the journal to a JSONL file: a header line, then every
// check-in in insertion order, then every mood entry.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	now := env.now()
	exportedAt := now.Unix()

	sealed := input.Passphrase != ""
	exportPath := input.Path
	if exportPath == "" {
		dir, err := env.exportsDir()
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, exportFileName(now, sealed))
	}

	if err := env.validateExportPath(exportPath, exportWrite); err != nil {
		return nil, err
	}
	if err := checkExportName(exportPath, sealed); err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve existing file on failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := createExportTemp(tempPath)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	// Sealed exports are assembled in memory: the envelope covers the whole payload.
	var plain bytes.Buffer
	var w io.Writer = file
	if sealed {
		w = &plain
	}
	bw := bufio.NewWriter(w)

	checkins, moods, err := writeJournal(ctx, env, bw, exportedAt)
	if err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if sealed {
		envelope, err := vault.Seal(plain.Bytes(), input.Passphrase)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if _, err := file.Write(append(envelope, '\n')); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails if the destination exists. The existing file
	// is preserved rather than risking a non-atomic delete+rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	env.logger().Info("journal exported",
		zap.String("path", exportPath),
		zap.Int("checkins", checkins),
		zap.Int("moods", moods),
		zap.Bool("encrypted", sealed))

	return &ExportOutput{
		Path:       exportPath,
		CheckIns:   checkins,
		Moods:      moods,
		Encrypted:  sealed,
		ExportedAt: exportedAt,
	}, nil
}

// writeJournal streams the header and all records as JSONL.
func writeJournal(ctx context.Context, env *Env, w io.Writer, exportedAt int64) (int, int, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	header := journal.ExportRecord{
		AttuneExport:  true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    exportedAt,
	}
	if err := enc.Encode(header); err != nil {
		return 0, 0, errors.NewInternal(err)
	}

	checkins, err := writeCheckIns(ctx, env, enc)
	if err != nil {
		return 0, 0, err
	}
	moods, err := writeMoods(ctx, env, enc)
	if err != nil {
		return 0, 0, err
	}
	return checkins, moods, nil
}

func writeCheckIns(ctx context.Context, env *Env, enc *json.Encoder) (int, error) {
	rows, err := db.StreamCheckIns(ctx, env.DB)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		select {
		case <-ctx.Done():
			return n, errors.NewCancelled("export")
		default:
		}

		c, err := db.ScanCheckInRows(rows)
		if err != nil {
			return n, errors.NewInternal(err)
		}
		rec := journal.ExportRecord{Kind: journal.KindCheckIn, CheckIn: journal.CheckInToRecord(c)}
		if err := enc.Encode(rec); err != nil {
			return n, errors.NewInternal(err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, errors.NewInternal(err)
	}
	return n, nil
}

func writeMoods(ctx context.Context, env *Env, enc *json.Encoder) (int, error) {
	rows, err := db.StreamMoods(ctx, env.DB)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		select {
		case <-ctx.Done():
			return n, errors.NewCancelled("export")
		default:
		}

		m, err := db.ScanMoodRows(rows)
		if err != nil {
			return n, errors.NewInternal(err)
		}
		rec := journal.ExportRecord{Kind: journal.KindMood, Mood: journal.MoodToRecord(m)}
		if err := enc.Encode(rec); err != nil {
			return n, errors.NewInternal(err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, errors.NewInternal(err)
	}
	return n, nil
}
