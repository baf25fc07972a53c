package ops

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/vault"
)

// MaxImportBytes bounds the size of an import file.
const MaxImportBytes = 64 << 20

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError ImportMode = "error" // fail on collision (atomic)
	ImportModeSkip  ImportMode = "skip"  // skip records whose id already exists
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path       string     // required
	Passphrase string     // required for sealed exports
	Mode       ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Failure reports an import that was rejected as a whole. In error mode
// any collected error means nothing was imported; skip mode never fails.
func (o *ImportOutput) Failure(mode ImportMode) error {
	if mode == ImportModeSkip || len(o.Errors) == 0 {
		return nil
	}
	first := o.Errors[0]
	details := map[string]any{"errors": o.Errors}
	if first.Code == "ID_COLLISION" {
		err := errors.NewConflict(fmt.Sprintf("import aborted: %s", first.Message))
		err.Details = details
		return err
	}
	err := errors.NewInvalidRequest(fmt.Sprintf("import aborted at line %d: %s", first.Line, first.Message))
	err.Details = details
	return err
}

// importRecord is a parsed, validated line ready for insertion.
type importRecord struct {
	line    int
	kind    string
	checkIn *journal.CheckIn
	mood    *journal.MoodEntry
}

func (r importRecord) id() string {
	if r.checkIn != nil {
		return r.checkIn.ID
	}
	return r.mood.ID
}

// Import appends check-ins and mood entries from a JSONL export, in file order.
func Import(ctx context.Context, env *Env, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip")
	}

	if err := env.validateExportPath(input.Path, importRead); err != nil {
		return nil, err
	}

	payload, err := readImportFile(input.Path)
	if err != nil {
		return nil, err
	}
	if isSealedName(input.Path) && !vault.IsSealed(payload) {
		return nil, errors.NewInvalidRequest("file is named as an encrypted export but is not encrypted")
	}
	if vault.IsSealed(payload) {
		if input.Passphrase == "" {
			return nil, errors.NewInvalidRequest("export is encrypted; passphrase is required")
		}
		payload, err = vault.Open(payload, input.Passphrase)
		if err != nil {
			if stderrors.Is(err, vault.ErrDecrypt) {
				return nil, errors.NewDecryptFailed()
			}
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}

	records, parseErrors := parseExport(payload)

	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	env.writeMu.Lock()
	defer env.writeMu.Unlock()

	var out *ImportOutput
	switch input.Mode {
	case ImportModeError:
		out, err = importAtomic(ctx, env, records)
	default:
		out, err = importSkip(ctx, env, records, parseErrors)
	}
	if err != nil {
		return nil, err
	}

	env.logger().Info("journal imported",
		zap.String("path", input.Path),
		zap.String("mode", string(input.Mode)),
		zap.Int("imported", out.Imported),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

func readImportFile(path string) ([]byte, error) {
	file, err := openImportFile(path)
	if err != nil {
		var aErr *errors.AttuneError
		if stderrors.As(err, &aErr) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewTooLarge("import file", MaxImportBytes, len(data))
	}
	return data, nil
}

// parseExport parses JSONL export content into records.
func parseExport(data []byte) ([]importRecord, []ImportError) {
	var records []importRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), MaxImportBytes)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec journal.ExportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if rec.AttuneExport {
			if rec.SchemaVersion != ExportSchemaVersion {
				parseErrors = append(parseErrors, ImportError{
					Line:    lineNum,
					Code:    "UNSUPPORTED_VERSION",
					Message: fmt.Sprintf("unsupported schema version %q", rec.SchemaVersion),
				})
			}
			continue
		}

		r, ierr := toImportRecord(lineNum, rec)
		if ierr != nil {
			parseErrors = append(parseErrors, *ierr)
			continue
		}
		records = append(records, r)
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

func toImportRecord(line int, rec journal.ExportRecord) (importRecord, *ImportError) {
	invalid := func(id, msg string) *ImportError {
		return &ImportError{Line: line, ID: id, Kind: rec.Kind, Code: "INVALID_RECORD", Message: msg}
	}

	switch rec.Kind {
	case journal.KindCheckIn:
		if rec.CheckIn == nil || rec.CheckIn.ID == "" {
			return importRecord{}, invalid("", "missing checkin id")
		}
		c := rec.CheckIn.ToCheckIn()
		if c.Retrospective == "" && c.Prospective == "" {
			return importRecord{}, invalid(c.ID, "retrospective or prospective is required")
		}
		if !validHoursSlept(c.HoursSlept) {
			return importRecord{}, invalid(c.ID, "hours_slept must be between 0 and 24")
		}
		return importRecord{line: line, kind: rec.Kind, checkIn: c}, nil

	case journal.KindMood:
		if rec.Mood == nil || rec.Mood.ID == "" {
			return importRecord{}, invalid("", "missing mood id")
		}
		m, err := rec.Mood.ToMood()
		if err != nil {
			return importRecord{}, invalid(rec.Mood.ID, err.Error())
		}
		return importRecord{line: line, kind: rec.Kind, mood: m}, nil

	default:
		return importRecord{}, invalid("", fmt.Sprintf("unknown record kind %q", rec.Kind))
	}
}

// importAtomic imports all records in one transaction, rolling back on any collision.
func importAtomic(ctx context.Context, env *Env, records []importRecord) (*ImportOutput, error) {
	tx, err := env.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	imported := 0
	for _, r := range records {
		exists, err := recordExists(ctx, tx, r)
		if err != nil {
			return nil, err
		}
		if exists {
			return &ImportOutput{Errors: []ImportError{collision(r)}}, nil
		}
		if err := insertRecord(ctx, tx, r); err != nil {
			if errors.Is(err, errors.ErrConflict) {
				// Duplicate id within the file itself.
				return &ImportOutput{Errors: []ImportError{collision(r)}}, nil
			}
			return nil, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ImportOutput{Imported: imported, Errors: []ImportError{}}, nil
}

// importSkip imports records, skipping ids that already exist.
func importSkip(ctx context.Context, env *Env, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	tx, err := env.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	importErrors := append([]ImportError{}, parseErrors...)
	skipped := len(parseErrors)
	imported := 0

	for _, r := range records {
		exists, err := recordExists(ctx, tx, r)
		if err != nil {
			return nil, err
		}
		if exists {
			skipped++
			continue
		}
		if err := insertRecord(ctx, tx, r); err != nil {
			if errors.Is(err, errors.ErrConflict) {
				skipped++
				continue
			}
			return nil, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &ImportOutput{
		Imported: imported,
		Skipped:  skipped,
		Errors:   importErrors,
	}, nil
}

func recordExists(ctx context.Context, q db.Querier, r importRecord) (bool, error) {
	if r.checkIn != nil {
		return db.CheckInExists(ctx, q, r.checkIn.ID)
	}
	return db.MoodExists(ctx, q, r.mood.ID)
}

func insertRecord(ctx context.Context, q db.Querier, r importRecord) error {
	var err error
	if r.checkIn != nil {
		_, err = db.InsertCheckIn(ctx, q, r.checkIn)
	} else {
		_, err = db.InsertMood(ctx, q, r.mood)
	}
	return err
}

func collision(r importRecord) ImportError {
	return ImportError{
		Line:    r.line,
		ID:      r.id(),
		Kind:    r.kind,
		Code:    "ID_COLLISION",
		Message: fmt.Sprintf("%s with id %q already exists", r.kind, r.id()),
	}
}
