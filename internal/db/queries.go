package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.AttuneError{
	Code:    errors.ErrConflict,
	Status:  409,
	Message: "unique constraint violation",
}

const checkInColumns = `
	seq, id, timestamp, retrospective, prospective, target, hours_slept,
	alignment_prior, alignment_target, drift_flag, scoring_mode,
	emb_retrospective, emb_prospective, emb_target, created_at`

// InsertCheckIn appends a check-in and returns its assigned sequence number.
// c.Seq is ignored on input and set on success.
func InsertCheckIn(ctx context.Context, q Querier, c *journal.CheckIn) (int64, error) {
	query := `
		INSERT INTO checkins (
			id, timestamp, retrospective, prospective, target, hours_slept,
			alignment_prior, alignment_target, drift_flag, scoring_mode,
			emb_retrospective, emb_prospective, emb_target, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		c.ID, c.Timestamp, c.Retrospective, c.Prospective,
		toNullString(c.Target), toNullFloat(c.HoursSlept),
		toNullFloat(c.AlignmentToPriorIntent), toNullFloat(c.AlignmentToTarget),
		c.DriftFlag, toNullString(c.ScoringMode),
		toNullString(c.Embeddings.Retrospective),
		toNullString(c.Embeddings.Prospective),
		toNullString(c.Embeddings.Target),
		c.CreatedAt,
	)
	if err != nil {
		return 0, mapError(ctx, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	c.Seq = seq
	return seq, nil
}

// GetCheckIn retrieves a check-in by its ULID.
func GetCheckIn(ctx context.Context, q Querier, id string) (*journal.CheckIn, error) {
	row := q.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM checkins WHERE id = ?`, id)
	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return c, nil
}

// LastCheckIn returns the most recently inserted check-in, or nil if there is none.
func LastCheckIn(ctx context.Context, q Querier) (*journal.CheckIn, error) {
	row := q.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM checkins ORDER BY seq DESC LIMIT 1`)
	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return c, nil
}

// PriorCheckIn returns the check-in inserted immediately before seq, or nil.
func PriorCheckIn(ctx context.Context, q Querier, seq int64) (*journal.CheckIn, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+checkInColumns+` FROM checkins WHERE seq < ? ORDER BY seq DESC LIMIT 1`, seq)
	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return c, nil
}

// RecentCheckIns returns up to n check-ins, newest first by insertion order.
func RecentCheckIns(ctx context.Context, q Querier, n int) ([]journal.CheckIn, error) {
	return queryCheckIns(ctx, q,
		`SELECT `+checkInColumns+` FROM checkins ORDER BY seq DESC LIMIT ?`, n)
}

// CheckInsSince returns check-ins with timestamp >= cutoff, oldest first by insertion order.
func CheckInsSince(ctx context.Context, q Querier, cutoff int64) ([]journal.CheckIn, error) {
	return queryCheckIns(ctx, q,
		`SELECT `+checkInColumns+` FROM checkins WHERE timestamp >= ? ORDER BY seq ASC`, cutoff)
}

// ListCheckIns returns a page of check-ins, newest first.
func ListCheckIns(ctx context.Context, q Querier, limit, offset int) ([]journal.CheckIn, error) {
	return queryCheckIns(ctx, q,
		`SELECT `+checkInColumns+` FROM checkins ORDER BY seq DESC LIMIT ? OFFSET ?`, limit, offset)
}

// CountCheckIns returns the total number of check-ins.
func CountCheckIns(ctx context.Context, q Querier) (int, error) {
	return count(ctx, q, `SELECT COUNT(*) FROM checkins`)
}

// CheckInExists reports whether a check-in with id is stored.
func CheckInExists(ctx context.Context, q Querier, id string) (bool, error) {
	return exists(ctx, q, `SELECT 1 FROM checkins WHERE id = ? LIMIT 1`, id)
}

// StreamCheckIns returns rows for every check-in in insertion order.
// The caller must close the rows and scan them with ScanCheckInRows.
func StreamCheckIns(ctx context.Context, q Querier) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+checkInColumns+` FROM checkins ORDER BY seq ASC`)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return rows, nil
}

// ScanCheckInRows scans the current row of a StreamCheckIns result.
func ScanCheckInRows(rows *sql.Rows) (*journal.CheckIn, error) {
	return scanCheckIn(rows)
}

func queryCheckIns(ctx context.Context, q Querier, query string, args ...any) ([]journal.CheckIn, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var out []journal.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCheckIn(s scanner) (*journal.CheckIn, error) {
	var (
		c           journal.CheckIn
		target      sql.NullString
		hoursSlept  sql.NullFloat64
		alignPrior  sql.NullFloat64
		alignTarget sql.NullFloat64
		mode        sql.NullString
		embRetro    sql.NullString
		embPro      sql.NullString
		embTarget   sql.NullString
	)

	err := s.Scan(
		&c.Seq, &c.ID, &c.Timestamp, &c.Retrospective, &c.Prospective,
		&target, &hoursSlept, &alignPrior, &alignTarget, &c.DriftFlag, &mode,
		&embRetro, &embPro, &embTarget, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Target = target.String
	c.HoursSlept = fromNullFloat(hoursSlept)
	c.AlignmentToPriorIntent = fromNullFloat(alignPrior)
	c.AlignmentToTarget = fromNullFloat(alignTarget)
	c.ScoringMode = mode.String
	c.Embeddings = journal.Embeddings{
		Retrospective: embRetro.String,
		Prospective:   embPro.String,
		Target:        embTarget.String,
	}
	return &c, nil
}

func count(ctx context.Context, q Querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(ctx, err)
	}
	return n, nil
}

func exists(ctx context.Context, q Querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapError(ctx, err)
	}
	return true, nil
}

// mapError converts driver errors to AttuneErrors. A cancelled context
// becomes CANCELLED rather than INTERNAL.
func mapError(ctx context.Context, err error) error {
	if isUniqueConstraintError(err) {
		return ErrUniqueConstraint
	}
	if ctx.Err() != nil {
		return errors.NewCancelled("query")
	}
	return errors.NewInternal(err)
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
