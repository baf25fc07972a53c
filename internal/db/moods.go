package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
)

// Auxiliary numeric series readable through NumericSeries.
const (
	SeriesNegativeAffect = "negative_affect"
	SeriesPositiveAffect = "positive_affect"
	SeriesHoursSlept     = "hours_slept"
)

// seriesQueries maps a series name to its query. Names are never
// interpolated into SQL.
var seriesQueries = map[string]string{
	SeriesNegativeAffect: `SELECT timestamp, negative_affect FROM moods WHERE timestamp >= ? ORDER BY timestamp ASC, seq ASC`,
	SeriesPositiveAffect: `SELECT timestamp, positive_affect FROM moods WHERE timestamp >= ? ORDER BY timestamp ASC, seq ASC`,
	SeriesHoursSlept:     `SELECT timestamp, hours_slept FROM checkins WHERE timestamp >= ? AND hours_slept IS NOT NULL ORDER BY timestamp ASC, seq ASC`,
}

const moodColumns = `seq, id, timestamp, ratings_json, positive_affect, negative_affect, note, created_at`

// InsertMood appends a PANAS entry and returns its sequence number.
func InsertMood(ctx context.Context, q Querier, m *journal.MoodEntry) (int64, error) {
	ratings, err := json.Marshal(m.Ratings)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO moods (id, timestamp, ratings_json, positive_affect, negative_affect, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Timestamp, string(ratings), m.PositiveAffect, m.NegativeAffect, toNullString(m.Note), m.CreatedAt)
	if err != nil {
		return 0, mapError(ctx, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	m.Seq = seq
	return seq, nil
}

// GetMood retrieves a mood entry by its ULID.
func GetMood(ctx context.Context, q Querier, id string) (*journal.MoodEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+moodColumns+` FROM moods WHERE id = ?`, id)
	m, err := scanMood(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return m, nil
}

// ListMoods returns a page of mood entries, newest first.
func ListMoods(ctx context.Context, q Querier, limit, offset int) ([]journal.MoodEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+moodColumns+` FROM moods ORDER BY seq DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var out []journal.MoodEntry
	for rows.Next() {
		m, err := scanMood(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err)
	}
	return out, nil
}

// CountMoods returns the total number of mood entries.
func CountMoods(ctx context.Context, q Querier) (int, error) {
	return count(ctx, q, `SELECT COUNT(*) FROM moods`)
}

// MoodExists reports whether a mood entry with id is stored.
func MoodExists(ctx context.Context, q Querier, id string) (bool, error) {
	return exists(ctx, q, `SELECT 1 FROM moods WHERE id = ? LIMIT 1`, id)
}

// StreamMoods returns rows for every mood entry in insertion order.
// The caller must close the rows and scan them with ScanMoodRows.
func StreamMoods(ctx context.Context, q Querier) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+moodColumns+` FROM moods ORDER BY seq ASC`)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return rows, nil
}

// ScanMoodRows scans the current row of a StreamMoods result.
func ScanMoodRows(rows *sql.Rows) (*journal.MoodEntry, error) {
	return scanMood(rows)
}

// NumericSeries returns an auxiliary numeric series from since onward,
// in chronological order.
func NumericSeries(ctx context.Context, q Querier, series string, since int64) ([]journal.SeriesPoint, error) {
	query, ok := seriesQueries[series]
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown series %q", series))
	}

	rows, err := q.QueryContext(ctx, query, since)
	if err != nil {
		return nil, mapError(ctx, err)
	}
	defer rows.Close()

	var out []journal.SeriesPoint
	for rows.Next() {
		var p journal.SeriesPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(ctx, err)
	}
	return out, nil
}

func scanMood(s scanner) (*journal.MoodEntry, error) {
	var (
		m       journal.MoodEntry
		ratings string
		note    sql.NullString
	)
	err := s.Scan(&m.Seq, &m.ID, &m.Timestamp, &ratings, &m.PositiveAffect, &m.NegativeAffect, &note, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ratings), &m.Ratings); err != nil {
		return nil, fmt.Errorf("decode ratings for %s: %w", m.ID, err)
	}
	m.Note = note.String
	return &m, nil
}
