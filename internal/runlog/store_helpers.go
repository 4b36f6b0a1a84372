package runlog

import (
	"database/sql"
	"time"
)

const entryColumns = "id, run_id, session, directory, kind, state_before, state_after, started_at, finished_at, outcome, error_message"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		e           Entry
		stateBefore sql.NullString
		stateAfter  sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
		message     sql.NullString
	)
	if err := scanner.Scan(
		&e.ID,
		&e.RunID,
		&e.Session,
		&e.Directory,
		&e.Kind,
		&stateBefore,
		&stateAfter,
		&startedRaw,
		&finishedRaw,
		&e.Outcome,
		&message,
	); err != nil {
		return Entry{}, err
	}
	e.StateBefore = stateBefore.String
	e.StateAfter = stateAfter.String
	e.Error = message.String
	e.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		e.FinishedAt = parseTime(finishedRaw.String)
	}
	return e, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
