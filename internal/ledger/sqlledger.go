package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// schema is the on-disk layout. Table and column names are relied on by
// external tooling and must not change.
const schema = `
CREATE TABLE IF NOT EXISTS opportunities (
	run_id      TEXT NOT NULL,
	opp_id      TEXT NOT NULL,
	selected_at TEXT NOT NULL,
	PRIMARY KEY (run_id, opp_id)
);

CREATE TABLE IF NOT EXISTS activities (
	run_id        TEXT NOT NULL,
	opp_id        TEXT NOT NULL,
	signature     TEXT NOT NULL,
	activity_id   TEXT NOT NULL,
	activity_type TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, opp_id, signature)
);

CREATE TABLE IF NOT EXISTS scorecards (
	run_id       TEXT NOT NULL,
	opp_id       TEXT NOT NULL,
	scorecard_id TEXT NOT NULL,
	template     TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (run_id, opp_id, template)
);

CREATE TABLE IF NOT EXISTS scorecard_answers (
	run_id       TEXT NOT NULL,
	scorecard_id TEXT NOT NULL,
	question_id  TEXT NOT NULL,
	confidence   REAL NOT NULL,
	created_at   TEXT NOT NULL,
	PRIMARY KEY (run_id, scorecard_id, question_id)
);
`

// SqlLedger implements Ledger with SQLite.
type SqlLedger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path, creating the parent
// directory if needed.
func Open(path string) (*SqlLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: all workers' writes are serialized through it.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	l := newSqlLedger(db)
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func newSqlLedger(db *sql.DB) *SqlLedger { return &SqlLedger{db: db} }

func (l *SqlLedger) migrate() error {
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (l *SqlLedger) Close() error {
	return l.db.Close()
}

func (l *SqlLedger) exists(what, query string, args ...any) (bool, error) {
	var one int
	err := l.db.QueryRow(query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", what, err)
	}
	return true, nil
}

// HasOpportunity reports whether the opportunity was fully processed.
func (l *SqlLedger) HasOpportunity(runID, oppID string) (bool, error) {
	return l.exists("opportunity",
		"SELECT 1 FROM opportunities WHERE run_id = ? AND opp_id = ?", runID, oppID)
}

// RecordOpportunity marks the opportunity as processed.
func (l *SqlLedger) RecordOpportunity(runID, oppID string, selectedAt time.Time) error {
	_, err := l.db.Exec(
		"INSERT OR IGNORE INTO opportunities(run_id, opp_id, selected_at) VALUES(?, ?, ?)",
		runID, oppID, formatTime(selectedAt),
	)
	if err != nil {
		return fmt.Errorf("record opportunity: %w", err)
	}
	return nil
}

func (l *SqlLedger) HasActivity(runID, oppID, signature string) (bool, error) {
	return l.exists("activity",
		"SELECT 1 FROM activities WHERE run_id = ? AND opp_id = ? AND signature = ?",
		runID, oppID, signature)
}

func (l *SqlLedger) RecordActivity(a Activity) error {
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO activities(run_id, opp_id, signature, activity_id, activity_type, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		a.RunID, a.OppID, a.Signature, a.ActivityID, a.Type, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (l *SqlLedger) HasScorecard(runID, oppID, template string) (bool, error) {
	return l.exists("scorecard",
		"SELECT 1 FROM scorecards WHERE run_id = ? AND opp_id = ? AND template = ?",
		runID, oppID, template)
}

func (l *SqlLedger) RecordScorecard(s Scorecard) error {
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO scorecards(run_id, opp_id, scorecard_id, template, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		s.RunID, s.OppID, s.ScorecardID, s.Template, formatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record scorecard: %w", err)
	}
	return nil
}

func (l *SqlLedger) HasScorecardAnswer(runID, scorecardID, questionID string) (bool, error) {
	return l.exists("scorecard answer",
		"SELECT 1 FROM scorecard_answers WHERE run_id = ? AND scorecard_id = ? AND question_id = ?",
		runID, scorecardID, questionID)
}

func (l *SqlLedger) RecordScorecardAnswer(a Answer) error {
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO scorecard_answers(run_id, scorecard_id, question_id, confidence, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		a.RunID, a.ScorecardID, a.QuestionID, a.Confidence, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record scorecard answer: %w", err)
	}
	return nil
}

// RunActivities returns every activity recorded for runID.
func (l *SqlLedger) RunActivities(runID string) ([]Activity, error) {
	rows, err := l.db.Query(
		`SELECT opp_id, signature, activity_id, activity_type, created_at
		 FROM activities WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()
	var list []Activity
	for rows.Next() {
		a := Activity{RunID: runID}
		var created string
		if err := rows.Scan(&a.OppID, &a.Signature, &a.ActivityID, &a.Type, &created); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.CreatedAt = parseTime(created)
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return list, nil
}

// RunScorecards returns every scorecard recorded for runID.
func (l *SqlLedger) RunScorecards(runID string) ([]Scorecard, error) {
	rows, err := l.db.Query(
		`SELECT opp_id, scorecard_id, template, created_at
		 FROM scorecards WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scorecards: %w", err)
	}
	defer rows.Close()
	var list []Scorecard
	for rows.Next() {
		s := Scorecard{RunID: runID}
		var created string
		if err := rows.Scan(&s.OppID, &s.ScorecardID, &s.Template, &created); err != nil {
			return nil, fmt.Errorf("scan scorecard: %w", err)
		}
		s.CreatedAt = parseTime(created)
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scorecards: %w", err)
	}
	return list, nil
}

// Counts returns the row count of each table for runID.
func (l *SqlLedger) Counts(runID string) (Counts, error) {
	var c Counts
	err := l.db.QueryRow(
		`SELECT
			(SELECT COUNT(*) FROM opportunities WHERE run_id = ?),
			(SELECT COUNT(*) FROM activities WHERE run_id = ?),
			(SELECT COUNT(*) FROM scorecards WHERE run_id = ?),
			(SELECT COUNT(*) FROM scorecard_answers WHERE run_id = ?)`,
		runID, runID, runID, runID,
	).Scan(&c.Opportunities, &c.Activities, &c.Scorecards, &c.Answers)
	if err != nil {
		return Counts{}, fmt.Errorf("count ledger rows: %w", err)
	}
	return c, nil
}
