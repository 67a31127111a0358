// Package audit records every executed tool call and the outcome of
// every turn. The trail is append-only and kept apart from the
// conversation history, so tool payloads never leak into later
// prompts.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agrismart/assistant/internal/llm"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// timeLayout is fixed-width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// TurnRecord describes one completed turn and its tool trace.
type TurnRecord struct {
	ID             string
	Timestamp      time.Time
	RequestID      string
	ConversationID string
	Outcome        string // success, degraded, exhausted
	Tier           string // primary, secondary, offline
	Reason         string
	Elapsed        time.Duration
	Trace          []llm.ToolResult
}

// ToolCallRecord is one stored tool execution.
type ToolCallRecord struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	RequestID      string          `json:"request_id"`
	ConversationID string          `json:"conversation_id"`
	Round          int             `json:"round"`
	ToolName       string          `json:"tool_name"`
	Arguments      json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorCode      string          `json:"error_code,omitempty"`
	DurationMS     int64           `json:"duration_ms"`
}

// TierCount is the number of turns answered by a tier for a reason.
type TierCount struct {
	Tier   string `json:"tier"`
	Reason string `json:"reason,omitempty"`
	Count  int    `json:"count"`
}

// Store is an append-only SQL store. All methods are safe for
// concurrent use.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens (and migrates) an audit store. For sqlite3 the dsn is a
// file path; for postgres it is a libpq connection string or URL.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported audit driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id              TEXT PRIMARY KEY,
		created_at      TEXT NOT NULL,
		request_id      TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		outcome         TEXT NOT NULL,
		tier            TEXT NOT NULL,
		reason          TEXT NOT NULL,
		tool_calls      INTEGER NOT NULL,
		elapsed_ms      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id);

	CREATE TABLE IF NOT EXISTS tool_calls (
		id              TEXT PRIMARY KEY,
		created_at      TEXT NOT NULL,
		request_id      TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		round           INTEGER NOT NULL,
		seq             INTEGER NOT NULL,
		tool_name       TEXT NOT NULL,
		arguments       TEXT,
		result          TEXT,
		error           TEXT,
		error_code      TEXT,
		duration_ms     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_conversation ON tool_calls(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_request ON tool_calls(request_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate audit id: %w", err)
	}
	return id.String(), nil
}

// RecordTurn stores the turn and its tool calls in one transaction.
// Empty IDs and timestamps are filled in.
func (s *Store) RecordTurn(ctx context.Context, rec TurnRecord) error {
	if rec.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	ts := rec.Timestamp.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO turns
			(id, created_at, request_id, conversation_id, outcome, tier, reason, tool_calls, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, ts, rec.RequestID, rec.ConversationID,
		rec.Outcome, rec.Tier, rec.Reason,
		len(rec.Trace), rec.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	insertCall := s.rebind(
		`INSERT INTO tool_calls
			(id, created_at, request_id, conversation_id, round, seq, tool_name,
			 arguments, result, error, error_code, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, tr := range rec.Trace {
		id, err := newID()
		if err != nil {
			return err
		}
		args, err := marshalNullable(tr.Arguments)
		if err != nil {
			return fmt.Errorf("encode %s arguments: %w", tr.Name, err)
		}
		var result sql.NullString
		if !tr.Failed() {
			if result, err = marshalNullable(tr.Output); err != nil {
				return fmt.Errorf("encode %s result: %w", tr.Name, err)
			}
		}
		_, err = tx.ExecContext(ctx, insertCall,
			id, ts, rec.RequestID, rec.ConversationID, tr.Round, i, tr.Name,
			args, result, tr.Error, tr.ErrorCode, tr.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert tool call: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit transaction: %w", err)
	}
	return nil
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// ToolCalls returns the most recent tool calls, newest first. An empty
// conversationID matches every conversation.
func (s *Store) ToolCalls(ctx context.Context, conversationID string, limit int) ([]ToolCallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, created_at, request_id, conversation_id, round, tool_name,
			COALESCE(arguments, ''), COALESCE(result, ''), COALESCE(error, ''), COALESCE(error_code, ''), duration_ms
		 FROM tool_calls`
	var args []any
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	var out []ToolCallRecord
	for rows.Next() {
		var (
			rec          ToolCallRecord
			ts           string
			args, result string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.RequestID, &rec.ConversationID, &rec.Round, &rec.ToolName,
			&args, &result, &rec.Error, &rec.ErrorCode, &rec.DurationMS); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		rec.Timestamp, _ = time.Parse(timeLayout, ts)
		if args != "" {
			rec.Arguments = json.RawMessage(args)
		}
		if result != "" {
			rec.Result = json.RawMessage(result)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TierCounts returns per tier and reason turn counts within
// [start, end), most frequent first.
func (s *Store) TierCounts(ctx context.Context, start, end time.Time) ([]TierCount, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT tier, reason, COUNT(*)
		 FROM turns
		 WHERE created_at >= ? AND created_at < ?
		 GROUP BY tier, reason
		 ORDER BY COUNT(*) DESC, tier, reason`),
		start.UTC().Format(timeLayout),
		end.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query tier counts: %w", err)
	}
	defer rows.Close()

	var out []TierCount
	for rows.Next() {
		var tc TierCount
		if err := rows.Scan(&tc.Tier, &tc.Reason, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tier count: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
