package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/duelist/internal/domain/model"
	"github.com/okian/duelist/pkg/metrics"
)

const backendSQLite = "sqlite"

// SQLiteStore persists scores and history in a single SQLite database.
// Multi-identity updates run in one transaction.
type SQLiteStore struct {
	db     *sql.DB
	opts   options
	closed atomic.Bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty db path", ErrStoreUnavailable)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %w", ErrStoreUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, opts: o}
	if err := s.initPragmas(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", s.opts.busyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scores (
			participant_id INTEGER PRIMARY KEY,
			score INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			challenger INTEGER NOT NULL,
			challenger_name TEXT NOT NULL,
			opponent INTEGER NOT NULL,
			opponent_name TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			winner INTEGER,
			points_won INTEGER NOT NULL,
			ts TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: init schema: %w", ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *SQLiteStore) fail(op string, err error) error {
	metrics.RecordStoreError(backendSQLite, op)
	return fmt.Errorf("%w: sqlite %s: %w", ErrStoreUnavailable, op, err)
}

func observe(backend, op string, start time.Time) {
	metrics.RecordStoreLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}

// Get implements ScoreStore.
func (s *SQLiteStore) Get(ctx context.Context, id model.ID) (int, error) {
	if s.closed.Load() {
		return 0, errStoreClosed
	}
	defer observe(backendSQLite, "get", time.Now())

	var v int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM scores WHERE participant_id = ?`, int64(id)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, s.fail("get", err)
	}
	return v, nil
}

// ApplyDelta implements ScoreStore.
func (s *SQLiteStore) ApplyDelta(ctx context.Context, id model.ID, delta int) (Change, error) {
	changes, err := s.Update(ctx, []model.ID{id}, func(cur []int) ([]int, error) {
		return []int{cur[0] + delta}, nil
	})
	if err != nil {
		return Change{}, err
	}
	return changes[0], nil
}

// Update implements ScoreStore.
func (s *SQLiteStore) Update(ctx context.Context, ids []model.ID, fn UpdateFunc) ([]Change, error) {
	if s.closed.Load() {
		return nil, errStoreClosed
	}
	defer observe(backendSQLite, "update", time.Now())

	if _, err := sortedUnique(ids); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, stored, err := selectScores(ctx, tx, ids)
	if err != nil {
		return nil, s.fail("select", err)
	}
	changes, err := apply(ids, current, stored, fn, s.opts.maxScore)
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scores (participant_id, score) VALUES (?, ?)
			 ON CONFLICT(participant_id) DO UPDATE SET score = excluded.score`,
			int64(c.ID), c.New); err != nil {
			return nil, s.fail("upsert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail("commit", err)
	}
	return changes, nil
}

func selectScores(ctx context.Context, tx *sql.Tx, ids []model.ID) ([]int, []bool, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT participant_id, score FROM scores WHERE participant_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[model.ID]int, len(ids))
	for rows.Next() {
		var pid int64
		var v int
		if err := rows.Scan(&pid, &v); err != nil {
			return nil, nil, err
		}
		found[model.ID(pid)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	current := make([]int, len(ids))
	stored := make([]bool, len(ids))
	for i, id := range ids {
		current[i], stored[i] = found[id]
	}
	return current, stored, nil
}

// Scores implements ScoreStore.
func (s *SQLiteStore) Scores(ctx context.Context) (map[model.ID]int, error) {
	if s.closed.Load() {
		return nil, errStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT participant_id, score FROM scores`)
	if err != nil {
		return nil, s.fail("scores", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[model.ID]int)
	for rows.Next() {
		var pid int64
		var v int
		if err := rows.Scan(&pid, &v); err != nil {
			return nil, s.fail("scores", err)
		}
		out[model.ID(pid)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("scores", err)
	}
	return out, nil
}

// Participants implements ScoreStore.
func (s *SQLiteStore) Participants(ctx context.Context) (int, error) {
	return s.count(ctx, "participants", `SELECT COUNT(*) FROM scores`)
}

// Count implements HistoryLog.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx, "count", `SELECT COUNT(*) FROM history`)
}

func (s *SQLiteStore) count(ctx context.Context, op, query string) (int, error) {
	if s.closed.Load() {
		return 0, errStoreClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, s.fail(op, err)
	}
	return n, nil
}

// Append implements HistoryLog.
func (s *SQLiteStore) Append(ctx context.Context, rec model.HistoryRecord) error {
	if s.closed.Load() {
		return errStoreClosed
	}
	defer observe(backendSQLite, "append", time.Now())

	var winner sql.NullInt64
	if rec.Winner != nil {
		winner = sql.NullInt64{Int64: int64(*rec.Winner), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (session_id, challenger, challenger_name, opponent, opponent_name, accepted, winner, points_won, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, int64(rec.Challenger), rec.ChallengerName, int64(rec.Opponent), rec.OpponentName,
		rec.Accepted, winner, rec.PointsWon, rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return s.fail("append", err)
	}
	metrics.RecordHistoryAppend()
	return nil
}

// ReadAll implements HistoryLog.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]model.HistoryRecord, error) {
	if s.closed.Load() {
		return nil, errStoreClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, challenger, challenger_name, opponent, opponent_name, accepted, winner, points_won, ts
		 FROM history ORDER BY seq ASC`)
	if err != nil {
		return nil, s.fail("read_all", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.HistoryRecord
	for rows.Next() {
		var (
			rec                  model.HistoryRecord
			challenger, opponent int64
			winner               sql.NullInt64
			ts                   string
		)
		if err := rows.Scan(&rec.SessionID, &challenger, &rec.ChallengerName, &opponent, &rec.OpponentName,
			&rec.Accepted, &winner, &rec.PointsWon, &ts); err != nil {
			return nil, s.fail("read_all", err)
		}
		rec.Challenger = model.ID(challenger)
		rec.Opponent = model.ID(opponent)
		if winner.Valid {
			w := model.ID(winner.Int64)
			rec.Winner = &w
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, s.fail("read_all", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("read_all", err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
