package spinstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// --------- Data models ---------

// Session is one table session: seed commitment, starting bankroll, and
// aggregates over its recorded spins.
type Session struct {
	ID               uuid.UUID `json:"id"`
	ServerSeedHashed string    `json:"server_seed_hashed"`
	ClientSeed       string    `json:"client_seed"`
	StartedAt        time.Time `json:"started_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	Notes            string    `json:"notes"`
	StartingBankroll int64     `json:"starting_bankroll"`
	TotalSpins       int64     `json:"total_spins"`
	TotalWagered     int64     `json:"total_wagered"`
	TotalPaid        int64     `json:"total_paid"`
}

// Spin is one recorded wheel spin.
type Spin struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Nonce     int64     `json:"nonce"`
	Pocket    int       `json:"pocket"`
	Bet       int64     `json:"bet"`
	Payout    int64     `json:"payout"`
	Won       bool      `json:"won"`
	PlayedAt  time.Time `json:"played_at"`
}

// --------- Store ---------

type Store struct {
	db *sql.DB
}

// MemoryDSN keeps the whole database in process memory; nothing survives a
// restart. cache=shared lets the single connection pool see one database.
const MemoryDSN = "file:roulette?mode=memory&cache=shared"

// New opens/creates a SQLite database at the given DSN path and runs
// migrations. Pass MemoryDSN for an ephemeral store.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&cache=shared", dbPath)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// --------- Migrations ---------

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			server_seed_hashed TEXT NOT NULL,
			client_seed TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP NOT NULL,
			notes TEXT DEFAULT '',
			starting_bankroll INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen_at DESC);`,

		`CREATE TABLE IF NOT EXISTS spins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			pocket INTEGER NOT NULL,
			bet INTEGER NOT NULL,
			payout INTEGER NOT NULL,
			won INTEGER NOT NULL,
			played_at TIMESTAMP NOT NULL,
			UNIQUE(session_id, nonce),
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_spins_session_nonce ON spins(session_id, nonce);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// --------- Sessions ---------

// CreateSession inserts a new session row and returns its id.
func (s *Store) CreateSession(ctx context.Context, serverSeedHashed, clientSeed string, startingBankroll int64) (uuid.UUID, error) {
	now := time.Now().UTC()
	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, server_seed_hashed, client_seed, started_at, last_seen_at, notes, starting_bankroll)
		 VALUES(?, ?, ?, ?, ?, '', ?)`,
		id.String(), serverSeedHashed, clientSeed, now, now, startingBankroll)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// UpdateNotes sets or clears notes on a session.
func (s *Store) UpdateNotes(ctx context.Context, sessionID uuid.UUID, notes string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET notes=? WHERE id=?`, notes, sessionID.String())
	return err
}

// GetSession returns session metadata including aggregates.
func (s *Store) GetSession(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	var sess Session
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.server_seed_hashed, s.client_seed, s.started_at, s.last_seen_at, s.notes, s.starting_bankroll,
		       COALESCE(p.cnt, 0), COALESCE(p.wagered, 0), COALESCE(p.paid, 0)
		FROM sessions s
		LEFT JOIN (
			SELECT session_id, COUNT(*) AS cnt, SUM(bet) AS wagered, SUM(payout) AS paid
			FROM spins WHERE session_id=? ) p
		ON s.id = p.session_id
		WHERE s.id=?`,
		sessionID.String(), sessionID.String(),
	)
	err := row.Scan(&sess.ID, &sess.ServerSeedHashed, &sess.ClientSeed, &sess.StartedAt, &sess.LastSeenAt,
		&sess.Notes, &sess.StartingBankroll, &sess.TotalSpins, &sess.TotalWagered, &sess.TotalPaid)
	return sess, err
}

// ListSessions returns sessions ordered by last_seen_at desc with aggregates.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.server_seed_hashed, s.client_seed, s.started_at, s.last_seen_at, s.notes, s.starting_bankroll,
		       COALESCE(p.cnt, 0) AS total_spins,
		       COALESCE(p.wagered, 0) AS total_wagered,
		       COALESCE(p.paid, 0) AS total_paid
		FROM sessions s
		LEFT JOIN (
			SELECT session_id, COUNT(*) AS cnt, SUM(bet) AS wagered, SUM(payout) AS paid
			FROM spins GROUP BY session_id
		) p ON s.id = p.session_id
		ORDER BY s.last_seen_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ServerSeedHashed, &sess.ClientSeed, &sess.StartedAt, &sess.LastSeenAt,
			&sess.Notes, &sess.StartingBankroll, &sess.TotalSpins, &sess.TotalWagered, &sess.TotalPaid); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and all related spins.
func (s *Store) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM spins WHERE session_id=?`, sessionID.String()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, sessionID.String())
	return err
}

// --------- Spins ---------

// RecordSpin stores a resolved spin under the session. Idempotent on
// (session_id, nonce).
func (s *Store) RecordSpin(ctx context.Context, sessionID uuid.UUID, spin Spin) error {
	if spin.Nonce <= 0 {
		return errors.New("invalid nonce")
	}
	now := time.Now().UTC()
	playedAt := spin.PlayedAt
	if playedAt.IsZero() {
		playedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spins(session_id, nonce, pocket, bet, payout, won, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID.String(), spin.Nonce, spin.Pocket, spin.Bet, spin.Payout, boolToInt(spin.Won), playedAt.UTC())
	if err != nil {
		if isConstraintErr(err) {
			// Duplicate spin for this session; already recorded.
			return nil
		}
		return err
	}

	// touch last_seen_at
	_, _ = s.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at=? WHERE id=?`, now, sessionID.String())
	return nil
}

// ListSpins returns paginated spins for a session. order can be "asc" or
// "desc" by nonce.
func (s *Store) ListSpins(ctx context.Context, sessionID uuid.UUID, order string, limit, offset int) ([]Spin, int64, error) {
	if limit <= 0 || limit > 10000 {
		limit = 500
	}
	if order != "desc" {
		order = "asc"
	}
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM spins WHERE session_id=?`, sessionID.String()).Scan(&total); err != nil {
		return nil, 0, err
	}
	pageQ := fmt.Sprintf(`
		SELECT id, session_id, nonce, pocket, bet, payout, won, played_at
		FROM spins
		WHERE session_id=?
		ORDER BY nonce %s
		LIMIT ? OFFSET ?`, strings.ToUpper(order))
	rows, err := s.db.QueryContext(ctx, pageQ, sessionID.String(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := scanSpins(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, rows.Err()
}

// TailSpins returns spins strictly greater than lastID for a session,
// ordered by id asc, limited.
func (s *Store) TailSpins(ctx context.Context, sessionID uuid.UUID, lastID int64, limit int) ([]Spin, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, nonce, pocket, bet, payout, won, played_at
		FROM spins
		WHERE session_id=? AND id > ?
		ORDER BY id ASC
		LIMIT ?`, sessionID.String(), lastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanSpins(rows)
	if err != nil {
		return nil, err
	}
	return out, rows.Err()
}

// ExportCSV writes all spins for a session to the writer as CSV (header
// included), ordered by nonce.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, sessionID uuid.UUID) error {
	if _, err := io.WriteString(w, "id,nonce,pocket,bet,payout,won,played_at\n"); err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nonce, pocket, bet, payout, won, played_at
		FROM spins WHERE session_id=? ORDER BY nonce ASC`, sessionID.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	var (
		id, n, bet, pay int64
		pocket, won     int
		ts              time.Time
	)
	for rows.Next() {
		if err := rows.Scan(&id, &n, &pocket, &bet, &pay, &won, &ts); err != nil {
			return err
		}
		line := fmt.Sprintf("%d,%d,%d,%d,%d,%d,%s\n",
			id, n, pocket, bet, pay, won, ts.UTC().Format(time.RFC3339Nano))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return rows.Err()
}

// --------- helpers ---------

func scanSpins(rows *sql.Rows) ([]Spin, error) {
	var out []Spin
	for rows.Next() {
		var sp Spin
		var won int
		if err := rows.Scan(&sp.ID, &sp.SessionID, &sp.Nonce, &sp.Pocket, &sp.Bet, &sp.Payout, &won, &sp.PlayedAt); err != nil {
			return nil, err
		}
		sp.Won = won != 0
		out = append(out, sp)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isConstraintErr(err error) bool {
	// modernc sqlite returns errors with messages containing "constraint
	// failed" or "UNIQUE constraint failed". Use substring match.
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "unique constraint")
}
