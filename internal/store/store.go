package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
)

// ErrNotFound is returned by Load when no snapshot exists for a session.
var ErrNotFound = errors.New("store: session not found")

// Record is a persisted session snapshot.
type Record struct {
	SessionID string
	TreeID    string
	Snapshot  skill.Snapshot
	UpdatedAt time.Time
}

// Summary is a session row without its nodes.
type Summary struct {
	SessionID   string    `json:"session_id"`
	TreeID      string    `json:"tree_id"`
	TotalPoints int       `json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DB wraps a SQLite database holding session snapshots.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// ":memory:" gives a private in-memory database.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh database leaves version at 0.
	_ = d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS sessions (
				id           TEXT PRIMARY KEY,
				tree_id      TEXT NOT NULL DEFAULT '',
				total_points INTEGER NOT NULL DEFAULT 0,
				updated_at   TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS session_nodes (
				session_id      TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				node_id         TEXT NOT NULL,
				seq             INTEGER NOT NULL,
				name            TEXT NOT NULL,
				description     TEXT NOT NULL,
				icon            TEXT NOT NULL,
				point_cap       INTEGER NOT NULL,
				points_required INTEGER NOT NULL,
				points_given    INTEGER NOT NULL,
				maxed           INTEGER NOT NULL,
				PRIMARY KEY (session_id, node_id)
			);

			CREATE TABLE IF NOT EXISTS session_edges (
				session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				parent_id  TEXT NOT NULL,
				child_id   TEXT NOT NULL,
				seq        INTEGER NOT NULL,
				PRIMARY KEY (session_id, parent_id, child_id)
			);
			CREATE INDEX IF NOT EXISTS idx_session_nodes_seq ON session_nodes(session_id, seq);
			CREATE INDEX IF NOT EXISTS idx_session_edges_seq ON session_edges(session_id, seq);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}

// Save replaces the stored snapshot for rec.SessionID in one transaction.
func (d *DB) Save(ctx context.Context, rec Record) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %s: begin: %w", rec.SessionID, err)
	}
	defer tx.Rollback()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, tree_id, total_points, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tree_id = excluded.tree_id,
			total_points = excluded.total_points,
			updated_at = excluded.updated_at`,
		rec.SessionID, rec.TreeID, rec.Snapshot.TotalPointsGiven, rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save %s: session row: %w", rec.SessionID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_nodes WHERE session_id = ?", rec.SessionID); err != nil {
		return fmt.Errorf("save %s: clear nodes: %w", rec.SessionID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_edges WHERE session_id = ?", rec.SessionID); err != nil {
		return fmt.Errorf("save %s: clear edges: %w", rec.SessionID, err)
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_nodes
			(session_id, node_id, seq, name, description, icon, point_cap, points_required, points_given, maxed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("save %s: prepare nodes: %w", rec.SessionID, err)
	}
	defer nodeStmt.Close()
	for i, n := range rec.Snapshot.Nodes {
		a := n.Attributes
		if _, err := nodeStmt.ExecContext(ctx,
			rec.SessionID, string(n.ID), i, a.Name, a.Description, a.Icon,
			a.PointCap, a.PointsRequired, n.PointsGiven, n.Maxed,
		); err != nil {
			return fmt.Errorf("save %s: node %s: %w", rec.SessionID, n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO session_edges (session_id, parent_id, child_id, seq) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("save %s: prepare edges: %w", rec.SessionID, err)
	}
	defer edgeStmt.Close()
	for i, e := range rec.Snapshot.Edges {
		if _, err := edgeStmt.ExecContext(ctx, rec.SessionID, string(e.Parent), string(e.Child), i); err != nil {
			return fmt.Errorf("save %s: edge %s→%s: %w", rec.SessionID, e.Parent, e.Child, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s: commit: %w", rec.SessionID, err)
	}
	return nil
}

// Load returns the stored snapshot for a session.
func (d *DB) Load(ctx context.Context, sessionID string) (*Record, error) {
	rec := &Record{SessionID: sessionID}
	var updated string
	err := d.sql.QueryRowContext(ctx,
		"SELECT tree_id, total_points, updated_at FROM sessions WHERE id = ?", sessionID,
	).Scan(&rec.TreeID, &rec.Snapshot.TotalPointsGiven, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sessionID, err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	rows, err := d.sql.QueryContext(ctx, `
		SELECT node_id, name, description, icon, point_cap, points_required, points_given, maxed
		  FROM session_nodes
		 WHERE session_id = ?
		 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load %s: nodes: %w", sessionID, err)
	}
	for rows.Next() {
		var (
			n  skill.NodeSnapshot
			id string
		)
		if err := rows.Scan(&id, &n.Attributes.Name, &n.Attributes.Description, &n.Attributes.Icon,
			&n.Attributes.PointCap, &n.Attributes.PointsRequired, &n.PointsGiven, &n.Maxed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load %s: scan node: %w", sessionID, err)
		}
		n.ID = skill.NodeID(id)
		rec.Snapshot.Nodes = append(rec.Snapshot.Nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: nodes: %w", sessionID, err)
	}

	rows, err = d.sql.QueryContext(ctx,
		"SELECT parent_id, child_id FROM session_edges WHERE session_id = ? ORDER BY seq", sessionID)
	if err != nil {
		return nil, fmt.Errorf("load %s: edges: %w", sessionID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var parent, child string
		if err := rows.Scan(&parent, &child); err != nil {
			return nil, fmt.Errorf("load %s: scan edge: %w", sessionID, err)
		}
		rec.Snapshot.Edges = append(rec.Snapshot.Edges, skill.Edge{Parent: skill.NodeID(parent), Child: skill.NodeID(child)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: edges: %w", sessionID, err)
	}
	return rec, nil
}

// Delete removes a session and its nodes and edges. Deleting an unknown
// session is not an error.
func (d *DB) Delete(ctx context.Context, sessionID string) error {
	if _, err := d.sql.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("delete %s: %w", sessionID, err)
	}
	return nil
}

// List returns all stored sessions, most recently updated first.
func (d *DB) List(ctx context.Context) ([]Summary, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, tree_id, total_points, updated_at FROM sessions ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var (
			s       Summary
			updated string
		)
		if err := rows.Scan(&s.SessionID, &s.TreeID, &s.TotalPoints, &updated); err != nil {
			return nil, fmt.Errorf("list sessions: scan: %w", err)
		}
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, s)
	}
	return out, rows.Err()
}
