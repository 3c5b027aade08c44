// Package store provides sqlite-backed durable persistence: a blob table
// per mutable entity kind, a globals table for the tick counter, and
// append-only event tables for reports, messages and score history.
// Snapshots are written as a single transaction so a save is all-or-nothing
// from the World's perspective.
package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pierrec/lz4/v4"

	"ownworld/pkg/types"
)

// Store wraps a *sql.DB opened in WAL mode and serializes every write
// through a single mutex, following the teacher's single-writer pattern.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	lz4Pool sync.Pool

	errLog *log.Logger
}

// Open opens (creating if absent) the sqlite database at path, sets WAL
// mode and a busy timeout, and ensures the schema exists.
func Open(path string, errLog *log.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite + single-writer policy: one connection avoids interleaved writers

	s := &Store{db: db, errLog: errLog}
	s.lz4Pool.New = func() any { return new(bytes.Buffer) }

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS agents (id TEXT PRIMARY KEY, data BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS planets (id TEXT PRIMARY KEY, data BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS fleets (id TEXT PRIMARY KEY, data BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS debris_fields (id TEXT PRIMARY KEY, data BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS systems (id TEXT PRIMARY KEY, data BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS globals (key TEXT PRIMARY KEY, value TEXT NOT NULL);

CREATE TABLE IF NOT EXISTS battle_reports (
	id TEXT PRIMARY KEY, attacker_id TEXT NOT NULL, defender_id TEXT,
	created_at INTEGER NOT NULL, data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_battle_reports_attacker ON battle_reports(attacker_id, created_at);
CREATE INDEX IF NOT EXISTS idx_battle_reports_defender ON battle_reports(defender_id, created_at);

CREATE TABLE IF NOT EXISTS fleet_reports (
	id TEXT PRIMARY KEY, owner_id TEXT NOT NULL, kind TEXT NOT NULL,
	created_at INTEGER NOT NULL, data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fleet_reports_owner ON fleet_reports(owner_id, created_at);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY, recipient_id TEXT NOT NULL, created_at INTEGER NOT NULL, data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, created_at);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY, channel TEXT NOT NULL, created_at INTEGER NOT NULL, data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_channel ON chat_messages(channel, created_at);

CREATE TABLE IF NOT EXISTS score_history (
	id TEXT PRIMARY KEY, agent_id TEXT NOT NULL, created_at INTEGER NOT NULL, data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_score_history_agent ON score_history(agent_id, created_at);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) compress(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	buf := s.lz4Pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer s.lz4Pool.Put(buf)

	w := lz4.NewWriter(buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(blob []byte, v any) error {
	r := lz4.NewReader(bytes.NewReader(blob))
	dec := json.NewDecoder(r)
	return dec.Decode(v)
}

// Snapshot is the shape handed to Save; store.go never imports pkg/world to
// avoid a dependency cycle, so callers adapt world.Snapshot into this.
type Snapshot struct {
	Tick    int64
	Agents  []*types.Agent
	Planets []*types.Planet
	Fleets  []*types.Fleet
	Debris  []*types.DebrisField
	Systems []*types.StarSystem
}

// Loaded is the result of Load: all entities plus the persisted tick.
type Loaded struct {
	Tick    int64
	Agents  []*types.Agent
	Planets []*types.Planet
	Fleets  []*types.Fleet
	Debris  []*types.DebrisField
	Systems []*types.StarSystem
}

// Load reads every entity table plus the tick counter. Rows that fail to
// decompress/decode are skipped with a logged warning rather than aborting
// the whole load, except that a totally unreadable database is fatal to the
// caller (boot sequence decides that policy, not this package).
func (s *Store) Load() (Loaded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Loaded

	if err := s.loadRows("agents", func(blob []byte) error {
		var a types.Agent
		if err := decompress(blob, &a); err != nil {
			return err
		}
		migrateAgent(&a)
		out.Agents = append(out.Agents, &a)
		return nil
	}); err != nil {
		return out, err
	}

	if err := s.loadRows("planets", func(blob []byte) error {
		var p types.Planet
		if err := decompress(blob, &p); err != nil {
			return err
		}
		out.Planets = append(out.Planets, &p)
		return nil
	}); err != nil {
		return out, err
	}

	if err := s.loadRows("fleets", func(blob []byte) error {
		var f types.Fleet
		if err := decompress(blob, &f); err != nil {
			return err
		}
		out.Fleets = append(out.Fleets, &f)
		return nil
	}); err != nil {
		return out, err
	}

	if err := s.loadRows("debris_fields", func(blob []byte) error {
		var d types.DebrisField
		if err := decompress(blob, &d); err != nil {
			return err
		}
		out.Debris = append(out.Debris, &d)
		return nil
	}); err != nil {
		return out, err
	}

	if err := s.loadRows("systems", func(blob []byte) error {
		var sys types.StarSystem
		if err := decompress(blob, &sys); err != nil {
			return err
		}
		out.Systems = append(out.Systems, &sys)
		return nil
	}); err != nil {
		return out, err
	}

	var tickStr string
	err := s.db.QueryRow(`SELECT value FROM globals WHERE key = 'tick'`).Scan(&tickStr)
	switch {
	case err == sql.ErrNoRows:
		out.Tick = 0
	case err != nil:
		return out, fmt.Errorf("store: load tick: %w", err)
	default:
		fmt.Sscanf(tickStr, "%d", &out.Tick)
	}

	return out, nil
}

func (s *Store) loadRows(table string, handle func([]byte) error) error {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT data FROM %s`, table))
	if err != nil {
		return fmt.Errorf("store: query %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return fmt.Errorf("store: scan %s: %w", table, err)
		}
		if err := handle(blob); err != nil {
			if s.errLog != nil {
				s.errLog.Printf("store: skipping corrupt row in %s: %v", table, err)
			}
			continue
		}
	}
	return rows.Err()
}

// migrateAgent coerces legacy shapes: a nil map becomes an empty map, and
// premium fields absent from an older snapshot default to zero values.
func migrateAgent(a *types.Agent) {
	if a.Officers == nil {
		a.Officers = map[string]types.Officer{}
	}
	if a.Boosters == nil {
		a.Boosters = map[string]types.Booster{}
	}
	if a.Tech == nil {
		a.Tech = map[string]int{}
	}
	if len(a.SpyReports) > types.SpyReportCapacity {
		a.SpyReports = a.SpyReports[len(a.SpyReports)-types.SpyReportCapacity:]
	}
	if len(a.DecisionLog) > types.DecisionLogCapacity {
		a.DecisionLog = a.DecisionLog[len(a.DecisionLog)-types.DecisionLogCapacity:]
	}
}

// Save persists a full snapshot in one transaction: agents and planets are
// upserted, fleets and debris are fully reconciled (rows absent from the
// snapshot are deleted), and the tick counter is updated. Save never panics
// on a write error; callers are expected to log the returned error and
// retry on the next debounce window.
func (s *Store) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	for _, a := range snap.Agents {
		blob, err := s.compress(a)
		if err != nil {
			return fmt.Errorf("store: encode agent %s: %w", a.ID, err)
		}
		if _, err := tx.Exec(`INSERT INTO agents(id, data) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data`, a.ID, blob); err != nil {
			return fmt.Errorf("store: upsert agent %s: %w", a.ID, err)
		}
	}

	for _, p := range snap.Planets {
		blob, err := s.compress(p)
		if err != nil {
			return fmt.Errorf("store: encode planet %s: %w", p.ID.String(), err)
		}
		if _, err := tx.Exec(`INSERT INTO planets(id, data) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data`, p.ID.String(), blob); err != nil {
			return fmt.Errorf("store: upsert planet %s: %w", p.ID.String(), err)
		}
	}

	for _, sys := range snap.Systems {
		blob, err := s.compress(sys)
		if err != nil {
			return fmt.Errorf("store: encode system %s: %w", sys.ID.String(), err)
		}
		if _, err := tx.Exec(`INSERT INTO systems(id, data) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data`, sys.ID.String(), blob); err != nil {
			return fmt.Errorf("store: upsert system %s: %w", sys.ID.String(), err)
		}
	}

	if err := reconcile(tx, "fleets", snap.Fleets, func(f *types.Fleet) (string, any) { return f.ID, f }, s); err != nil {
		return err
	}
	if err := reconcile(tx, "debris_fields", snap.Debris, func(d *types.DebrisField) (string, any) { return d.Position.String(), d }, s); err != nil {
		return err
	}

	if _, err := tx.Exec(`INSERT INTO globals(key, value) VALUES ('tick', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprintf("%d", snap.Tick)); err != nil {
		return fmt.Errorf("store: upsert tick: %w", err)
	}

	return tx.Commit()
}

// reconcile performs full-table reconciliation for fleets and debris_fields:
// every live id is upserted, and every stored id absent from `live` is
// deleted, matching the spec's "fleets and debris absent from the live set
// are deleted" rule.
func reconcile[T any](tx *sql.Tx, table string, live []T, keyOf func(T) (string, any), s *Store) error {
	liveIDs := make(map[string]bool, len(live))
	for _, item := range live {
		id, payload := keyOf(item)
		liveIDs[id] = true
		blob, err := s.compress(payload)
		if err != nil {
			return fmt.Errorf("store: encode %s %s: %w", table, id, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s(id, data) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data`, table), id, blob); err != nil {
			return fmt.Errorf("store: upsert %s %s: %w", table, id, err)
		}
	}

	rows, err := tx.Query(fmt.Sprintf(`SELECT id FROM %s`, table))
	if err != nil {
		return fmt.Errorf("store: scan existing %s: %w", table, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if !liveIDs[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
			return fmt.Errorf("store: delete stale %s %s: %w", table, id, err)
		}
	}
	return nil
}

// --- append-only event tables ---

// AppendBattleReport inserts a battle report row. defenderID may be empty
// when the defending side was unowned debris-only combat (not currently
// reachable, but kept nullable per the schema's stated shape).
func (s *Store) AppendBattleReport(id, attackerID, defenderID string, at time.Time, payload any) error {
	return s.appendEvent("battle_reports", id, at, payload, "attacker_id", attackerID, "defender_id", defenderID)
}

func (s *Store) AppendFleetReport(id, ownerID, kind string, at time.Time, payload any) error {
	return s.appendEvent("fleet_reports", id, at, payload, "owner_id", ownerID, "kind", kind)
}

func (s *Store) AppendMessage(id, recipientID string, at time.Time, payload any) error {
	return s.appendEvent("messages", id, at, payload, "recipient_id", recipientID)
}

func (s *Store) AppendChatMessage(id, channel string, at time.Time, payload any) error {
	return s.appendEvent("chat_messages", id, at, payload, "channel", channel)
}

func (s *Store) AppendScoreSnapshot(id, agentID string, at time.Time, payload any) error {
	return s.appendEvent("score_history", id, at, payload, "agent_id", agentID)
}

func (s *Store) appendEvent(table, id string, at time.Time, payload any, extraCols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.compress(payload)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", table, err)
	}

	cols := []string{"id"}
	vals := []any{id}
	for i := 0; i+1 < len(extraCols); i += 2 {
		cols = append(cols, extraCols[i])
		vals = append(vals, extraCols[i+1])
	}
	cols = append(cols, "created_at", "data")
	vals = append(vals, at.UnixNano(), blob)

	placeholders := ""
	colList := ""
	for i, c := range cols {
		if i > 0 {
			placeholders += ", "
			colList += ", "
		}
		placeholders += "?"
		colList += c
	}

	_, err = s.db.Exec(fmt.Sprintf(`INSERT INTO %s(%s) VALUES (%s)`, table, colList, placeholders), vals...)
	if err != nil {
		return fmt.Errorf("store: append %s: %w", table, err)
	}
	return nil
}

// ListBattleReportsFor returns battle reports where the agent was either
// side, most recent first, bounded by limit.
func (s *Store) ListBattleReportsFor(agentID string, limit int) ([][]byte, error) {
	rows, err := s.db.Query(`SELECT data FROM battle_reports WHERE attacker_id = ? OR defender_id = ?
		ORDER BY created_at DESC LIMIT ?`, agentID, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		raw, err := inflate(blob)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

func inflate(blob []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(blob))
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
