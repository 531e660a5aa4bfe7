package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// OfflineAfter is how long an animal may go without a status update before
// it is reported offline.
const OfflineAfter = time.Minute

type DB struct {
	SQL  *sql.DB
	Path string
}

// Animal is the last known status of one animal on one agent.
type Animal struct {
	ID        int64     `json:"id"`
	AgentID   string    `json:"agent_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	InShed    bool      `json:"in_shed"`
	Hunger    int       `json:"hunger"`
	JobStatus string    `json:"job_status,omitempty"`
	WorldTick int64     `json:"world_tick"`
	Online    bool      `json:"online"`
	LastSeen  time.Time `json:"last_seen"`
}

// Save is one stored snapshot. Payload holds the agent's save message as
// received and is left out of listings.
type Save struct {
	ID         int64           `json:"id"`
	AgentID    string          `json:"agent_id"`
	AnimalID   string          `json:"animal_id"`
	RootStatus string          `json:"root_status"`
	WorldTick  int64           `json:"world_tick"`
	SavedAt    time.Time       `json:"saved_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// CommandRecord is an audit entry for a command sent to an agent.
type CommandRecord struct {
	ID          int64     `json:"id"`
	CommandID   string    `json:"command_id"`
	Type        string    `json:"type"`
	AgentID     string    `json:"agent_id"`
	AnimalID    string    `json:"animal_id"`
	PayloadJSON string    `json:"payload_json"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportTarget is the SFTP host saves are exported to.
type ExportTarget struct {
	Address  string `json:"address"`
	User     string `json:"user"`
	SSHKey   string `json:"ssh_key,omitempty"`
	Password string `json:"password,omitempty"`
	Dir      string `json:"dir"`
}

const exportTargetKey = "export_target"

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	// One connection avoids SQLITE_BUSY between the MQTT ingest and HTTP handlers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &DB{SQL: db, Path: path}, nil
}

func (d *DB) Close() error {
	return d.SQL.Close()
}

func migrate(db *sql.DB) error {
	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS animals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT,
			x INTEGER,
			y INTEGER,
			in_shed INTEGER,
			hunger INTEGER,
			job_status TEXT,
			world_tick INTEGER,
			last_seen TIMESTAMP,
			UNIQUE(agent_id, name)
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			animal_id TEXT NOT NULL,
			root_status TEXT,
			world_tick INTEGER,
			saved_at TIMESTAMP,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS saves_by_animal ON saves (agent_id, animal_id, saved_at);`,
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command_id TEXT NOT NULL,
			type TEXT NOT NULL,
			agent_id TEXT,
			animal_id TEXT,
			payload_json TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (d *DB) UpsertAnimalStatus(ctx context.Context, a Animal) error {
	if a.AgentID == "" || a.Name == "" {
		return errors.New("agent id and animal name required")
	}
	if a.LastSeen.IsZero() {
		a.LastSeen = time.Now().UTC()
	}
	stmt, err := d.SQL.PrepareContext(ctx, `INSERT INTO animals (agent_id, name, status, x, y, in_shed, hunger, job_status, world_tick, last_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id, name) DO UPDATE SET
	status=excluded.status,
	x=excluded.x,
	y=excluded.y,
	in_shed=excluded.in_shed,
	hunger=excluded.hunger,
	job_status=excluded.job_status,
	world_tick=excluded.world_tick,
	last_seen=excluded.last_seen`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	_, err = stmt.ExecContext(ctx, a.AgentID, a.Name, a.Status, a.X, a.Y, a.InShed, a.Hunger, a.JobStatus, a.WorldTick, a.LastSeen)
	return err
}

const animalColumns = `id, agent_id, name, status, x, y, in_shed, hunger, job_status, world_tick, last_seen`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnimal(row rowScanner) (Animal, error) {
	var a Animal
	var status, jobStatus sql.NullString
	var lastSeen sql.NullTime
	if err := row.Scan(&a.ID, &a.AgentID, &a.Name, &status, &a.X, &a.Y, &a.InShed, &a.Hunger, &jobStatus, &a.WorldTick, &lastSeen); err != nil {
		return Animal{}, err
	}
	a.Status = status.String
	a.JobStatus = jobStatus.String
	if lastSeen.Valid {
		a.LastSeen = lastSeen.Time
		a.Online = time.Since(a.LastSeen) <= OfflineAfter
	}
	return a, nil
}

// ListAnimals returns every known animal, or only those of agentID when set.
func (d *DB) ListAnimals(ctx context.Context, agentID string) ([]Animal, error) {
	query := `SELECT ` + animalColumns + ` FROM animals`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY agent_id, name`
	rows, err := d.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	animals := []Animal{}
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		animals = append(animals, a)
	}
	return animals, rows.Err()
}

// GetAnimal returns sql.ErrNoRows when the animal is unknown.
func (d *DB) GetAnimal(ctx context.Context, agentID, name string) (Animal, error) {
	stmt, err := d.SQL.PrepareContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE agent_id = ? AND name = ?`)
	if err != nil {
		return Animal{}, err
	}
	defer stmt.Close()
	return scanAnimal(stmt.QueryRowContext(ctx, agentID, name))
}

// SaveState stores a snapshot and returns its id.
func (d *DB) SaveState(ctx context.Context, s Save) (int64, error) {
	if s.AgentID == "" || s.AnimalID == "" {
		return 0, errors.New("agent id and animal id required")
	}
	if !json.Valid(s.Payload) {
		return 0, errors.New("save payload is not valid JSON")
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	stmt, err := d.SQL.PrepareContext(ctx, `INSERT INTO saves (agent_id, animal_id, root_status, world_tick, saved_at, payload) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	res, err := stmt.ExecContext(ctx, s.AgentID, s.AnimalID, s.RootStatus, s.WorldTick, s.SavedAt, string(s.Payload))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanSave(row rowScanner, withPayload bool) (Save, error) {
	var s Save
	var rootStatus sql.NullString
	var savedAt sql.NullTime
	dest := []any{&s.ID, &s.AgentID, &s.AnimalID, &rootStatus, &s.WorldTick, &savedAt}
	var payload string
	if withPayload {
		dest = append(dest, &payload)
	}
	if err := row.Scan(dest...); err != nil {
		return Save{}, err
	}
	s.RootStatus = rootStatus.String
	if savedAt.Valid {
		s.SavedAt = savedAt.Time
	}
	if withPayload {
		s.Payload = json.RawMessage(payload)
	}
	return s, nil
}

const saveColumns = `id, agent_id, animal_id, root_status, world_tick, saved_at`

// GetSave returns sql.ErrNoRows when there is no such save.
func (d *DB) GetSave(ctx context.Context, id int64) (Save, error) {
	stmt, err := d.SQL.PrepareContext(ctx, `SELECT `+saveColumns+`, payload FROM saves WHERE id = ?`)
	if err != nil {
		return Save{}, err
	}
	defer stmt.Close()
	return scanSave(stmt.QueryRowContext(ctx, id), true)
}

// LatestSave returns the newest save of an animal, or sql.ErrNoRows.
func (d *DB) LatestSave(ctx context.Context, agentID, animalID string) (Save, error) {
	stmt, err := d.SQL.PrepareContext(ctx, `SELECT `+saveColumns+`, payload FROM saves
WHERE agent_id = ? AND animal_id = ?
ORDER BY saved_at DESC, id DESC LIMIT 1`)
	if err != nil {
		return Save{}, err
	}
	defer stmt.Close()
	return scanSave(stmt.QueryRowContext(ctx, agentID, animalID), true)
}

// ListSaves lists saves newest first without payloads. Empty filters match
// everything.
func (d *DB) ListSaves(ctx context.Context, agentID, animalID string) ([]Save, error) {
	query := `SELECT ` + saveColumns + ` FROM saves WHERE 1=1`
	var args []any
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	if animalID != "" {
		query += ` AND animal_id = ?`
		args = append(args, animalID)
	}
	query += ` ORDER BY saved_at DESC, id DESC`
	rows, err := d.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	saves := []Save{}
	for rows.Next() {
		s, err := scanSave(rows, false)
		if err != nil {
			return nil, err
		}
		saves = append(saves, s)
	}
	return saves, rows.Err()
}

// DeleteSave returns sql.ErrNoRows when nothing was deleted.
func (d *DB) DeleteSave(ctx context.Context, id int64) error {
	res, err := d.SQL.ExecContext(ctx, `DELETE FROM saves WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PruneSaves keeps only the newest keep saves of an animal.
func (d *DB) PruneSaves(ctx context.Context, agentID, animalID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := d.SQL.ExecContext(ctx, `DELETE FROM saves WHERE agent_id = ? AND animal_id = ? AND id NOT IN (
	SELECT id FROM saves WHERE agent_id = ? AND animal_id = ? ORDER BY saved_at DESC, id DESC LIMIT ?
)`, agentID, animalID, agentID, animalID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) CreateCommand(ctx context.Context, c CommandRecord) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	stmt, err := d.SQL.PrepareContext(ctx, `INSERT INTO commands (command_id, type, agent_id, animal_id, payload_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	res, err := stmt.ExecContext(ctx, c.CommandID, c.Type, c.AgentID, c.AnimalID, c.PayloadJSON, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListCommands returns commands newest first, optionally for one agent.
func (d *DB) ListCommands(ctx context.Context, agentID string) ([]CommandRecord, error) {
	query := `SELECT id, command_id, type, agent_id, animal_id, payload_json, created_at FROM commands`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := d.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cmds := []CommandRecord{}
	for rows.Next() {
		var c CommandRecord
		var agent, animal, payload sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.CommandID, &c.Type, &agent, &animal, &payload, &createdAt); err != nil {
			return nil, err
		}
		c.AgentID = agent.String
		c.AnimalID = animal.String
		c.PayloadJSON = payload.String
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// GetExportTarget returns nil when no target has been configured.
func (d *DB) GetExportTarget(ctx context.Context) (*ExportTarget, error) {
	var val sql.NullString
	err := d.SQL.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, exportTargetKey).Scan(&val)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !val.Valid || val.String == "" {
		return nil, nil
	}
	var t ExportTarget
	if err := json.Unmarshal([]byte(val.String), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DB) SaveExportTarget(ctx context.Context, t ExportTarget) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = d.SQL.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, exportTargetKey, string(data))
	return err
}
