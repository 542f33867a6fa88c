package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	ServiceID string                 `json:"service_id"`
	ScriptID  *string                `json:"script_id,omitempty"`
}

// ScriptRow is the persisted state of one editing session: the input script,
// its pipeline and the latest rendered output, all as JSON documents.
type ScriptRow struct {
	ID        string          `json:"id"`
	Input     json.RawMessage `json:"input"`
	Pipeline  json.RawMessage `json:"pipeline,omitempty"`
	Rendered  json.RawMessage `json:"rendered,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Client manages the Postgres connection for events and scripts.
type Client struct {
	db        *sql.DB
	serviceID string
}

// New creates a new Postgres client using environment variables.
// Returns nil if connection fails (caller should handle gracefully).
func New(serviceID string) (*Client, error) {
	db, err := sql.Open("postgres", connString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:        db,
		serviceID: serviceID,
	}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func connString() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "strokeforge")
	dbname := getEnv("PGDATABASE", "strokeforge")
	sslmode := getEnv("PGSSLMODE", "disable")
	password := os.Getenv("PGPASSWORD")

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		host, port, user, dbname, sslmode)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			service_id TEXT NOT NULL,
			script_id  TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_script_id ON events(script_id);

		CREATE TABLE IF NOT EXISTS scripts (
			service_id TEXT NOT NULL,
			script_id  TEXT NOT NULL,
			input      JSONB NOT NULL,
			pipeline   JSONB,
			rendered   JSONB,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (service_id, script_id)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, scriptID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var scriptPtr *string
	if scriptID != "" {
		scriptPtr = &scriptID
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, service_id, script_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.serviceID, scriptPtr)
	return err
}

// Query returns the last N events in descending order by timestamp.
// A non-empty scriptID restricts the result to that script.
func (c *Client) Query(limit int, scriptID string) ([]EventRow, error) {
	limit = clampLimit(limit)

	query := `
		SELECT event_id, ts, level, event, msg, fields, service_id, script_id
		FROM events
		WHERE service_id = $1 AND ($2 = '' OR script_id = $2)
		ORDER BY ts DESC
		LIMIT $3
	`
	rows, err := c.db.Query(query, c.serviceID, scriptID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, script sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.ServiceID, &script); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if script.Valid {
			e.ScriptID = &script.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// SaveScript upserts the state of one script.
func (c *Client) SaveScript(row ScriptRow) error {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO scripts (service_id, script_id, input, pipeline, rendered, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (service_id, script_id) DO UPDATE
		SET input = EXCLUDED.input,
		    pipeline = EXCLUDED.pipeline,
		    rendered = EXCLUDED.rendered,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := c.db.Exec(query, c.serviceID, row.ID, []byte(row.Input), nullJSON(row.Pipeline), nullJSON(row.Rendered), row.UpdatedAt)
	return err
}

// LoadScripts returns the most recently updated scripts, newest first.
func (c *Client) LoadScripts(limit int) ([]ScriptRow, error) {
	limit = clampLimit(limit)

	query := `
		SELECT script_id, input, pipeline, rendered, updated_at
		FROM scripts
		WHERE service_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.serviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scripts []ScriptRow
	for rows.Next() {
		var r ScriptRow
		var input, pipeline, rendered []byte
		if err := rows.Scan(&r.ID, &input, &pipeline, &rendered, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Input = input
		r.Pipeline = pipeline
		r.Rendered = rendered
		scripts = append(scripts, r)
	}

	return scripts, rows.Err()
}

// DeleteScript removes a script. Deleting a missing script is not an error.
func (c *Client) DeleteScript(id string) error {
	_, err := c.db.Exec(`DELETE FROM scripts WHERE service_id = $1 AND script_id = $2`, c.serviceID, id)
	return err
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}

func nullJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
