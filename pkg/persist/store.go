// ABOUTME: SQLite-backed persistence for timelines
// ABOUTME: Whole-timeline save in one transaction, fail-closed load

package persist

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relmap/timetree/pkg/graph"
	"github.com/relmap/timetree/pkg/timeline"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	// ErrTimelineNotFound indicates no persisted timeline with that id
	ErrTimelineNotFound = errors.New("persist: timeline not found")
)

// Store wraps a SQLite connection holding persisted timelines. The payload
// of every state is serialized as a graph document.
type Store struct {
	conn *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates a store at the given path, applying pragmas and
// schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// SaveTimeline writes a full timeline under the given id, replacing any
// previous rows, in a single transaction.
func (s *Store) SaveTimeline(id string, tl *timeline.Timeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM states WHERE timeline_id = ?`, id); err != nil {
		return fmt.Errorf("clearing states: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO timelines (id, root_state_id, current_state_id, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   root_state_id = excluded.root_state_id,
		   current_state_id = excluded.current_state_id,
		   updated_at = excluded.updated_at`,
		id, tl.RootID(), tl.CurrentID(), time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("upserting timeline: %w", err)
	}

	for _, st := range tl.All() {
		tags, err := json.Marshal(st.Meta.Tags)
		if err != nil {
			return fmt.Errorf("encoding tags for %s: %w", st.ID, err)
		}
		payload, err := encodePayload(st.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload for %s: %w", st.ID, err)
		}

		var parent sql.NullString
		if st.ParentID != nil {
			parent = sql.NullString{String: *st.ParentID, Valid: true}
		}

		if _, err := tx.Exec(
			`INSERT INTO states
			   (timeline_id, id, label, description, parent_id,
			    meta_date, meta_color, meta_tags, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, st.ID, st.Label, st.Description, parent,
			st.Meta.Date, st.Meta.Color, string(tags), string(payload),
			st.CreatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("inserting state %s: %w", st.ID, err)
		}
	}

	return tx.Commit()
}

// LoadTimeline reconstructs a persisted timeline. Every tree invariant is
// verified before the timeline is returned; a malformed tree fails closed
// with timeline.ErrInvariantViolation.
func (s *Store) LoadTimeline(id string) (*timeline.Timeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rootID, currentID string
	err := s.conn.QueryRow(
		`SELECT root_state_id, current_state_id FROM timelines WHERE id = ?`, id,
	).Scan(&rootID, &currentID)
	if err == sql.ErrNoRows {
		return nil, ErrTimelineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying timeline: %w", err)
	}

	rows, err := s.conn.Query(
		`SELECT id, label, description, parent_id,
		        meta_date, meta_color, meta_tags, payload, created_at
		   FROM states WHERE timeline_id = ? ORDER BY created_at, id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying states: %w", err)
	}
	defer rows.Close()

	var states []*timeline.State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading states: %w", err)
	}

	return timeline.Restore(states, rootID, currentID)
}

// ListTimelines returns the ids of all persisted timelines.
func (s *Store) ListTimelines() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`SELECT id FROM timelines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing timelines: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning timeline id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteTimeline removes a persisted timeline and its states.
func (s *Store) DeleteTimeline(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM states WHERE timeline_id = ?`, id); err != nil {
		return fmt.Errorf("deleting states: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM timelines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting timeline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTimelineNotFound
	}
	return tx.Commit()
}

func scanState(rows *sql.Rows) (*timeline.State, error) {
	var (
		st        timeline.State
		parent    sql.NullString
		tags      string
		payload   string
		createdAt int64
	)
	if err := rows.Scan(
		&st.ID, &st.Label, &st.Description, &parent,
		&st.Meta.Date, &st.Meta.Color, &tags, &payload, &createdAt,
	); err != nil {
		return nil, fmt.Errorf("scanning state: %w", err)
	}

	if parent.Valid {
		pid := parent.String
		st.ParentID = &pid
	}
	if err := json.Unmarshal([]byte(tags), &st.Meta.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for %s: %w", st.ID, err)
	}

	doc := graph.NewDocument()
	if err := json.Unmarshal([]byte(payload), doc); err != nil {
		return nil, fmt.Errorf("decoding payload for %s: %w", st.ID, err)
	}
	st.Payload = doc
	st.CreatedAt = time.Unix(0, createdAt)

	return &st, nil
}

func encodePayload(snap timeline.Snapshot) ([]byte, error) {
	if snap == nil {
		return []byte("{}"), nil
	}
	doc, ok := snap.(*graph.Document)
	if !ok {
		return nil, fmt.Errorf("persist: unsupported payload type %T", snap)
	}
	return json.Marshal(doc)
}
