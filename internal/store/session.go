package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one classifier run, from start to stop.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Alerts    int        `json:"alerts"`
}

// SessionRepository records run sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start inserts a new open session.
func (r *SessionRepository) Start() (*Session, error) {
	sess := &Session{ID: uuid.New().String(), StartedAt: time.Now()}

	_, err := r.db.Exec(`INSERT INTO run_sessions (id, started_at) VALUES (?, ?)`, sess.ID, sess.StartedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Stop marks a session as stopped.
func (r *SessionRepository) Stop(id string) error {
	result, err := r.db.Exec(`UPDATE run_sessions SET stopped_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session with its alert count.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var stopped sql.NullTime

	err := r.db.QueryRow(
		`SELECT s.id, s.started_at, s.stopped_at, COUNT(a.id)
		 FROM run_sessions s LEFT JOIN alerts a ON a.session_id = s.id
		 WHERE s.id = ? GROUP BY s.id`,
		id,
	).Scan(&sess.ID, &sess.StartedAt, &stopped, &sess.Alerts)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if stopped.Valid {
		sess.StoppedAt = &stopped.Time
	}
	return sess, nil
}
