package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Alert is the journal record of one fired alert.
type Alert struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// AlertRepository records fired alerts.
type AlertRepository struct {
	db *sql.DB
}

// Alerts returns the alert repository for this store.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{db: s.db}
}

// Create inserts an alert. The session must exist.
func (r *AlertRepository) Create(a *Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO alerts (id, session_id, label, confidence, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Label, a.Confidence, a.CreatedAt,
	)
	return err
}

// List returns the most recent alerts first.
func (r *AlertRepository) List(limit int) ([]*Alert, error) {
	return r.query(
		`SELECT id, session_id, label, confidence, created_at
		 FROM alerts ORDER BY created_at DESC LIMIT ?`,
		listLimit(limit),
	)
}

// ListBySession returns the alerts of one run session, oldest first.
func (r *AlertRepository) ListBySession(sessionID string) ([]*Alert, error) {
	return r.query(
		`SELECT id, session_id, label, confidence, created_at
		 FROM alerts WHERE session_id = ? ORDER BY created_at`,
		sessionID,
	)
}

func (r *AlertRepository) query(q string, args ...any) ([]*Alert, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		a := &Alert{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Label, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return alerts, nil
}
