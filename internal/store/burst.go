package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Burst is the journal record of one training burst.
type Burst struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Requested  int       `json:"requested"`
	Completed  int       `json:"completed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// BurstRepository records training bursts.
type BurstRepository struct {
	db *sql.DB
}

// Bursts returns the burst repository for this store.
func (s *Store) Bursts() *BurstRepository {
	return &BurstRepository{db: s.db}
}

// Create inserts a burst. An empty ID is replaced with a new UUID.
func (r *BurstRepository) Create(b *Burst) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.FinishedAt.IsZero() {
		b.FinishedAt = time.Now()
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = b.FinishedAt
	}

	_, err := r.db.Exec(
		`INSERT INTO training_bursts (id, label, requested, completed, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Label, b.Requested, b.Completed, b.Error, b.StartedAt, b.FinishedAt,
	)
	return err
}

// GetByID retrieves a burst by its ID.
func (r *BurstRepository) GetByID(id string) (*Burst, error) {
	b := &Burst{}
	err := r.db.QueryRow(
		`SELECT id, label, requested, completed, error, started_at, finished_at
		 FROM training_bursts WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.Label, &b.Requested, &b.Completed, &b.Error, &b.StartedAt, &b.FinishedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List returns the most recent bursts first.
func (r *BurstRepository) List(limit int) ([]*Burst, error) {
	rows, err := r.db.Query(
		`SELECT id, label, requested, completed, error, started_at, finished_at
		 FROM training_bursts ORDER BY started_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bursts []*Burst
	for rows.Next() {
		b := &Burst{}
		if err := rows.Scan(&b.ID, &b.Label, &b.Requested, &b.Completed, &b.Error, &b.StartedAt, &b.FinishedAt); err != nil {
			return nil, err
		}
		bursts = append(bursts, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bursts, nil
}
