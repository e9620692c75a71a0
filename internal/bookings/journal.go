// Package bookings persists appointment outcomes to PostgreSQL so
// operators can audit what the skill booked. The journal is optional: a
// nil journal accepts writes and drops them.
package bookings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded booking attempt with its terminal status.
type Entry struct {
	ID           uuid.UUID
	UserID       string
	PatientID    string
	ProfessionID int
	FacilityOID  string
	Clinician    string
	SlotID       string
	VisitAt      time.Time
	Status       string
	BookID       string
	CreatedAt    time.Time
}

// Journal writes booking outcomes to the appointments table.
type Journal struct {
	db *sql.DB
}

// NewJournal creates a journal. A nil db yields a nil journal, which
// is safe to use.
func NewJournal(db *sql.DB) *Journal {
	if db == nil {
		return nil
	}
	return &Journal{db: db}
}

// Record inserts one outcome row.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if j == nil {
		return nil
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO appointments
			(id, user_id, patient_id, profession_id, facility_oid, clinician, slot_id, visit_at, status, book_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		e.ID, e.UserID, e.PatientID, e.ProfessionID, e.FacilityOID,
		e.Clinician, e.SlotID, e.VisitAt, e.Status, e.BookID,
	)
	if err != nil {
		return fmt.Errorf("bookings: failed to record appointment: %w", err)
	}
	return nil
}

// RecentForUser returns the user's latest outcomes, newest first.
func (j *Journal) RecentForUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, user_id, patient_id, profession_id, facility_oid, clinician, slot_id, visit_at, status, book_id, created_at
		FROM appointments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("bookings: failed to load appointments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.PatientID, &e.ProfessionID, &e.FacilityOID,
			&e.Clinician, &e.SlotID, &e.VisitAt, &e.Status, &e.BookID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("bookings: failed to scan appointment: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: appointment rows: %w", err)
	}
	return entries, nil
}
