package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"talktime/internal/domain"
)

// MeetingRepository is a read-only reference lookup; the meeting rows are
// owned by meeting management and mutated only through its own API.
type MeetingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Meeting, error)
}

type meetingRepository struct {
	db *sqlx.DB
}

func NewMeetingRepository(db *sqlx.DB) MeetingRepository {
	return &meetingRepository{db: db}
}

func (r *meetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Meeting, error) {
	var meeting domain.Meeting
	query := `
		SELECT id, volunteer_id, student_id, scheduled_time, room_id, duration_minutes, status
		FROM meetings WHERE id = $1`

	err := r.db.GetContext(ctx, &meeting, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}
