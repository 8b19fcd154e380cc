package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"flashcards/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type StudySessionRepository interface {
	Create(ctx context.Context, session *models.StudySession) error
	GetByID(ctx context.Context, userID, id int64) (*models.StudySession, error)
	List(ctx context.Context, userID int64) ([]*models.StudySession, error)
	End(ctx context.Context, userID, id int64, endTime time.Time) (*models.StudySession, error)
}

type studySessionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStudySessionRepository(db *sqlx.DB, logger *zap.Logger) StudySessionRepository {
	return &studySessionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *studySessionRepository) Create(ctx context.Context, session *models.StudySession) error {
	query := r.db.Rebind(`
		INSERT INTO study_sessions (user_id, start_time)
		VALUES (?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowxContext(ctx, query, session.UserID, session.StartTime).Scan(&session.ID)
	if err != nil {
		r.logger.Error("Failed to create study session", zap.Int64("user_id", session.UserID), zap.Error(err))
		return err
	}

	return nil
}

func (r *studySessionRepository) GetByID(ctx context.Context, userID, id int64) (*models.StudySession, error) {
	var session models.StudySession
	query := r.db.Rebind(`
		SELECT id, user_id, start_time, end_time
		FROM study_sessions
		WHERE id = ? AND user_id = ?
	`)

	err := r.db.GetContext(ctx, &session, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get study session", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	return &session, nil
}

func (r *studySessionRepository) List(ctx context.Context, userID int64) ([]*models.StudySession, error) {
	sessions := []*models.StudySession{}
	query := r.db.Rebind(`
		SELECT id, user_id, start_time, end_time
		FROM study_sessions
		WHERE user_id = ?
		ORDER BY id DESC
	`)

	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		r.logger.Error("Failed to list study sessions", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return sessions, nil
}

// End sets the end time of an open session. The update only matches open sessions,
// so two concurrent calls cannot both succeed.
func (r *studySessionRepository) End(ctx context.Context, userID, id int64, endTime time.Time) (*models.StudySession, error) {
	query := r.db.Rebind(`
		UPDATE study_sessions
		SET end_time = ?
		WHERE id = ? AND user_id = ? AND end_time IS NULL
	`)

	result, err := r.db.ExecContext(ctx, query, endTime, id, userID)
	if err != nil {
		r.logger.Error("Failed to end study session", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	if err := expectOneRow(result); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// Either the session is someone else's or missing, or it was already ended.
		existing, getErr := r.GetByID(ctx, userID, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Ended() {
			return nil, ErrAlreadyEnded
		}
		return nil, err
	}

	return r.GetByID(ctx, userID, id)
}
