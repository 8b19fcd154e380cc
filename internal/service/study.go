package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flashcards/internal/apperr"
	"flashcards/internal/models"
	"flashcards/internal/repository"

	"go.uber.org/zap"
)

type StudyService interface {
	Start(ctx context.Context, userID int64) (*models.StudySession, error)
	End(ctx context.Context, userID, id int64) (*models.StudySession, error)
	Get(ctx context.Context, userID, id int64) (*models.StudySession, error)
	List(ctx context.Context, userID int64) ([]*models.StudySession, error)
}

type studyService struct {
	repo   repository.StudySessionRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewStudyService(repo repository.StudySessionRepository, logger *zap.Logger) StudyService {
	return &studyService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *studyService) Start(ctx context.Context, userID int64) (*models.StudySession, error) {
	session := &models.StudySession{
		UserID:    userID,
		StartTime: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to start study session: %w", err)
	}

	s.logger.Debug("Study session started", zap.Int64("user_id", userID), zap.Int64("session_id", session.ID))
	return session, nil
}

// End closes an open session. Ending it a second time is a conflict.
func (s *studyService) End(ctx context.Context, userID, id int64) (*models.StudySession, error) {
	session, err := s.repo.End(ctx, userID, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyEnded) {
			return nil, fmt.Errorf("study session %d: %w", id, apperr.ErrConflict)
		}
		return nil, notFound(err, "study session")
	}
	return session, nil
}

func (s *studyService) Get(ctx context.Context, userID, id int64) (*models.StudySession, error) {
	session, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err, "study session")
	}
	return session, nil
}

func (s *studyService) List(ctx context.Context, userID int64) ([]*models.StudySession, error) {
	sessions, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list study sessions: %w", err)
	}
	return sessions, nil
}
