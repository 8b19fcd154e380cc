package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"flashcards/internal/apperr"
	"flashcards/internal/models"
	"flashcards/internal/repository"

	"go.uber.org/zap"
)

const (
	MaxCardTextLength = 4000
	DefaultPageSize   = 50
	MaxPageSize       = 200
)

// FlashcardPage is one page of a user's flashcards plus the total they own.
type FlashcardPage struct {
	Flashcards []*models.Flashcard `json:"flashcards"`
	Total      int                 `json:"total"`
}

type FlashcardService interface {
	Create(ctx context.Context, userID int64, question, answer string) (*models.Flashcard, error)
	Get(ctx context.Context, userID, id int64) (*models.Flashcard, error)
	List(ctx context.Context, userID int64, limit, offset int) (*FlashcardPage, error)
	Update(ctx context.Context, userID, id int64, question, answer string) (*models.Flashcard, error)
	Delete(ctx context.Context, userID, id int64) error
}

type flashcardService struct {
	repo   repository.FlashcardRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewFlashcardService(repo repository.FlashcardRepository, logger *zap.Logger) FlashcardService {
	return &flashcardService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// normaliseCard trims both sides of a card and checks their length.
func normaliseCard(question, answer string) (string, string, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)

	verr := &apperr.ValidationError{}
	for field, value := range map[string]string{"question": question, "answer": answer} {
		switch {
		case value == "":
			verr.Add(field, "must not be empty")
		case utf8.RuneCountInString(value) > MaxCardTextLength:
			verr.Add(field, fmt.Sprintf("must be at most %d characters", MaxCardTextLength))
		}
	}
	if !verr.Empty() {
		return "", "", verr
	}
	return question, answer, nil
}

// notFound turns the store's missing-row error into the API's.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *flashcardService) Create(ctx context.Context, userID int64, question, answer string) (*models.Flashcard, error) {
	question, answer, err := normaliseCard(question, answer)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	card := &models.Flashcard{
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to create flashcard: %w", err)
	}
	return card, nil
}

func (s *flashcardService) Get(ctx context.Context, userID, id int64) (*models.Flashcard, error) {
	card, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err, "flashcard")
	}
	return card, nil
}

// List returns newest cards first. A non-positive limit selects DefaultPageSize.
func (s *flashcardService) List(ctx context.Context, userID int64, limit, offset int) (*FlashcardPage, error) {
	verr := &apperr.ValidationError{}
	if limit > MaxPageSize {
		verr.Add("limit", fmt.Sprintf("must be at most %d", MaxPageSize))
	}
	if offset < 0 {
		verr.Add("offset", "must not be negative")
	}
	if !verr.Empty() {
		return nil, verr
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	cards, err := s.repo.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards: %w", err)
	}
	total, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count flashcards: %w", err)
	}

	return &FlashcardPage{Flashcards: cards, Total: total}, nil
}

func (s *flashcardService) Update(ctx context.Context, userID, id int64, question, answer string) (*models.Flashcard, error) {
	question, answer, err := normaliseCard(question, answer)
	if err != nil {
		return nil, err
	}

	card, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err, "flashcard")
	}

	card.Question = question
	card.Answer = answer
	card.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, card); err != nil {
		return nil, notFound(err, "flashcard")
	}
	return card, nil
}

func (s *flashcardService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return notFound(err, "flashcard")
	}
	s.logger.Debug("Flashcard deleted", zap.Int64("user_id", userID), zap.Int64("id", id))
	return nil
}
