package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flashcards/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// FlashcardRepository stores flashcards. Every read and write is scoped by owner.
type FlashcardRepository interface {
	Create(ctx context.Context, card *models.Flashcard) error
	CreateBatch(ctx context.Context, cards []*models.Flashcard) error
	GetByID(ctx context.Context, userID, id int64) (*models.Flashcard, error)
	List(ctx context.Context, userID int64, limit, offset int) ([]*models.Flashcard, error)
	Count(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, card *models.Flashcard) error
	Delete(ctx context.Context, userID, id int64) error
}

type flashcardRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewFlashcardRepository(db *sqlx.DB, logger *zap.Logger) FlashcardRepository {
	return &flashcardRepository{
		db:     db,
		logger: logger,
	}
}

const insertFlashcard = `
	INSERT INTO flashcards (user_id, question, answer, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	RETURNING id
`

func (r *flashcardRepository) Create(ctx context.Context, card *models.Flashcard) error {
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(insertFlashcard),
		card.UserID,
		card.Question,
		card.Answer,
		card.CreatedAt,
		card.UpdatedAt,
	).Scan(&card.ID)
	if err != nil {
		r.logger.Error("Failed to create flashcard", zap.Int64("user_id", card.UserID), zap.Error(err))
		return err
	}

	return nil
}

// CreateBatch inserts all cards or none of them.
func (r *flashcardRepository) CreateBatch(ctx context.Context, cards []*models.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(insertFlashcard)
	for _, card := range cards {
		err := tx.QueryRowxContext(ctx, query,
			card.UserID,
			card.Question,
			card.Answer,
			card.CreatedAt,
			card.UpdatedAt,
		).Scan(&card.ID)
		if err != nil {
			r.logger.Error("Failed to insert flashcard in batch", zap.Int64("user_id", card.UserID), zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flashcards: %w", err)
	}
	return nil
}

func (r *flashcardRepository) GetByID(ctx context.Context, userID, id int64) (*models.Flashcard, error) {
	var card models.Flashcard
	query := r.db.Rebind(`
		SELECT id, user_id, question, answer, created_at, updated_at
		FROM flashcards
		WHERE id = ? AND user_id = ?
	`)

	err := r.db.GetContext(ctx, &card, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get flashcard", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	return &card, nil
}

// List returns the user's flashcards, newest first.
func (r *flashcardRepository) List(ctx context.Context, userID int64, limit, offset int) ([]*models.Flashcard, error) {
	cards := []*models.Flashcard{}
	query := r.db.Rebind(`
		SELECT id, user_id, question, answer, created_at, updated_at
		FROM flashcards
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`)

	if err := r.db.SelectContext(ctx, &cards, query, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list flashcards", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return cards, nil
}

func (r *flashcardRepository) Count(ctx context.Context, userID int64) (int, error) {
	var total int
	query := r.db.Rebind(`SELECT COUNT(*) FROM flashcards WHERE user_id = ?`)

	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		r.logger.Error("Failed to count flashcards", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}

	return total, nil
}

// Update overwrites question and answer of a card the user owns.
func (r *flashcardRepository) Update(ctx context.Context, card *models.Flashcard) error {
	query := r.db.Rebind(`
		UPDATE flashcards
		SET question = ?, answer = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`)

	result, err := r.db.ExecContext(ctx, query, card.Question, card.Answer, card.UpdatedAt, card.ID, card.UserID)
	if err != nil {
		r.logger.Error("Failed to update flashcard", zap.Int64("id", card.ID), zap.Error(err))
		return err
	}

	return expectOneRow(result)
}

func (r *flashcardRepository) Delete(ctx context.Context, userID, id int64) error {
	query := r.db.Rebind(`DELETE FROM flashcards WHERE id = ? AND user_id = ?`)

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete flashcard", zap.Int64("id", id), zap.Error(err))
		return err
	}

	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
