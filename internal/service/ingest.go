package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flashcards/internal/apperr"
	"flashcards/internal/models"
	"flashcards/internal/pdftext"
	"flashcards/internal/repository"
	"flashcards/internal/storage"

	"go.uber.org/zap"
)

const (
	DefaultNumCards = 5
	MaxNumCards     = 20
)

// ErrGeneratorUnavailable means no AI generator is configured.
var ErrGeneratorUnavailable = fmt.Errorf("flashcard generator not configured: %w", apperr.ErrUnavailable)

// Generator produces flashcards and study advice from text.
type Generator interface {
	GenerateFlashcards(ctx context.Context, text string, n int) ([]models.GeneratedCard, error)
	GenerateStudyTips(ctx context.Context, cards []models.GeneratedCard) ([]string, error)
}

type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// Upload is a PDF submitted for flashcard generation.
type Upload struct {
	Filename string
	Data     []byte
	NumCards int
}

type IngestResult struct {
	Flashcards []*models.Flashcard `json:"flashcards"`
	StudyTips  []string            `json:"study_tips"`
}

type IngestService interface {
	Ingest(ctx context.Context, userID int64, upload Upload) (*IngestResult, error)
}

type IngestConfig struct {
	MaxUploadSize   int64
	DefaultNumCards int
}

type ingestService struct {
	cards     repository.FlashcardRepository
	extractor TextExtractor
	generator Generator
	archiver  storage.Archiver
	cfg       IngestConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewIngestService builds the PDF pipeline. generator may be nil, in which case every
// upload fails with ErrGeneratorUnavailable; archiver may be nil to skip archival.
func NewIngestService(cards repository.FlashcardRepository, extractor TextExtractor, generator Generator, archiver storage.Archiver, cfg IngestConfig, logger *zap.Logger) IngestService {
	if archiver == nil {
		archiver = storage.Nop{}
	}
	if cfg.DefaultNumCards <= 0 {
		cfg.DefaultNumCards = DefaultNumCards
	}
	return &ingestService{
		cards:     cards,
		extractor: extractor,
		generator: generator,
		archiver:  archiver,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *ingestService) validate(upload *Upload) error {
	verr := &apperr.ValidationError{}
	if !strings.HasSuffix(strings.ToLower(upload.Filename), ".pdf") {
		verr.Add("file", "Only PDF files are allowed")
	} else if s.cfg.MaxUploadSize > 0 && int64(len(upload.Data)) > s.cfg.MaxUploadSize {
		verr.Add("file", fmt.Sprintf("File size exceeds %dMB limit", s.cfg.MaxUploadSize/1024/1024))
	} else if len(upload.Data) == 0 {
		verr.Add("file", "must not be empty")
	}

	if upload.NumCards == 0 {
		upload.NumCards = s.cfg.DefaultNumCards
	}
	if upload.NumCards < 1 || upload.NumCards > MaxNumCards {
		verr.Add("num_cards", fmt.Sprintf("must be between 1 and %d", MaxNumCards))
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// Ingest extracts the upload's text, generates flashcards from it, saves them for userID
// and returns them with study tips. Tips and archival are best effort.
func (s *ingestService) Ingest(ctx context.Context, userID int64, upload Upload) (*IngestResult, error) {
	if err := s.validate(&upload); err != nil {
		return nil, err
	}
	if s.generator == nil {
		return nil, ErrGeneratorUnavailable
	}

	text, err := s.extractor.ExtractText(upload.Data)
	if err != nil {
		s.logger.Info("Rejected unreadable PDF", zap.Int64("user_id", userID), zap.Error(err))
		msg := "could not read the PDF"
		if errors.Is(err, pdftext.ErrNoText) {
			msg = "PDF contains no extractable text"
		}
		return nil, apperr.NewValidationError("file", msg)
	}

	key := storage.UploadKey(userID)
	if err := s.archiver.Archive(ctx, key, "application/pdf", upload.Data); err != nil {
		s.logger.Warn("Failed to archive upload", zap.String("key", key), zap.Error(err))
	}

	generated, err := s.generator.GenerateFlashcards(ctx, text, upload.NumCards)
	if err != nil {
		s.logger.Error("Flashcard generation failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: flashcard generation failed", apperr.ErrUnavailable)
	}

	now := s.now().UTC()
	cards := make([]*models.Flashcard, 0, len(generated))
	for _, g := range generated {
		question, answer, err := normaliseCard(g.Question, g.Answer)
		if err != nil {
			s.logger.Debug("Skipping unusable generated card", zap.Error(err))
			continue
		}
		cards = append(cards, &models.Flashcard{
			UserID:    userID,
			Question:  question,
			Answer:    answer,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: generator returned no usable flashcards", apperr.ErrUnavailable)
	}

	if err := s.cards.CreateBatch(ctx, cards); err != nil {
		return nil, fmt.Errorf("failed to save generated flashcards: %w", err)
	}

	saved := make([]models.GeneratedCard, len(cards))
	for i, c := range cards {
		saved[i] = models.GeneratedCard{Question: c.Question, Answer: c.Answer}
	}
	tips, err := s.generator.GenerateStudyTips(ctx, saved)
	if err != nil {
		s.logger.Warn("Study tip generation failed", zap.Int64("user_id", userID), zap.Error(err))
		tips = []string{}
	}

	s.logger.Info("Generated flashcards from PDF",
		zap.Int64("user_id", userID),
		zap.Int("cards", len(cards)),
		zap.Int("tips", len(tips)))

	return &IngestResult{Flashcards: cards, StudyTips: tips}, nil
}
