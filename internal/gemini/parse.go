package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"flashcards/internal/models"
)

var (
	ErrEmptyResponse = errors.New("empty response from gemini")
	ErrNoFlashcards  = errors.New("gemini returned no usable flashcards")
)

// stripCodeFence removes a surrounding markdown code block, which the model sometimes adds
// even when asked for JSON.
func stripCodeFence(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// parseFlashcards decodes the model output and keeps at most n complete cards.
func parseFlashcards(raw string, n int) ([]models.GeneratedCard, error) {
	clean := stripCodeFence(raw)
	if clean == "" {
		return nil, ErrEmptyResponse
	}

	var cards []models.GeneratedCard
	if strings.HasPrefix(clean, "[") {
		if err := json.Unmarshal([]byte(clean), &cards); err != nil {
			return nil, fmt.Errorf("failed to parse flashcards: %w", err)
		}
	} else {
		var payload struct {
			Flashcards []models.GeneratedCard `json:"flashcards"`
		}
		if err := json.Unmarshal([]byte(clean), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse flashcards: %w", err)
		}
		cards = payload.Flashcards
	}

	valid := make([]models.GeneratedCard, 0, len(cards))
	for _, card := range cards {
		card.Question = strings.TrimSpace(card.Question)
		card.Answer = strings.TrimSpace(card.Answer)
		if card.Question == "" || card.Answer == "" {
			continue
		}
		valid = append(valid, card)
		if len(valid) == n {
			break
		}
	}

	if len(valid) == 0 {
		return nil, ErrNoFlashcards
	}
	return valid, nil
}

func parseStudyTips(raw string) ([]string, error) {
	clean := stripCodeFence(raw)
	if clean == "" {
		return nil, ErrEmptyResponse
	}

	var payload struct {
		StudyTips []string `json:"study_tips"`
	}
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse study tips: %w", err)
	}

	tips := make([]string, 0, len(payload.StudyTips))
	for _, tip := range payload.StudyTips {
		if tip = strings.TrimSpace(tip); tip != "" {
			tips = append(tips, tip)
		}
	}
	return tips, nil
}
