package gemini

import (
	"fmt"
	"strings"

	"flashcards/internal/models"
)

// maxSourceRunes caps how much document text is sent in one prompt.
const maxSourceRunes = 30000

const SystemInstruction = `You are a study assistant that turns course material into flashcards.
Write questions that test understanding of one idea each, and answers that are short and self-contained.
Use only facts stated in the material. Always answer with JSON and nothing else.`

// BuildFlashcardsPrompt asks for n question/answer pairs drawn from text.
func BuildFlashcardsPrompt(text string, n int) string {
	return fmt.Sprintf(`Create exactly %d flashcards from the material below.
Respond with JSON of the form {"flashcards": [{"question": "...", "answer": "..."}]}.

Material:
"""
%s
"""`, n, truncateRunes(text, maxSourceRunes))
}

// BuildStudyTipsPrompt asks for advice on learning the given cards.
func BuildStudyTipsPrompt(cards []models.GeneratedCard) string {
	var b strings.Builder
	for i, card := range cards {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, card.Question, card.Answer)
	}

	return fmt.Sprintf(`Here are flashcards a student will study:
%s
Give 3 to 5 short, practical tips for memorising this material.
Respond with JSON of the form {"study_tips": ["...", "..."]}.`, b.String())
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
