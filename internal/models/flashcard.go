package models

import "time"

type Flashcard struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Question  string    `db:"question" json:"question"`
	Answer    string    `db:"answer" json:"answer"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GeneratedCard is a question/answer pair produced by the AI generator before it is saved.
type GeneratedCard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
