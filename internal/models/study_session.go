package models

import "time"

type StudySession struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	StartTime time.Time  `db:"start_time" json:"start_time"`
	EndTime   *time.Time `db:"end_time" json:"end_time"`
}

// Ended reports whether the session has been closed.
func (s *StudySession) Ended() bool {
	return s.EndTime != nil
}
