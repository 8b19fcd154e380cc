package service

import (
	"context"
	"testing"
	"time"

	"flashcards/internal/apperr"
	"flashcards/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStudyService_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewStudyService(repository.NewStudySessionRepository(db, zap.NewNop()), zap.NewNop())
	ctx := context.Background()
	userID := seedUser(t, db, "a@x.com")

	session, err := svc.Start(ctx, userID)
	require.NoError(t, err)
	assert.False(t, session.Ended())

	ended, err := svc.End(ctx, userID, session.ID)
	require.NoError(t, err)
	require.True(t, ended.Ended())
	assert.False(t, ended.EndTime.Before(ended.StartTime))

	_, err = svc.End(ctx, userID, session.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	sessions, err := svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestStudyService_OtherUsersSessionsAreNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewStudyService(repository.NewStudySessionRepository(db, zap.NewNop()), zap.NewNop())
	ctx := context.Background()
	alice := seedUser(t, db, "alice@x.com")
	bob := seedUser(t, db, "bob@x.com")

	session, err := svc.Start(ctx, alice)
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, session.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.End(ctx, bob, session.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := svc.Get(ctx, alice, session.ID)
	require.NoError(t, err)
	assert.False(t, got.Ended(), "a rejected end must not close the session")
}

func TestStudyService_UsesClock(t *testing.T) {
	db := newTestDB(t)
	svc := NewStudyService(repository.NewStudySessionRepository(db, zap.NewNop()), zap.NewNop()).(*studyService)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	userID := seedUser(t, db, "a@x.com")

	session, err := svc.Start(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(session.StartTime))
}
