package repository

import (
	"context"
	"testing"
	"time"

	"flashcards/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStudySessionRepository_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())
	repo := NewStudySessionRepository(db, zap.NewNop())
	ctx := context.Background()

	owner := createTestUser(t, users, "owner@x.com")
	start := time.Now().UTC().Truncate(time.Second)

	session := &models.StudySession{UserID: owner.ID, StartTime: start}
	require.NoError(t, repo.Create(ctx, session))
	assert.Positive(t, session.ID)

	got, err := repo.GetByID(ctx, owner.ID, session.ID)
	require.NoError(t, err)
	assert.False(t, got.Ended())
	assert.True(t, start.Equal(got.StartTime))

	end := start.Add(25 * time.Minute)
	ended, err := repo.End(ctx, owner.ID, session.ID, end)
	require.NoError(t, err)
	require.True(t, ended.Ended())
	assert.True(t, end.Equal(*ended.EndTime))

	_, err = repo.End(ctx, owner.ID, session.ID, end.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyEnded)

	got, err = repo.GetByID(ctx, owner.ID, session.ID)
	require.NoError(t, err)
	assert.True(t, end.Equal(*got.EndTime), "end time must not move on a second end")
}

func TestStudySessionRepository_ScopedByOwner(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())
	repo := NewStudySessionRepository(db, zap.NewNop())
	ctx := context.Background()

	alice := createTestUser(t, users, "alice@x.com")
	bob := createTestUser(t, users, "bob@x.com")

	session := &models.StudySession{UserID: alice.ID, StartTime: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, session))

	_, err := repo.GetByID(ctx, bob.ID, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.End(ctx, bob.ID, session.ID, time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.End(ctx, alice.ID, 12345, time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStudySessionRepository_ListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db, zap.NewNop())
	repo := NewStudySessionRepository(db, zap.NewNop())
	ctx := context.Background()

	owner := createTestUser(t, users, "owner@x.com")
	var ids []int64
	for i := 0; i < 3; i++ {
		s := &models.StudySession{UserID: owner.ID, StartTime: time.Now().UTC()}
		require.NoError(t, repo.Create(ctx, s))
		ids = append(ids, s.ID)
	}

	list, err := repo.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)
}
