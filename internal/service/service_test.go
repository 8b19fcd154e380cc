package service

import (
	"testing"
	"time"

	"flashcards/internal/crypto"
	"flashcards/internal/repository"
	"flashcards/internal/token"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := repository.NewDB(repository.DriverSQLite, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.MigrateDB(db, logger))
	return db
}

func newTestHasher(t *testing.T) *crypto.PasswordHasher {
	t.Helper()
	h, err := crypto.NewPasswordHasher(crypto.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func newTestTokens(t *testing.T, secret string) *token.Manager {
	t.Helper()
	m, err := token.NewManager(token.Config{
		Secret:     secret,
		Algorithm:  "HS256",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}
