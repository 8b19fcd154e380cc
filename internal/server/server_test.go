package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"flashcards/internal/crypto"
	"flashcards/internal/models"
	"flashcards/internal/repository"
	"flashcards/internal/service"
	"flashcards/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "e2e-secret"

type stubExtractor struct{}

func (stubExtractor) ExtractText(data []byte) (string, error) { return string(data), nil }

type stubGenerator struct{}

func (stubGenerator) GenerateFlashcards(_ context.Context, text string, n int) ([]models.GeneratedCard, error) {
	cards := make([]models.GeneratedCard, n)
	for i := range cards {
		cards[i] = models.GeneratedCard{Question: "Q about " + text, Answer: "A"}
	}
	return cards, nil
}

func (stubGenerator) GenerateStudyTips(context.Context, []models.GeneratedCard) ([]string, error) {
	return []string{"Review tomorrow"}, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := repository.NewDB(repository.DriverSQLite, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, logger))

	hasher, err := crypto.NewPasswordHasher(crypto.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := token.NewManager(token.Config{
		Secret:     testSecret,
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	users := repository.NewUserRepository(db, logger)
	cards := repository.NewFlashcardRepository(db, logger)
	sessions := repository.NewStudySessionRepository(db, logger)

	const maxUpload = 1 << 10
	srv := NewServer(Config{Port: "0"}, Deps{
		Auth:       service.NewAuthService(users, hasher, tokens, nil, logger),
		Flashcards: service.NewFlashcardService(cards, logger),
		Study:      service.NewStudyService(sessions, logger),
		Ingest: service.NewIngestService(cards, stubExtractor{}, stubGenerator{}, nil,
			service.IngestConfig{MaxUploadSize: maxUpload}, logger),
		DB:            db,
		MaxUploadSize: maxUpload,
		Logger:        logger,
	})
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, bearer string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, h http.Handler, method, path, bearer string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}
	return do(t, h, method, path, bearer, &buf, "application/json")
}

func signupAndLogin(t *testing.T, h http.Handler, email, password string) token.Pair {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	form := url.Values{"username": {email}, "password": {password}}
	w = do(t, h, http.MethodPost, "/api/v1/auth/login", "", bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pair token.Pair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	return pair
}

func TestEndToEndAuth(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "a@x.com", "password": "pw123"})
	require.Equal(t, http.StatusOK, w.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "a@x.com", created["email"])
	assert.NotZero(t, created["id"])
	assert.NotContains(t, w.Body.String(), "password")

	form := url.Values{"username": {"a@x.com"}, "password": {"pw123"}}
	w = do(t, h, http.MethodPost, "/api/v1/auth/login", "", bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code)
	var pair token.Pair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	w = do(t, h, http.MethodGet, "/api/v1/flashcards", pair.AccessToken, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	for _, i := range []int{len(pair.AccessToken) - 10, len(pair.AccessToken) - 1} {
		tampered := []byte(pair.AccessToken)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		w = do(t, h, http.MethodGet, "/api/v1/flashcards", string(tampered), nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "character %d altered", i)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	}

	foreign, err := token.NewManager(token.Config{Secret: "unrelated", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	require.NoError(t, err)
	forged, err := foreign.Issue("1", token.Access, 0)
	require.NoError(t, err)
	w = do(t, h, http.MethodGet, "/api/v1/flashcards", forged, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/flashcards", pair.RefreshToken, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh token is not an API credential")

	w = do(t, h, http.MethodGet, "/api/v1/flashcards", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupDuplicateAndBadLogin(t *testing.T) {
	h := newTestServer(t)
	signupAndLogin(t, h, "a@x.com", "pw123")

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "a@x.com", "password": "another"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Email already registered"}`, w.Body.String())

	form := url.Values{"username": {"a@x.com"}, "password": {"nope"}}
	w = do(t, h, http.MethodPost, "/api/v1/auth/login", "", bytes.NewBufferString(form.Encode()), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":"Incorrect email or password"}`, w.Body.String())

	w = doJSON(t, h, http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "b@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"password":"is required"`)
}

func TestRefreshExchange(t *testing.T) {
	h := newTestServer(t)
	pair := signupAndLogin(t, h, "a@x.com", "pw123")

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	var fresh token.Pair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fresh))

	w = do(t, h, http.MethodGet, "/api/v1/auth/me", fresh.AccessToken, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"a@x.com"`)

	w = doJSON(t, h, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFlashcardsAreIsolatedPerUser(t *testing.T) {
	h := newTestServer(t)
	alice := signupAndLogin(t, h, "alice@x.com", "pw123")
	bob := signupAndLogin(t, h, "bob@x.com", "pw123")

	w := doJSON(t, h, http.MethodPost, "/api/v1/flashcards", alice.AccessToken, gin.H{"question": "q", "answer": "a"})
	require.Equal(t, http.StatusOK, w.Code)
	var card models.Flashcard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))

	path := "/api/v1/flashcards/" + strconv.FormatInt(card.ID, 10)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, path, alice.AccessToken, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, path, bob.AccessToken, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodPut, path, bob.AccessToken, gin.H{"question": "x", "answer": "y"}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, path, bob.AccessToken, nil, "").Code)

	w = doJSON(t, h, http.MethodPut, path, alice.AccessToken, gin.H{"question": "q2", "answer": "a2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"question":"q2"`)

	w = do(t, h, http.MethodGet, "/api/v1/flashcards?limit=10", alice.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/flashcards/abc", alice.AccessToken, nil, "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, path, alice.AccessToken, nil, "").Code)
}

func TestStudySessionFlow(t *testing.T) {
	h := newTestServer(t)
	alice := signupAndLogin(t, h, "alice@x.com", "pw123")
	bob := signupAndLogin(t, h, "bob@x.com", "pw123")

	w := do(t, h, http.MethodPost, "/api/v1/study/start", alice.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var session models.StudySession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Nil(t, session.EndTime)

	end := "/api/v1/study/end/" + strconv.FormatInt(session.ID, 10)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, end, bob.AccessToken, nil, "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, end, alice.AccessToken, nil, "").Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, end, alice.AccessToken, nil, "").Code)

	w = do(t, h, http.MethodGet, "/api/v1/study/sessions", alice.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Sessions []models.StudySession `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.NotNil(t, list.Sessions[0].EndTime)
}

func multipartPDF(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPDFUpload(t *testing.T) {
	h := newTestServer(t)
	pair := signupAndLogin(t, h, "a@x.com", "pw123")

	body, ct := multipartPDF(t, "notes.pdf", []byte("photosynthesis"))
	w := do(t, h, http.MethodPost, "/api/v1/pdf/upload?num_cards=3", pair.AccessToken, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result service.IngestResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Flashcards, 3)
	assert.Equal(t, []string{"Review tomorrow"}, result.StudyTips)

	w = do(t, h, http.MethodGet, "/api/v1/flashcards", pair.AccessToken, nil, "")
	assert.Contains(t, w.Body.String(), `"total":3`)

	body, ct = multipartPDF(t, "notes.txt", []byte("x"))
	w = do(t, h, http.MethodPost, "/api/v1/pdf/upload", pair.AccessToken, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Only PDF files are allowed")

	body, ct = multipartPDF(t, "big.pdf", []byte(strings.Repeat("x", 2<<10)))
	w = do(t, h, http.MethodPost, "/api/v1/pdf/upload", pair.AccessToken, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "File size exceeds")

	body, ct = multipartPDF(t, "notes.pdf", []byte("x"))
	w = do(t, h, http.MethodPost, "/api/v1/pdf/upload?num_cards=abc", pair.AccessToken, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartPDF(t, "notes.pdf", []byte("x"))
	w = do(t, h, http.MethodPost, "/api/v1/pdf/upload", "", body, ct)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, w.Body.String())
}
