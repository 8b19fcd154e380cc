package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"flashcards/internal/apperr"
	"flashcards/internal/crypto"
	"flashcards/internal/models"
	"flashcards/internal/ratelimit"
	"flashcards/internal/repository"
	"flashcards/internal/token"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxEmailLength = 254

// dummyPassword is hashed once so logins for unknown emails still pay for a comparison.
const dummyPassword = "timing-equaliser-password"

// fallbackDummyHash is a cost-10 bcrypt hash used when the hasher cannot produce the dummy.
const fallbackDummyHash = "$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga"

var validate = validator.New()

// TokenManager issues and verifies bearer tokens.
type TokenManager interface {
	IssuePair(subject string, scopes ...string) (*token.Pair, error)
	Verify(tokenString string) (*token.Claims, error)
}

type AuthService interface {
	Signup(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*token.Pair, error)
	Refresh(ctx context.Context, refreshToken string) (*token.Pair, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

type authService struct {
	users   repository.UserRepository
	hasher  crypto.Hasher
	tokens  TokenManager
	limiter ratelimit.Limiter
	logger  *zap.Logger
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the credential store, hasher and token manager together.
// limiter may be nil, which disables login throttling.
func NewAuthService(users repository.UserRepository, hasher crypto.Hasher, tokens TokenManager, limiter ratelimit.Limiter, logger *zap.Logger) AuthService {
	return &authService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

func validateCredentials(email, password string) error {
	verr := &apperr.ValidationError{}
	switch {
	case email == "":
		verr.Add("email", "is required")
	case len(email) > maxEmailLength:
		verr.Add("email", fmt.Sprintf("must be at most %d characters", maxEmailLength))
	case validate.Var(email, "email") != nil:
		verr.Add("email", "must be a valid email address")
	}
	if err := crypto.ValidatePassword(password); err != nil {
		var perr *apperr.ValidationError
		if errors.As(err, &perr) {
			for field, msg := range perr.Fields {
				verr.Add(field, msg)
			}
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func (s *authService) Signup(ctx context.Context, email, password string) (*models.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(ctx, password)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:          email,
		HashedPassword: hash,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User signed up", zap.Int64("user_id", user.ID))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*token.Pair, error) {
	if email == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}

	throttleKey := "login:" + strings.ToLower(email)
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, throttleKey)
		if err != nil {
			s.logger.Warn("Login limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, apperr.ErrTooManyAttempts
		}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if _, err := s.verifyPassword(ctx, password, s.timingHash()); err != nil {
			return nil, err
		}
		return nil, apperr.ErrInvalidCredentials
	}

	ok, err := s.verifyPassword(ctx, password, user.HashedPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, throttleKey); err != nil {
			s.logger.Warn("Failed to reset login limiter", zap.Error(err))
		}
	}

	pair, err := s.tokens.IssuePair(strconv.FormatInt(user.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	s.logger.Info("User logged in", zap.Int64("user_id", user.ID))
	return pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	user, err := s.resolve(ctx, refreshToken, token.Refresh)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(strconv.FormatInt(user.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, nil
}

func (s *authService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	return s.resolve(ctx, accessToken, token.Access)
}

// resolve verifies tokenString, requires it to be of class want and loads its subject.
// Token problems and missing users are ErrUnauthenticated; store failures are not.
func (s *authService) resolve(ctx context.Context, tokenString string, want token.Type) (*models.User, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}
	if claims.Type != want {
		s.logger.Debug("Rejected token of wrong type", zap.String("type", string(claims.Type)), zap.String("want", string(want)))
		return nil, apperr.ErrUnauthenticated
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *authService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("Failed to compute timing hash, using fallback", zap.Error(err))
			s.dummyHash = fallbackDummyHash
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// hashPassword runs the hash on its own goroutine so a cancelled request returns at once.
func (s *authService) hashPassword(ctx context.Context, password string) (string, error) {
	type result struct {
		hash string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		hash, err := s.hasher.Hash(password)
		done <- result{hash, err}
	}()

	select {
	case r := <-done:
		return r.hash, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *authService) verifyPassword(ctx context.Context, password, hash string) (bool, error) {
	done := make(chan bool, 1)
	go func() {
		done <- s.hasher.Verify(password, hash)
	}()

	select {
	case ok := <-done:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
