package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "cortex/workspace/internal/errors"
	"cortex/workspace/internal/logging"
	"cortex/workspace/internal/model"
	"cortex/workspace/internal/repository"
)

const minPasswordLength = 6

type AuthService struct {
	userRepo     *repository.UserRepository
	settingsRepo *repository.SettingsRepository
	jwtSecret    []byte
	tokenTTL     time.Duration
}

func NewAuthService(
	userRepo *repository.UserRepository,
	settingsRepo *repository.SettingsRepository,
	jwtSecret string,
	tokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
	}
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Register creates the account together with its default timer settings.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail, ok := normalizeEmail(email)
	if !ok {
		return nil, apperrors.BadRequest("invalid_email", "a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.BadRequest("invalid_password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure password")
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        normalizedEmail,
		PasswordHash: string(passwordHash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if apiErr := s.createAccount(ctx, &user); apiErr != nil {
		return nil, apiErr
	}

	token, apiErr := s.issueToken(user)
	if apiErr != nil {
		return nil, apiErr
	}

	user.PasswordHash = ""
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) createAccount(ctx context.Context, user *model.User) *apperrors.APIError {
	tx, err := s.settingsRepo.BeginTx(ctx)
	if err != nil {
		return apperrors.Internal("failed to create user")
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.userRepo.CreateTx(ctx, tx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.Conflict("email_exists", "email already registered")
		}
		logging.Errorf("auth: create user: %v", err)
		return apperrors.Internal("failed to create user")
	}
	if err := s.settingsRepo.UpsertTx(ctx, tx, user.ID, model.DefaultTimerSettings()); err != nil {
		logging.Errorf("auth: seed settings: %v", err)
		return apperrors.Internal("failed to initialize user settings")
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("failed to create user")
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail, ok := normalizeEmail(email)
	if !ok || password == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizedEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err != nil {
		logging.Errorf("auth: lookup %s: %v", normalizedEmail, err)
		return nil, apperrors.Internal("failed to query user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	token, apiErr := s.issueToken(*user)
	if apiErr != nil {
		return nil, apiErr
	}

	user.PasswordHash = ""
	return &AuthResult{Token: token, User: *user}, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, *apperrors.APIError) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		logging.Errorf("auth: load user %s: %v", userID, err)
		return nil, apperrors.Internal("failed to query user")
	}
	user.PasswordHash = ""
	return user, nil
}

// ParseToken validates an HS256 bearer token and returns its subject.
func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}
	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}
	return claims.Subject, nil
}

func (s *AuthService) issueToken(user model.User) (string, *apperrors.APIError) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}

// normalizeEmail lower-cases a bare address such as "Ada@Example.com".
func normalizeEmail(email string) (string, bool) {
	trimmed := strings.TrimSpace(email)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}
