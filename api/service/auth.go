package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"videotasks/api/auth"
	"videotasks/api/dto"
	"videotasks/api/repository"
	"videotasks/api/validation"
	"videotasks/models"
)

type AuthService struct {
	repo       repository.Repository
	tokens     *auth.TokenIssuer
	iterations int
	logger     *zap.Logger
}

func NewAuthService(repo repository.Repository, tokens *auth.TokenIssuer, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:       repo,
		tokens:     tokens,
		iterations: auth.DefaultIterations,
		logger:     logger,
	}
}

// WithIterations overrides the PBKDF2 iteration count used for new hashes.
func (s *AuthService) WithIterations(n int) *AuthService {
	s.iterations = n
	return s
}

func (s *AuthService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.SignupResponse, error) {
	username, err := validation.Username(req.Username)
	if err != nil {
		return nil, err
	}
	email, err := validation.Email(req.Email)
	if err != nil {
		return nil, err
	}
	if err := validation.PasswordsMatch(req.Password1, req.Password2); err != nil {
		return nil, err
	}

	exists, err := s.repo.UserExists(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := auth.HashPassword(req.Password1, "", s.iterations)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, Email: email, Password: hash}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User created", zap.Int64("user_id", user.ID))

	return &dto.SignupResponse{
		Message:  "Usuario creado exitosamente",
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		IsActive: user.IsActive,
	}, nil
}

// Login accepts either a username or an email in req.Username. Both are
// matched case-insensitively against the stored lowercase values.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	identifier := validation.NormalizeIdentifier(req.Username)
	if identifier == "" {
		return nil, validation.ErrUsernameRequired
	}
	if req.Password == "" {
		return nil, validation.ErrPasswordRequired
	}

	var (
		user *models.User
		err  error
	)
	if validation.IsEmail(identifier) {
		user, err = s.repo.GetUserByEmail(ctx, identifier)
	} else {
		user, err = s.repo.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.VerifyPassword(req.Password, user.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{AccessToken: token}, nil
}
