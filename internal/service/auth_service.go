package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService for CRM operators.
type AuthServiceImpl struct {
	operatorRepo ports.OperatorRepository
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	operatorRepo ports.OperatorRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		operatorRepo: operatorRepo,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
	}
}

// Register creates a new operator account.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password, role string) (*domain.Operator, error) {
	if username == "" || len(password) < 8 {
		return nil, apperror.Validation("username is required and password must be at least 8 characters")
	}

	existing, err := s.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	operator := &domain.Operator{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create operator: %w", err))
	}

	return operator, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	operator, err := s.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find operator: %w", err))
	}
	if operator == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, operator.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(operator.ID, operator.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
