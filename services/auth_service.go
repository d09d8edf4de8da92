package services

import (
	"fmt"
	"time"

	"dm-lab/auth"
	apperrors "dm-lab/errors"
	"dm-lab/repositories"
)

type IAuthService interface {
	Register(req auth.RegisterRequest) (Token, error)
	Login(username, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokenDuration  time.Duration
}

type Token string

func NewAuthService(repo repositories.IUserRepository, tokenDuration time.Duration) IAuthService {
	return &AuthService{userRepository: repo, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(req auth.RegisterRequest) (Token, error) {
	// 1. Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(req); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidPassword, err)
	}

	// 2. Hash the password here so the repository never sees plain text.
	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the account. ErrUserAlreadyExists propagates as-is.
	userID, err := s.userRepository.CreateUser(req.Username, req.DisplayName, req.AvatarURL, hashedPassword)
	if err != nil {
		return "", err
	}

	// 4. Issue the initial session token.
	token, err := auth.GenerateToken(userID, req.Username, s.tokenDuration)
	if err != nil {
		return "", apperrors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	record, err := s.userRepository.GetCredentials(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks.
		return "", apperrors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, record.PasswordHash)
	if err != nil || !match {
		return "", apperrors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(record.ID, record.Username, s.tokenDuration)
	if err != nil {
		return "", apperrors.ErrTokenGeneration
	}
	return Token(token), nil
}
