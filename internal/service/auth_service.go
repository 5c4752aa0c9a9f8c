package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/passport_api/internal/config"
)

// OperatorClaims are the claims carried by an operator token.
type OperatorClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService authenticates the operator and issues HS256 tokens.
type AuthService struct {
	cfg *config.AuthConfig
	now func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg *config.AuthConfig) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// Login checks the operator credentials and returns a signed token.
func (s *AuthService) Login(username, password string) (string, error) {
	log.Debug().Str("username", username).Msg("Login attempt")

	if subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.OperatorUsername)) != 1 {
		log.Warn().Str("username", username).Msg("Unknown operator")
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorPasswordHash), []byte(password)); err != nil {
		log.Warn().Str("username", username).Msg("Password verification failed")
		return "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(username)
	if err != nil {
		return "", err
	}
	log.Info().Str("username", username).Msg("Login successful")
	return token, nil
}

// IssueToken signs a token for username valid for the configured TTL.
func (s *AuthService) IssueToken(username string) (string, error) {
	now := s.now()
	claims := OperatorClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token.
func (s *AuthService) ValidateToken(tokenString string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash to put in OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
