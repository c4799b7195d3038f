package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
)

type loginCodeSender interface {
	SendLoginCode(ctx context.Context, email, code string) error
}

// AuthConfig defines configuration for the one-time-code login flow.
type AuthConfig struct {
	JWTSecret     string
	SessionExpiry time.Duration
	CodeExpiry    time.Duration
	CodeLength    int
	AdminEmails   []string
	Issuer        string
}

// AuthService issues one-time login codes to allow-listed administrators
// and exchanges them for signed session tokens. Codes live in Redis only
// as bcrypt hashes and are consumed on first successful verification.
type AuthService struct {
	redis     *redis.Client
	sender    loginCodeSender
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	admins    map[string]struct{}
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(redisClient *redis.Client, sender loginCodeSender, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.CodeLength <= 0 {
		config.CodeLength = 6
	}
	if config.CodeExpiry <= 0 {
		config.CodeExpiry = 10 * time.Minute
	}
	if config.SessionExpiry <= 0 {
		config.SessionExpiry = 24 * time.Hour
	}
	admins := make(map[string]struct{}, len(config.AdminEmails))
	for _, email := range config.AdminEmails {
		admins[trimLower(email)] = struct{}{}
	}
	return &AuthService{
		redis:     redisClient,
		sender:    sender,
		validator: validate,
		logger:    logger,
		config:    config,
		admins:    admins,
	}
}

// RequestCode generates a login code for an authorized email and mails it.
func (s *AuthService) RequestCode(ctx context.Context, req models.RequestCodeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login request")
	}

	email := trimLower(req.Email)
	if _, ok := s.admins[email]; !ok {
		return appErrors.Clone(appErrors.ErrNotAuthorized, "email is not an authorized administrator")
	}

	code, err := s.generateCode()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate login code")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash login code")
	}

	if err := s.redis.Set(ctx, codeKey(email), string(hash), s.config.CodeExpiry).Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to store login code")
	}

	if err := s.sender.SendLoginCode(ctx, email, code); err != nil {
		// The stored hash is useless without the mail, drop it.
		if delErr := s.redis.Del(ctx, codeKey(email)).Err(); delErr != nil {
			s.logger.Warn("failed to clean up undeliverable login code", zap.Error(delErr))
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to send login code")
	}

	s.logger.Info("login code issued", zap.String("email", email))
	return nil
}

// VerifyCode exchanges a valid code for a session token, consuming the code.
func (s *AuthService) VerifyCode(ctx context.Context, req models.VerifyCodeRequest) (*models.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification request")
	}

	email := trimLower(req.Email)
	if _, ok := s.admins[email]; !ok {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "email is not an authorized administrator")
	}

	stored, err := s.redis.Get(ctx, codeKey(email)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidCode, "invalid or expired login code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load login code")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(strings.TrimSpace(req.Code))); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCode, "invalid or expired login code")
	}

	if err := s.redis.Del(ctx, codeKey(email)).Err(); err != nil {
		s.logger.Warn("failed to consume login code", zap.Error(err))
	}

	token, expiresAt, err := s.generateSessionToken(email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}

	s.logger.Info("session issued", zap.String("email", email))
	return &models.SessionResponse{Token: token, ExpiresAt: expiresAt.Unix()}, nil
}

// ValidateToken parses and validates a session token returning the claims.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.SessionClaims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	// A token outlives allow-list edits otherwise.
	if _, admin := s.admins[trimLower(claims.Email)]; !admin {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "email is no longer an authorized administrator")
	}

	if s.redis != nil && claims.ID != "" {
		revoked, err := s.redis.Exists(ctx, revokedKey(claims.ID)).Result()
		if err != nil {
			s.logger.Warn("failed to check session revocation", zap.Error(err))
		} else if revoked > 0 {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session has been revoked")
		}
	}

	return claims, nil
}

// Logout revokes the session. The token's id goes on a Redis denylist until
// the moment it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return err
	}

	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 || claims.ID == "" {
		return nil
	}

	if s.redis == nil {
		return appErrors.Clone(appErrors.ErrUnavailable, "session store is not available")
	}
	if err := s.redis.Set(ctx, revokedKey(claims.ID), "1", ttl).Err(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to revoke session")
	}

	s.logger.Info("session revoked", zap.String("email", claims.Email))
	return nil
}

func (s *AuthService) parseToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateSessionToken(email string) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.SessionExpiry)
	claims := &models.SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) generateCode() (string, error) {
	digits := make([]byte, s.config.CodeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

func codeKey(email string) string {
	return "login_code:" + email
}

func revokedKey(jti string) string {
	return "revoked_session:" + jti
}
