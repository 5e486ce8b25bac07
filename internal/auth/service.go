package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminSubject is the token subject issued to the operator.
const AdminSubject = "admin"

var (
	ErrInvalidCreds  = errors.New("invalid credentials")
	ErrLoginDisabled = errors.New("admin login is not configured")

	fallbackOnce   sync.Once
	fallbackSecret []byte
	fallbackErr    error
)

type LoginRequest struct {
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service checks the single admin password and issues HS256 tokens.
type Service struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewService uses secret for signing. An empty secret falls back to an
// ephemeral per-process key, so tokens do not survive a restart.
func NewService(passwordHash, secret string, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		var err error
		if key, err = ephemeralSecret(); err != nil {
			return nil, err
		}
		logger.Warn("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	return &Service{
		passwordHash: []byte(strings.TrimSpace(passwordHash)),
		secret:       key,
		ttl:          24 * time.Hour,
		now:          time.Now,
	}, nil
}

func ephemeralSecret() ([]byte, error) {
	fallbackOnce.Do(func() {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			fallbackErr = fmt.Errorf("failed to generate JWT fallback secret: %w", err)
			return
		}
		fallbackSecret = []byte(base64.RawURLEncoding.EncodeToString(buf))
	})
	return fallbackSecret, fallbackErr
}

func (s *Service) Login(req LoginRequest) (*AuthResponse, error) {
	if len(s.passwordHash) == 0 {
		return nil, ErrLoginDisabled
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}
	return s.generateToken(AdminSubject)
}

func (s *Service) generateToken(subject string) (*AuthResponse, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResponse{Token: signed, ExpiresAt: exp.UTC()}, nil
}

// Verify parses a token string and returns its subject.
func (s *Service) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	return claims.GetSubject()
}

// IssueToken signs a token for subject. Used by operator tools that hold the secret.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	s := &Service{secret: []byte(secret), ttl: ttl, now: time.Now}
	resp, err := s.generateToken(subject)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}
