package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/OfirPatish/Chattrix-sub000/internal/blacklist"
	"github.com/OfirPatish/Chattrix-sub000/internal/logger"
)

// TokenKind distinguishes the two token families the service issues
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Default token lifetimes
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")

	log = logger.New("auth")
)

// Claims represents the claims carried by both token kinds
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Service issues and verifies access and refresh tokens. Every
// verification path consults the blacklist before trusting the
// signature, so a revoked token fails even before its natural expiry.
type Service struct {
	accessKey  []byte
	refreshKey []byte
	blacklist  blacklist.Store

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a token service. The refresh key may equal the
// access key, but the two token kinds are still independently verifiable.
func NewService(accessKey, refreshKey []byte, bl blacklist.Store) *Service {
	return &Service{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		blacklist:  bl,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
	}
}

// SetTTLs overrides the token lifetimes, mainly for tests
func (s *Service) SetTTLs(access, refresh time.Duration) {
	s.accessTTL = access
	s.refreshTTL = refresh
}

// IssueAccessToken creates a short-lived access token for a user
func (s *Service) IssueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	return s.issue(userID, s.accessKey, s.accessTTL)
}

// IssueRefreshToken creates a long-lived refresh token for a user
func (s *Service) IssueRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	return s.issue(userID, s.refreshKey, s.refreshTTL)
}

func (s *Service) issue(userID uuid.UUID, key []byte, ttl time.Duration) (string, time.Time, error) {
	if userID == uuid.Nil {
		return "", time.Time{}, errors.New("user ID cannot be empty")
	}

	expirationTime := time.Now().Add(ttl)

	claims := &Claims{
		ID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(key)

	return tokenString, expirationTime, err
}

// Verify validates a token of the given kind and returns the user ID it
// carries. Returns ErrTokenRevoked, ErrTokenExpired or ErrTokenInvalid.
func (s *Service) Verify(ctx context.Context, tokenString string, kind TokenKind) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, ErrTokenInvalid
	}

	revoked, err := s.blacklist.Contains(ctx, tokenString)
	if err != nil {
		return uuid.Nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return uuid.Nil, ErrTokenRevoked
	}

	key := s.accessKey
	if kind == TokenKindRefresh {
		key = s.refreshKey
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		log.Debug("Token validation error: %v", err)
		return uuid.Nil, ErrTokenInvalid
	}

	if !token.Valid {
		return uuid.Nil, ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}

	return userID, nil
}

// Revoke blacklists a token until its own expiry, so the blacklist
// entry dies together with the token. A token whose expiry cannot be
// read is blacklisted for the refresh lifetime as a conservative bound.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	if tokenString == "" {
		return nil
	}

	expiresAt := time.Now().Add(s.refreshTTL)

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.blacklist.Add(ctx, tokenString, expiresAt); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}
