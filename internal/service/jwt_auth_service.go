package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"go-user-template/internal/metrics"
	"go-user-template/internal/model"
)

const (
	tokenTypeBearer = "bearer"
	refreshHeader   = "refresh"

	claimUserID  = "userId"
	claimName    = "name"
	claimGroupID = "groupId"
	claimRoles   = "roles"
)

type TokenConfig struct {
	Secret              string
	AccessExpirationMs  int64
	RefreshExpirationMs int64
}

type IdentityStore interface {
	FindByUsernameActive(ctx context.Context, username string) (model.User, error)
}

type RoleLister interface {
	FindAllByUserID(ctx context.Context, userID int64) ([]int64, error)
}

// JWTAuthService issues and validates HS256 session tokens. It keeps no
// per-token state; a token is valid until it expires.
type JWTAuthService struct {
	secret              []byte
	accessExpirationMs  int64
	refreshExpirationMs int64
	users               IdentityStore
	roles               RoleLister
	parser              *jwt.Parser
	now                 func() time.Time
}

func NewJWTAuthService(cfg TokenConfig, users IdentityStore, roles RoleLister) (*JWTAuthService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessExpirationMs <= 0 || cfg.RefreshExpirationMs <= 0 {
		return nil, errors.New("token expirations must be positive")
	}

	s := &JWTAuthService{
		secret:              []byte(cfg.Secret),
		accessExpirationMs:  cfg.AccessExpirationMs,
		refreshExpirationMs: cfg.RefreshExpirationMs,
		users:               users,
		roles:               roles,
		now:                 time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithJSONNumber(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)

	return s, nil
}

// GenerateTokenPair signs an access and a refresh token carrying the same
// identity claims. Only the refresh token has the refresh header marker.
func (s *JWTAuthService) GenerateTokenPair(user model.TokenUser) (model.TokenPair, error) {
	if strings.TrimSpace(user.Username) == "" {
		return model.TokenPair{}, fmt.Errorf("%w: username is required", model.ErrMalformedClaims)
	}

	now := s.now()

	accessToken, err := s.sign(user, now.Add(time.Duration(s.accessExpirationMs)*time.Millisecond), false)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.sign(user, now.Add(time.Duration(s.refreshExpirationMs)*time.Millisecond), true)
	if err != nil {
		return model.TokenPair{}, err
	}

	metrics.TokensIssuedTotal.WithLabelValues("access").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()

	return model.TokenPair{
		TokenType:        tokenTypeBearer,
		ExpiresIn:        s.accessExpirationMs,
		RefreshExpiresIn: s.refreshExpirationMs,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
	}, nil
}

// ParseToken verifies the token and rebuilds the identity from its claims.
// The returned identity never carries a password hash.
func (s *JWTAuthService) ParseToken(tokenString string) (model.TokenUser, error) {
	token, err := s.verify(tokenString)
	if err != nil {
		return model.TokenUser{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.TokenUser{}, fmt.Errorf("%w: unexpected claims type", model.ErrMalformedClaims)
	}

	return identityFromClaims(claims)
}

// IsRefreshToken reports whether the token verifies and carries the refresh
// marker. Any validation failure yields false.
func (s *JWTAuthService) IsRefreshToken(tokenString string) bool {
	token, err := s.verify(tokenString)
	if err != nil {
		return false
	}

	marker, ok := token.Header[refreshHeader].(bool)
	return ok && marker
}

// ResolveIdentity loads an active user by username together with its role ids.
func (s *JWTAuthService) ResolveIdentity(ctx context.Context, username string) (model.TokenUser, error) {
	user, err := s.users.FindByUsernameActive(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenUser{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenUser{}, fmt.Errorf("resolve identity: %w", err)
	}

	roles, err := s.roles.FindAllByUserID(ctx, user.ID)
	if err != nil {
		return model.TokenUser{}, fmt.Errorf("resolve identity roles: %w", err)
	}

	return model.TokenUser{
		ID:           user.ID,
		Name:         user.Name,
		Username:     user.Email,
		PasswordHash: user.PasswordHash,
		GroupID:      user.GroupID,
		Roles:        roles,
	}, nil
}

// Authenticate checks a username/password pair and issues a token pair.
func (s *JWTAuthService) Authenticate(ctx context.Context, username string, password string) (model.TokenPair, error) {
	identity, err := s.ResolveIdentity(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			metrics.AuthFailuresTotal.WithLabelValues("invalid_credentials").Inc()
		}
		return model.TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_credentials").Inc()
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	return s.GenerateTokenPair(identity)
}

// Refresh exchanges a refresh token for a new pair. The identity is resolved
// again so deactivated users cannot keep refreshing.
func (s *JWTAuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if !s.IsRefreshToken(refreshToken) {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
		return model.TokenPair{}, fmt.Errorf("%w: not a refresh token", model.ErrInvalidToken)
	}

	claimed, err := s.ParseToken(refreshToken)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("malformed_claims").Inc()
		return model.TokenPair{}, err
	}

	identity, err := s.ResolveIdentity(ctx, claimed.Username)
	if err != nil {
		return model.TokenPair{}, err
	}

	return s.GenerateTokenPair(identity)
}

func (s *JWTAuthService) sign(user model.TokenUser, expiresAt time.Time, refresh bool) (string, error) {
	roles := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, strconv.FormatInt(role, 10))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.Username,
		"exp":        expiresAt.Unix(),
		claimUserID:  user.ID,
		claimName:    user.Name,
		claimGroupID: user.GroupID,
		claimRoles:   strings.Join(roles, ","),
	})
	if refresh {
		token.Header[refreshHeader] = true
	}

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTAuthService) verify(tokenString string) (*jwt.Token, error) {
	token, err := s.parser.Parse(strings.TrimSpace(tokenString), func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, model.ErrInvalidToken
	}
	return token, nil
}

func identityFromClaims(claims jwt.MapClaims) (model.TokenUser, error) {
	var user model.TokenUser
	var err error

	if user.ID, err = int64Claim(claims, claimUserID); err != nil {
		return model.TokenUser{}, err
	}
	if user.GroupID, err = int64Claim(claims, claimGroupID); err != nil {
		return model.TokenUser{}, err
	}
	if user.Name, err = stringClaim(claims, claimName); err != nil {
		return model.TokenUser{}, err
	}
	if user.Username, err = stringClaim(claims, "sub"); err != nil {
		return model.TokenUser{}, err
	}

	rawRoles, err := stringClaim(claims, claimRoles)
	if err != nil {
		return model.TokenUser{}, err
	}
	if user.Roles, err = parseRoles(rawRoles); err != nil {
		return model.TokenUser{}, err
	}

	return user, nil
}

func stringClaim(claims jwt.MapClaims, key string) (string, error) {
	value, ok := claims[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s missing", model.ErrMalformedClaims, key)
	}
	return value, nil
}

func int64Claim(claims jwt.MapClaims, key string) (int64, error) {
	switch value := claims[key].(type) {
	case json.Number:
		n, err := value.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not an integer", model.ErrMalformedClaims, key)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not an integer", model.ErrMalformedClaims, key)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%w: %s missing", model.ErrMalformedClaims, key)
	default:
		return 0, fmt.Errorf("%w: %s has type %T", model.ErrMalformedClaims, key, value)
	}
}

// parseRoles reads the comma-joined role list. An empty string is no roles.
func parseRoles(raw string) ([]int64, error) {
	roles := make([]int64, 0)
	if strings.TrimSpace(raw) == "" {
		return roles, nil
	}

	for _, part := range strings.Split(raw, ",") {
		role, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: roles contains %q", model.ErrMalformedClaims, part)
		}
		roles = append(roles, role)
	}
	return roles, nil
}
