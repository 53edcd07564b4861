package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/C0lies/carbook/internal/hash"
	"github.com/C0lies/carbook/internal/models"
)

const (
	AccessTokenTTL  = 30 * time.Minute
	RefreshTokenTTL = 24 * time.Hour
)

// TokenService issues, verifies and refreshes the two token kinds.
// The secrets are deliberately separate: a leaked access secret cannot
// be used to forge refresh tokens and vice versa.
type TokenService struct {
	DB            *gorm.DB
	AccessSecret  []byte
	RefreshSecret []byte
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	RefreshExp   time.Time
}

// IssueTokens validates credentials and mints both tokens. Unknown email
// and wrong password return the same ErrInvalidCredentials.
func (s *TokenService) IssueTokens(ctx context.Context, email, password string) (*TokenPair, error) {
	if len(s.AccessSecret) == 0 || len(s.RefreshSecret) == 0 {
		return nil, ErrSecretMissing
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	accessToken, err := s.signAccessToken(&user, now)
	if err != nil {
		return nil, err
	}

	refreshExp := now.Add(RefreshTokenTTL)
	refreshClaims := RefreshClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
	}, nil
}

// VerifyAccessToken checks signature and expiry only; the caller decides
// whether the referenced user still exists.
func (s *TokenService) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	if len(s.AccessSecret) == 0 {
		return nil, ErrSecretMissing
	}
	if tokenStr == "" {
		return nil, ErrTokenMissing
	}
	return AccessClaimsFromToken(tokenStr, s.AccessSecret)
}

// RefreshAccessToken mints a new access token from a valid refresh token.
// The refresh token itself is neither rotated nor extended. The user is
// looked up again so that a deleted account stops refreshing immediately
// and a role change shows up in the new access token.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if len(s.AccessSecret) == 0 || len(s.RefreshSecret) == 0 {
		return "", ErrSecretMissing
	}
	if refreshToken == "" {
		return "", ErrTokenMissing
	}

	claims, err := RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return "", err
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", claims.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	return s.signAccessToken(&user, time.Now())
}

func (s *TokenService) signAccessToken(user *models.User, now time.Time) (string, error) {
	claims := AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.AccessSecret)
}
