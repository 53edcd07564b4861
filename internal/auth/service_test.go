package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/C0lies/carbook/internal/hash"
	"github.com/C0lies/carbook/internal/models"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Vehicle{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email, password, role string) *models.User {
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)

	user := models.User{Email: email, PasswordHash: pwHash, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func newService(db *gorm.DB) *TokenService {
	return &TokenService{
		DB:            db,
		AccessSecret:  []byte("access-test-secret"),
		RefreshSecret: []byte("refresh-test-secret"),
	}
}

func TestIssueTokens_RoundTrip(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	svc := newService(db)

	pair, err := svc.IssueTokens(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "a@example.com", claims.Email)
	require.Equal(t, "user", claims.Role)
	require.NotNil(t, claims.IssuedAt)
	require.WithinDuration(t, time.Now().Add(AccessTokenTTL), claims.ExpiresAt.Time, time.Minute)

	refreshClaims, err := RefreshClaimsFromToken(pair.RefreshToken, svc.RefreshSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID, refreshClaims.UserID)
	require.WithinDuration(t, time.Now().Add(RefreshTokenTTL), refreshClaims.ExpiresAt.Time, time.Minute)
}

func TestIssueTokens_InvalidCredentials(t *testing.T) {
	db := initTestDB(t)
	createUser(t, db, "a@example.com", "secret1", "user")
	svc := newService(db)

	// Unknown email and wrong password must be indistinguishable.
	_, err := svc.IssueTokens(context.Background(), "nobody@example.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.IssueTokens(context.Background(), "a@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIssueTokens_SecretMissing(t *testing.T) {
	db := initTestDB(t)
	createUser(t, db, "a@example.com", "secret1", "user")
	svc := &TokenService{DB: db}

	_, err := svc.IssueTokens(context.Background(), "a@example.com", "secret1")
	require.ErrorIs(t, err, ErrSecretMissing)
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	svc := newService(db)

	claims := AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.AccessSecret)
	require.NoError(t, err)

	// Correctly signed but expired is still ErrTokenInvalid.
	_, err = svc.VerifyAccessToken(expired)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessToken_Rejections(t *testing.T) {
	db := initTestDB(t)
	createUser(t, db, "a@example.com", "secret1", "user")
	svc := newService(db)

	_, err := svc.VerifyAccessToken("")
	require.ErrorIs(t, err, ErrTokenMissing)

	_, err = svc.VerifyAccessToken("not-a-jwt")
	require.ErrorIs(t, err, ErrTokenInvalid)

	other := &TokenService{DB: db, AccessSecret: []byte("other-secret"), RefreshSecret: svc.RefreshSecret}
	pair, err := svc.IssueTokens(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	_, err = other.VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = (&TokenService{DB: db}).VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrSecretMissing)
}

func TestRefreshAccessToken(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	svc := newService(db)

	pair, err := svc.IssueTokens(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)

	newAccess, err := svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(newAccess)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "a@example.com", claims.Email)
}

func TestRefreshAccessToken_PicksUpRoleChange(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	svc := newService(db)

	pair, err := svc.IssueTokens(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, db.Model(user).Update("role", "admin").Error)

	newAccess, err := svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(newAccess)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)
}

func TestRefreshAccessToken_Rejections(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	svc := newService(db)

	pair, err := svc.IssueTokens(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.RefreshAccessToken(context.Background(), "")
	require.ErrorIs(t, err, ErrTokenMissing)

	// An access token is signed with the other secret and must not
	// pass as a refresh token.
	_, err = svc.RefreshAccessToken(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// User deleted after issuance: a legitimate race, distinct error.
	require.NoError(t, db.Delete(user).Error)
	_, err = svc.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefreshCookie(t *testing.T) {
	exp := time.Now().Add(RefreshTokenTTL)

	dev := RefreshCookie("token-value", exp, false)
	require.Equal(t, RefreshCookieName, dev.Name)
	require.True(t, dev.HttpOnly)
	require.False(t, dev.Secure)
	require.Equal(t, http.SameSiteLaxMode, dev.SameSite)
	require.Equal(t, int(RefreshTokenTTL.Seconds()), dev.MaxAge)

	prod := RefreshCookie("token-value", exp, true)
	require.True(t, prod.Secure)
	require.Equal(t, http.SameSiteNoneMode, prod.SameSite)

	cleared := ClearRefreshCookie(false)
	require.Equal(t, RefreshCookieName, cleared.Name)
	require.Empty(t, cleared.Value)
	require.Equal(t, -1, cleared.MaxAge)
}
