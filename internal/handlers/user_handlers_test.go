package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/C0lies/carbook/internal/events"
	"github.com/C0lies/carbook/internal/hash"
	"github.com/C0lies/carbook/internal/models"
)

func newUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db, Producer: &events.Producer{}}
}

func asUser(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("email", user.Email)
	c.Set("role", user.Role)
}

func TestRegister_Success(t *testing.T) {
	db := initTestDB(t)
	h := newUserHandler(db)

	c, rec, _ := jsonContext(t, http.MethodPost, "/users", map[string]string{
		"email":    "new@example.com",
		"password": "secret1",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["userId"])

	var user models.User
	require.NoError(t, db.Where("email = ?", "new@example.com").First(&user).Error)
	require.Equal(t, "user", user.Role)
	require.NotEqual(t, "secret1", user.PasswordHash)
	require.True(t, hash.CheckPassword(user.PasswordHash, "secret1"))
}

func TestRegister_Validation(t *testing.T) {
	db := initTestDB(t)
	h := newUserHandler(db)

	cases := []struct {
		name string
		body map[string]string
		code int
	}{
		{"missing password", map[string]string{"email": "a@example.com"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "not-an-email", "password": "secret1"}, http.StatusBadRequest},
		{"short password", map[string]string{"email": "a@example.com", "password": "short"}, http.StatusBadRequest},
		{"bad role", map[string]string{"email": "a@example.com", "password": "secret1", "role": "root"}, http.StatusBadRequest},
		{"admin role by anonymous", map[string]string{"email": "a@example.com", "password": "secret1", "role": "admin"}, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _, _ := jsonContext(t, http.MethodPost, "/users", tc.body)
			err := h.Register(c)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok, "expected HTTPError")
			require.Equal(t, tc.code, he.Code)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db := initTestDB(t)
	createUser(t, db, "a@example.com", "secret1", "user")
	h := newUserHandler(db)

	c, _, _ := jsonContext(t, http.MethodPost, "/users", map[string]string{
		"email":    "a@example.com",
		"password": "secret1",
	})
	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestMe(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	h := newUserHandler(db)

	c, rec, _ := jsonContext(t, http.MethodGet, "/users/me", nil)
	asUser(c, user)

	require.NoError(t, h.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "a@example.com", resp["email"])
	require.NotContains(t, rec.Body.String(), user.PasswordHash)
}

func TestUserGet_SelfOrAdmin(t *testing.T) {
	db := initTestDB(t)
	alice := createUser(t, db, "alice@example.com", "secret1", "user")
	bob := createUser(t, db, "bob@example.com", "secret1", "user")
	admin := createUser(t, db, "admin@example.com", "secret1", "admin")
	h := newUserHandler(db)

	get := func(caller *models.User, targetID uint) (int, error) {
		c, rec, _ := jsonContext(t, http.MethodGet, "/users/:id", nil)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(targetID))
		asUser(c, caller)
		err := h.Get(c)
		return rec.Code, err
	}

	code, err := get(alice, alice.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)

	_, err = get(bob, alice.ID)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)

	code, err = get(admin, alice.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)
}

func TestUserUpdate(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	admin := createUser(t, db, "admin@example.com", "secret1", "admin")
	h := newUserHandler(db)

	update := func(caller *models.User, targetID uint, body map[string]string) error {
		c, _, _ := jsonContext(t, http.MethodPut, "/users/:id", body)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(targetID))
		asUser(c, caller)
		return h.Update(c)
	}

	// Self password change re-hashes.
	require.NoError(t, update(user, user.ID, map[string]string{"password": "newsecret"}))
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	require.True(t, hash.CheckPassword(reloaded.PasswordHash, "newsecret"))

	// Role change is admin-only.
	err := update(user, user.ID, map[string]string{"role": "admin"})
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)

	require.NoError(t, update(admin, user.ID, map[string]string{"role": "admin"}))
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	require.Equal(t, "admin", reloaded.Role)
}

func TestUserDelete_CascadesVehicles(t *testing.T) {
	db := initTestDB(t)
	user := createUser(t, db, "a@example.com", "secret1", "user")
	h := newUserHandler(db)

	for i := 0; i < 2; i++ {
		v := models.Vehicle{UserID: user.ID, CustomNumber: uint(i + 1), VIN: fmt.Sprintf("VIN%d", i)}
		require.NoError(t, db.Create(&v).Error)
	}

	c, rec, _ := jsonContext(t, http.MethodDelete, "/users/:id", nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(user.ID))
	asUser(c, user)

	require.NoError(t, h.Delete(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var users, vehicles int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Vehicle{}).Count(&vehicles).Error)
	require.Zero(t, users)
	require.Zero(t, vehicles)
}
