package controllers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minetap/minetap/models"
)

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestInitUserCreatesAndIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodPost, "/initUser",
		`{"id": 123456, "username": "exampleUser", "first_name": "Example", "last_name": "User"}`)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w.Body.Bytes())
	require.NotEmpty(t, env.Data["token"])
	user := env.Data["user"].(map[string]interface{})
	require.Equal(t, float64(123456), user["telegramId"])
	require.Equal(t, "exampleUser", user["username"])

	// Re-contact returns the existing record unchanged even with new fields.
	w = performRequest(r, http.MethodPost, "/initUser",
		`{"id": 123456, "username": "renamed", "first_name": "Other"}`)
	require.Equal(t, http.StatusOK, w.Code)
	env = decodeEnvelope(t, w.Body.Bytes())
	user = env.Data["user"].(map[string]interface{})
	require.Equal(t, "exampleUser", user["username"])

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestInitUserDefaultsUsername(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodPost, "/initUser", `{"id": 42}`)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	user := env.Data["user"].(map[string]interface{})
	require.Equal(t, "user_42", user["username"])
}

func TestInitUserRejectsMissingID(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodPost, "/initUser", `{"username": "ghost"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestInitUserStripsHTMLFromNames(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodPost, "/initUser",
		`{"id": 7, "username": "<script>alert(1)</script>bob", "first_name": "<b>Bob</b>"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, db.Where("telegram_id = ?", 7).First(&user).Error)
	require.Equal(t, "bob", user.Username)
	require.Equal(t, "Bob", user.FirstName)
}

func TestGetUserIncludesMultiplier(t *testing.T) {
	db := setupTestDB(t)
	code := "5555555555"
	issued := time.Now()
	require.NoError(t, db.Create(&models.User{
		TelegramID:           9,
		Username:             "nine",
		Balance:              1.25,
		MiningActive:         true,
		DailyCode:            &code,
		DailyCodeGeneratedAt: &issued,
		CodeSubmissions:      2,
		HasSubmittedBonus:    true,
	}).Error)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodGet, "/user/9", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.InDelta(t, 1.7, env.Data["effectiveMultiplier"].(float64), 1e-9)
	require.InDelta(t, 1.25, env.Data["balance"].(float64), 1e-9)
	require.Equal(t, true, env.Data["miningActive"])
	require.Equal(t, "5555555555", env.Data["dailyCode"])
}

func TestGetUserNotFound(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodGet, "/user/404404", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(r, http.MethodGet, "/user/notanumber", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTotalMinedSumsBalances(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.User{TelegramID: 1, Username: "a", Balance: 1.5}).Error)
	require.NoError(t, db.Create(&models.User{TelegramID: 2, Username: "b", Balance: 2.25}).Error)
	require.NoError(t, db.Create(&models.User{TelegramID: 3, Username: "c"}).Error)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodGet, "/totalMined", "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.InDelta(t, 3.75, env.Data["totalMined"].(float64), 1e-9)
}
