package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minetap/minetap/models"
)

func TestToggleMiningIssuesCode(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.User{TelegramID: 1, Username: "alice", CodeSubmissions: 4, HasSubmittedBonus: true}).Error)

	t0 := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	r := setupRouter(db, func() time.Time { return t0 })

	w := performRequest(r, http.MethodPost, "/toggleMining", `{"telegramId": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "Mining started", env.Message)

	var user models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&user).Error)
	require.True(t, user.MiningActive)
	require.NotNil(t, user.DailyCode)
	require.Len(t, *user.DailyCode, 10)
	require.NotNil(t, user.DailyCodeGeneratedAt)
	require.Equal(t, t0.Unix(), user.DailyCodeGeneratedAt.Unix())
	// fresh mining session implies fresh bonus eligibility
	require.Zero(t, user.CodeSubmissions)
	require.False(t, user.HasSubmittedBonus)
}

func TestToggleMiningRejectsWhenAlreadyActive(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.User{TelegramID: 1, Username: "alice"}).Error)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodPost, "/toggleMining", `{"telegramId": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var before models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&before).Error)

	w = performRequest(r, http.MethodPost, "/toggleMining", `{"telegramId": 1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "Mining already active.", env.Message)

	var after models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&after).Error)
	require.Equal(t, *before.DailyCode, *after.DailyCode)
	require.Equal(t, before.DailyCodeGeneratedAt.Unix(), after.DailyCodeGeneratedAt.Unix())
	require.Equal(t, before.CodeSubmissions, after.CodeSubmissions)
	require.Equal(t, before.HasSubmittedBonus, after.HasSubmittedBonus)
}

func TestToggleMiningUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodPost, "/toggleMining", `{"telegramId": 99}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(r, http.MethodPost, "/toggleMining", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueUniqueCodeRegeneratesOnCollision(t *testing.T) {
	db := setupTestDB(t)
	taken := "4444444444"
	issued := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.User{
		TelegramID:           1,
		Username:             "alice",
		MiningActive:         true,
		DailyCode:            &taken,
		DailyCodeGeneratedAt: &issued,
	}).Error)

	mc := NewMiningController(db)
	draws := 0
	mc.genCode = func() string {
		draws++
		if draws == 1 {
			return taken
		}
		return "7777777777"
	}

	code, err := mc.issueUniqueCode(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, "7777777777", code, "first draw collides with alice's code and is redrawn")
	require.Equal(t, 2, draws)
}

func TestIssueUniqueCodeGivesUpAfterFiveDraws(t *testing.T) {
	db := setupTestDB(t)
	taken := "4444444444"
	issued := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.User{
		TelegramID:           1,
		Username:             "alice",
		MiningActive:         true,
		DailyCode:            &taken,
		DailyCodeGeneratedAt: &issued,
	}).Error)

	mc := NewMiningController(db)
	draws := 0
	mc.genCode = func() string {
		draws++
		return taken
	}

	code, err := mc.issueUniqueCode(24 * time.Hour)
	require.Error(t, err)
	require.Empty(t, code)
	require.Equal(t, 5, draws)
}

func TestActivateMiningOnlyWinsOnInactiveRow(t *testing.T) {
	db := setupTestDB(t)
	held := "5556667778"
	issued := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.User{
		TelegramID:           1,
		Username:             "alice",
		MiningActive:         true,
		DailyCode:            &held,
		DailyCodeGeneratedAt: &issued,
		CodeSubmissions:      3,
	}).Error)
	require.NoError(t, db.Create(&models.User{TelegramID: 2, Username: "bob"}).Error)

	mc := NewMiningController(db)

	// An already-active row never matches the conditional update, so a
	// racing second toggle cannot replace the live code.
	ok, err := mc.activateMining(1, "0000000001", issued.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, ok)

	var alice models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	require.Equal(t, held, *alice.DailyCode)
	require.Equal(t, 3, alice.CodeSubmissions)

	ok, err = mc.activateMining(2, "0000000002", issued.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	var bob models.User
	require.NoError(t, db.Where("telegram_id = ?", 2).First(&bob).Error)
	require.True(t, bob.MiningActive)
	require.Equal(t, "0000000002", *bob.DailyCode)
}

func TestSubmitCodeScenario(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.User{TelegramID: 1, Username: "alice"}).Error)
	require.NoError(t, db.Create(&models.User{TelegramID: 2, Username: "bob", Balance: 0.5}).Error)

	t0 := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	r := setupRouter(db, func() time.Time { return now })

	// Alice starts mining and receives a code at T0.
	w := performRequest(r, http.MethodPost, "/toggleMining", `{"telegramId": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var alice models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	code := *alice.DailyCode

	// Bob redeems it at T0+1h.
	now = t0.Add(time.Hour)
	w = performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 2, "code": "`+code+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "Code submitted successfully.", env.Message)

	var bob models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	require.NoError(t, db.Where("telegram_id = ?", 2).First(&bob).Error)
	require.Equal(t, 1, alice.CodeSubmissions)
	require.True(t, bob.HasSubmittedBonus)
	// everything else is untouched
	require.True(t, alice.MiningActive)
	require.Equal(t, code, *alice.DailyCode)
	require.False(t, alice.HasSubmittedBonus)
	require.InDelta(t, 0.5, bob.Balance, 1e-9)
	require.Zero(t, bob.CodeSubmissions)
	require.False(t, bob.MiningActive)

	// A second redemption at T0+2h is rejected and changes nothing.
	now = t0.Add(2 * time.Hour)
	w = performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 2, "code": "`+code+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env = decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "You have already submitted a code today.", env.Message)

	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	require.Equal(t, 1, alice.CodeSubmissions)
}

func TestSubmitCodeExpired(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.User{TelegramID: 1, Username: "alice"}).Error)
	require.NoError(t, db.Create(&models.User{TelegramID: 2, Username: "bob"}).Error)

	t0 := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	r := setupRouter(db, func() time.Time { return now })

	w := performRequest(r, http.MethodPost, "/toggleMining", `{"telegramId": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var alice models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	code := *alice.DailyCode

	// 25 hours later the stored string still matches but the code is stale.
	now = t0.Add(25 * time.Hour)
	w = performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 2, "code": "`+code+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "Code expired.", env.Message)

	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	require.Zero(t, alice.CodeSubmissions)
}

func TestSubmitCodeRejectsOwnCode(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.User{TelegramID: 1, Username: "alice"}).Error)
	r := setupRouter(db, time.Now)

	w := performRequest(r, http.MethodPost, "/toggleMining", `{"telegramId": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var alice models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)

	w = performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 1, "code": "`+*alice.DailyCode+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "You cannot submit your own code.", env.Message)
}

func TestSubmitCodeInvalidAndMalformed(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.User{TelegramID: 2, Username: "bob"}).Error)
	r := setupRouter(db, time.Now)

	// Unknown 10-digit code.
	w := performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 2, "code": "1234567890"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "Invalid code.", env.Message)

	// Wrong length is rejected before any lookup.
	w = performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 2, "code": "12345"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown submitter.
	w = performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 404, "code": "1234567890"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitCodeLimitReached(t *testing.T) {
	db := setupTestDB(t)
	code := "9876543210"
	issued := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.User{
		TelegramID:           1,
		Username:             "alice",
		MiningActive:         true,
		DailyCode:            &code,
		DailyCodeGeneratedAt: &issued,
		CodeSubmissions:      models.MaxCodeSubmissions,
	}).Error)
	require.NoError(t, db.Create(&models.User{TelegramID: 2, Username: "bob"}).Error)

	r := setupRouter(db, func() time.Time { return issued.Add(time.Hour) })

	w := performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 2, "code": "9876543210"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	require.Equal(t, "This code has reached the maximum submission limit.", env.Message)

	var alice, bob models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	require.NoError(t, db.Where("telegram_id = ?", 2).First(&bob).Error)
	require.Equal(t, models.MaxCodeSubmissions, alice.CodeSubmissions)
	require.False(t, bob.HasSubmittedBonus)
}

func TestSubmitCodeTenthRedemptionSucceeds(t *testing.T) {
	db := setupTestDB(t)
	code := "1112223334"
	issued := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.User{
		TelegramID:           1,
		Username:             "alice",
		MiningActive:         true,
		DailyCode:            &code,
		DailyCodeGeneratedAt: &issued,
		CodeSubmissions:      models.MaxCodeSubmissions - 1,
	}).Error)
	require.NoError(t, db.Create(&models.User{TelegramID: 2, Username: "bob"}).Error)

	r := setupRouter(db, func() time.Time { return issued.Add(time.Hour) })

	w := performRequest(r, http.MethodPost, "/submitCode",
		`{"submitterTelegramId": 2, "code": "1112223334"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var alice models.User
	require.NoError(t, db.Where("telegram_id = ?", 1).First(&alice).Error)
	require.Equal(t, models.MaxCodeSubmissions, alice.CodeSubmissions)
}
