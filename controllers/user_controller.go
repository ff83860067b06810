package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/minetap/minetap/config"
	"github.com/minetap/minetap/middleware"
	"github.com/minetap/minetap/models"
	"github.com/minetap/minetap/utils"
)

// UserController handles identity bootstrap and account queries.
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a new controller instance.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

type initUserRequest struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// InitUser initializes a session from Telegram identity data. Creating is
// idempotent: a second call with the same id returns the existing record
// unchanged. When a bot token is configured and the login widget hash is
// present, the payload signature is verified before the identity is trusted.
func (a *UserController) InitUser(ctx *gin.Context) {
	var req initUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.ID == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid Telegram user data")
		return
	}

	cfg := config.Get()
	if cfg.TelegramBotToken != "" && req.Hash != "" {
		auth := utils.TelegramAuth{
			ID:        req.ID,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			PhotoURL:  req.PhotoURL,
			AuthDate:  req.AuthDate,
			Hash:      req.Hash,
		}
		if !utils.VerifyTelegramSignature(cfg.TelegramBotToken, auth) {
			utils.Error(ctx, http.StatusUnauthorized, 40108, "invalid telegram signature")
			return
		}
		if time.Since(time.Unix(req.AuthDate, 0)) > 5*time.Minute {
			utils.Error(ctx, http.StatusUnauthorized, 40109, "telegram login expired")
			return
		}
	}

	var user models.User
	err := a.db.Where("telegram_id = ?", req.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		username := strings.TrimSpace(utils.Sanitize(req.Username))
		if username == "" {
			username = "user_" + strconv.FormatInt(req.ID, 10)
		}
		user = models.User{
			TelegramID: req.ID,
			Username:   username,
			FirstName:  strings.TrimSpace(utils.Sanitize(req.FirstName)),
			LastName:   strings.TrimSpace(utils.Sanitize(req.LastName)),
		}
		if err := a.db.Create(&user).Error; err != nil {
			utils.Sugar.Errorf("initUser: failed to create user %d: %v", req.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50001, "internal server error")
			return
		}
	} else if err != nil {
		utils.Sugar.Errorf("initUser: lookup failed for %d: %v", req.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "internal server error")
		return
	}

	token, err := utils.GenerateToken(user.TelegramID, user.Username, 72*time.Hour)
	if err != nil {
		utils.Sugar.Errorf("initUser: token generation failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "internal server error")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// GetUser returns account state plus the derived effective multiplier.
func (a *UserController) GetUser(ctx *gin.Context) {
	telegramID, err := strconv.ParseInt(ctx.Param("telegramId"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid telegram id")
		return
	}

	var user models.User
	if err := a.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Sugar.Errorf("getUser: lookup failed for %d: %v", telegramID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50003, "internal server error")
		return
	}

	utils.Success(ctx, userView(&user))
}

// Me returns the account matching the authenticated session token.
func (a *UserController) Me(ctx *gin.Context) {
	telegramID, exists := ctx.Get(middleware.ContextTelegramIDKey)
	if !exists {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	utils.Success(ctx, userView(&user))
}

// userView shapes the public account payload polled by the client.
func userView(u *models.User) gin.H {
	return gin.H{
		"telegramId":          u.TelegramID,
		"username":            u.Username,
		"balance":             u.Balance,
		"miningActive":        u.MiningActive,
		"effectiveMultiplier": u.EffectiveMultiplier(),
		"dailyCode":           u.DailyCode,
	}
}
