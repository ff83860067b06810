package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minetap/minetap/config"
	"github.com/minetap/minetap/models"
	"github.com/minetap/minetap/utils"
)

// MiningController handles mining activation and daily-code redemption.
type MiningController struct {
	db      *gorm.DB
	now     func() time.Time
	genCode func() string
}

// Business-rule rejections. Every path returning one of these leaves all
// records untouched.
var (
	errAlreadySubmitted = errors.New("You have already submitted a code today.")
	errInvalidCode      = errors.New("Invalid code.")
	errCodeExpired      = errors.New("Code expired.")
	errOwnCode          = errors.New("You cannot submit your own code.")
	errCodeLimit        = errors.New("This code has reached the maximum submission limit.")
	errSubmitterMissing = errors.New("Submitter not found")
)

// NewMiningController creates a new controller instance.
func NewMiningController(db *gorm.DB) *MiningController {
	return &MiningController{db: db, now: time.Now, genCode: utils.GenerateDailyCode}
}

// NewMiningControllerWithClock allows tests to pin the clock.
func NewMiningControllerWithClock(db *gorm.DB, now func() time.Time) *MiningController {
	return &MiningController{db: db, now: now, genCode: utils.GenerateDailyCode}
}

type toggleMiningRequest struct {
	TelegramID int64 `json:"telegramId"`
}

// ToggleMining starts mining for a user, issues a fresh daily code, and
// resets the daily bonus fields. Rejected without state change when mining
// is already active.
func (m *MiningController) ToggleMining(ctx *gin.Context) {
	var req toggleMiningRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.TelegramID == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40010, "telegramId required")
		return
	}

	var user models.User
	if err := m.db.Where("telegram_id = ?", req.TelegramID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "user not found")
			return
		}
		utils.Sugar.Errorf("toggleMining: lookup failed for %d: %v", req.TelegramID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "internal server error")
		return
	}

	if user.MiningActive {
		utils.Error(ctx, http.StatusBadRequest, 40011, "Mining already active.")
		return
	}

	cfg := config.Get()
	code, err := m.issueUniqueCode(time.Duration(cfg.CodeTTLHours) * time.Hour)
	if err != nil {
		utils.Sugar.Errorf("toggleMining: code issuance failed for %d: %v", req.TelegramID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50011, "internal server error")
		return
	}

	now := m.now()
	activated, err := m.activateMining(req.TelegramID, code, now)
	if err != nil {
		utils.ReleaseCode(code)
		utils.Sugar.Errorf("toggleMining: save failed for %d: %v", req.TelegramID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50012, "internal server error")
		return
	}
	if !activated {
		utils.ReleaseCode(code)
		utils.Error(ctx, http.StatusBadRequest, 40011, "Mining already active.")
		return
	}

	user.MiningActive = true
	user.DailyCode = &code
	user.DailyCodeGeneratedAt = &now
	user.CodeSubmissions = 0
	user.HasSubmittedBonus = false

	utils.SuccessMessage(ctx, "Mining started", gin.H{"user": userView(&user)})
}

// activateMining flips the mining flag and installs the fresh code in a
// single conditional update. Two racing toggles both pass the read check,
// but only the one whose update matches an inactive row wins.
func (m *MiningController) activateMining(telegramID int64, code string, now time.Time) (bool, error) {
	res := m.db.Model(&models.User{}).
		Where("telegram_id = ? AND mining_active = ?", telegramID, false).
		Updates(map[string]interface{}{
			"mining_active":           true,
			"daily_code":              code,
			"daily_code_generated_at": now,
			"code_submissions":        0,
			"has_submitted_bonus":     false,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// issueUniqueCode draws codes until one is unused by any account, guarding
// with a Redis reservation first and a database check second. Lookup at
// redemption time is by code value alone, so a collision would mis-attribute
// the owner bonus.
func (m *MiningController) issueUniqueCode(ttl time.Duration) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := m.genCode()
		if !utils.TryReserveCode(code, ttl) {
			continue
		}
		var count int64
		if err := m.db.Model(&models.User{}).Where("daily_code = ?", code).Count(&count).Error; err != nil {
			utils.ReleaseCode(code)
			return "", err
		}
		if count > 0 {
			utils.ReleaseCode(code)
			continue
		}
		return code, nil
	}
	return "", errors.New("could not generate a unique daily code")
}

type submitCodeRequest struct {
	SubmitterTelegramID int64  `json:"submitterTelegramId"`
	Code                string `json:"code"`
}

// SubmitCode redeems another user's daily code: the owner gains +0.1x per
// valid redemption (up to the cap) and the submitter gains +0.5x once per
// day. Both writes happen inside one locked transaction so a crash cannot
// split them.
func (m *MiningController) SubmitCode(ctx *gin.Context) {
	var req submitCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.SubmitterTelegramID == 0 || req.Code == "" {
		utils.Error(ctx, http.StatusBadRequest, 40020, "submitterTelegramId and code required")
		return
	}
	if len(req.Code) != utils.DailyCodeLength {
		utils.Error(ctx, http.StatusBadRequest, 40021, "code must be exactly 10 digits")
		return
	}

	cfg := config.Get()
	ttl := time.Duration(cfg.CodeTTLHours) * time.Hour
	now := m.now()

	err := m.db.Transaction(func(tx *gorm.DB) error {
		var submitter models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("telegram_id = ?", req.SubmitterTelegramID).
			First(&submitter).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errSubmitterMissing
			}
			return err
		}

		if submitter.HasSubmittedBonus {
			return errAlreadySubmitted
		}

		var owner models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("daily_code = ?", req.Code).
			First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errInvalidCode
			}
			return err
		}

		if owner.CodeExpired(now, ttl) {
			return errCodeExpired
		}
		if owner.TelegramID == submitter.TelegramID {
			return errOwnCode
		}
		if owner.CodeSubmissions >= models.MaxCodeSubmissions {
			return errCodeLimit
		}

		owner.CodeSubmissions++
		if err := tx.Save(&owner).Error; err != nil {
			return err
		}

		submitter.HasSubmittedBonus = true
		return tx.Save(&submitter).Error
	})

	if err != nil {
		switch {
		case errors.Is(err, errSubmitterMissing):
			utils.Error(ctx, http.StatusNotFound, 40403, err.Error())
		case errors.Is(err, errAlreadySubmitted):
			utils.Error(ctx, http.StatusBadRequest, 40022, err.Error())
		case errors.Is(err, errInvalidCode):
			utils.Error(ctx, http.StatusBadRequest, 40023, err.Error())
		case errors.Is(err, errCodeExpired):
			utils.Error(ctx, http.StatusBadRequest, 40024, err.Error())
		case errors.Is(err, errOwnCode):
			utils.Error(ctx, http.StatusBadRequest, 40025, err.Error())
		case errors.Is(err, errCodeLimit):
			utils.Error(ctx, http.StatusBadRequest, 40026, err.Error())
		default:
			utils.Sugar.Errorf("submitCode: transaction failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50020, "internal server error")
		}
		return
	}

	utils.SuccessMessage(ctx, "Code submitted successfully.", nil)
}
