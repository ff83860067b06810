package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/minetap/minetap/models"
	"github.com/minetap/minetap/utils"
)

const totalMinedCacheKey = "cache:total_mined"

// StatsController provides aggregate mining statistics.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// TotalMined returns the sum of every account balance. The underlying query
// is a full-table scan, so the result is served from a short-lived Redis
// cache when available.
func (s *StatsController) TotalMined(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(totalMinedCacheKey); ok {
		var cached float64
		if err := json.Unmarshal(b, &cached); err == nil {
			utils.Success(ctx, gin.H{"totalMined": cached})
			return
		}
	}

	var total float64
	if err := s.db.Model(&models.User{}).
		Select("COALESCE(SUM(balance),0)").
		Scan(&total).Error; err != nil {
		utils.Sugar.Errorf("totalMined: aggregate query failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "internal server error")
		return
	}

	utils.CacheSetJSON(totalMinedCacheKey, total, 10*time.Second)
	utils.Success(ctx, gin.H{"totalMined": total})
}
