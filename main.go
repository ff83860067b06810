package main

import (
	"time"

	"github.com/minetap/minetap/config"
	"github.com/minetap/minetap/models"
	"github.com/minetap/minetap/routes"
	"github.com/minetap/minetap/utils"
	"github.com/minetap/minetap/workers"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{})

	r := routes.SetupRouter(db)

	// Background jobs: periodic balance accrual and the midnight UTC reset.
	accrual := workers.NewAccrual(db, time.Duration(cfg.AccrualIntervalSec)*time.Second, cfg.BaseRatePerTick())
	accrual.Start()
	defer accrual.Stop()

	reset := workers.NewDailyReset(db)
	reset.Start()
	defer reset.Stop()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
