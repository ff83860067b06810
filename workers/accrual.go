package workers

import (
	"time"

	"gorm.io/gorm"

	"github.com/minetap/minetap/models"
	"github.com/minetap/minetap/utils"
)

// Accrual periodically credits earnings to every actively mining account.
// It owns its ticker; the host process starts and stops it explicitly.
type Accrual struct {
	db       *gorm.DB
	interval time.Duration
	baseRate float64
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewAccrual builds the accrual worker. baseRate is the per-tick earning at
// multiplier 1.0 (see config.BaseRatePerTick).
func NewAccrual(db *gorm.DB, interval time.Duration, baseRate float64) *Accrual {
	return NewAccrualWithClock(db, interval, baseRate, time.Now)
}

// NewAccrualWithClock allows tests to pin the clock.
func NewAccrualWithClock(db *gorm.DB, interval time.Duration, baseRate float64, now func() time.Time) *Accrual {
	return &Accrual{
		db:       db,
		interval: interval,
		baseRate: baseRate,
		now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop in its own goroutine.
func (a *Accrual) Start() {
	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.RunOnce()
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop terminates the tick loop and waits for the in-flight pass to finish.
func (a *Accrual) Stop() {
	close(a.stop)
	<-a.done
}

// RunOnce executes a single accrual pass: every mining account gains
// baseRate scaled by its effective multiplier. A write failure on one
// account is logged and does not abort the others; the account simply
// catches up on the next tick. Returns the number of accounts updated.
func (a *Accrual) RunOnce() int {
	var active []models.User
	if err := a.db.Where("mining_active = ?", true).Find(&active).Error; err != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorf("accrual: listing active miners failed: %v", err)
		}
		return 0
	}

	now := a.now()
	updated := 0
	for i := range active {
		user := &active[i]
		earnings := a.baseRate * user.EffectiveMultiplier()
		// Increment in SQL rather than writing the full row back, so a
		// redemption or reset landing between Find and this update is
		// not clobbered with stale fields.
		err := a.db.Model(user).UpdateColumns(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", earnings),
			"last_updated": now,
		}).Error
		if err != nil {
			if utils.Sugar != nil {
				utils.Sugar.Warnf("accrual: update failed for user %d, skipping: %v", user.TelegramID, err)
			}
			continue
		}
		updated++
	}
	return updated
}
