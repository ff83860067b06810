package workers

import (
	"time"

	"gorm.io/gorm"

	"github.com/minetap/minetap/models"
	"github.com/minetap/minetap/utils"
)

// DailyReset clears mining and bonus state for all accounts at midnight UTC.
// Day boundaries are not a uniform distance apart under clock adjustments,
// so it runs as a recurring single-shot timer rather than a fixed ticker.
type DailyReset struct {
	db  *gorm.DB
	now func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewDailyReset builds the reset worker.
func NewDailyReset(db *gorm.DB) *DailyReset {
	return NewDailyResetWithClock(db, time.Now)
}

// NewDailyResetWithClock allows tests to pin the clock.
func NewDailyResetWithClock(db *gorm.DB, now func() time.Time) *DailyReset {
	return &DailyReset{
		db:   db,
		now:  now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// NextMidnightUTC returns the first UTC day boundary strictly after t.
func NextMidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}

// Start arms the timer for the next boundary and keeps rearming after each
// firing. A failed reset is logged; the next boundary is scheduled anyway so
// one bad day cannot halt the cycle.
func (r *DailyReset) Start() {
	go func() {
		defer close(r.done)
		for {
			wait := NextMidnightUTC(r.now()).Sub(r.now())
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
				r.RunOnce()
			case <-r.stop:
				timer.Stop()
				return
			}
		}
	}()
}

// Stop disarms the timer and waits for any in-flight reset to finish.
func (r *DailyReset) Stop() {
	close(r.stop)
	<-r.done
}

// RunOnce clears MiningActive, the daily code pair, and both bonus counters
// for every account that was mining, in a single bulk update. Accounts that
// were not mining are untouched.
func (r *DailyReset) RunOnce() {
	res := r.db.Model(&models.User{}).
		Where("mining_active = ?", true).
		Updates(map[string]interface{}{
			"mining_active":           false,
			"daily_code":              nil,
			"daily_code_generated_at": nil,
			"code_submissions":        0,
			"has_submitted_bonus":     false,
		})
	if res.Error != nil {
		if utils.Sugar != nil {
			utils.Sugar.Errorf("daily reset failed: %v", res.Error)
		}
		return
	}
	if utils.Sugar != nil {
		utils.Sugar.Infof("daily reset completed at midnight UTC, cleared %d accounts", res.RowsAffected)
	}
}
