package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// MaxCodeSubmissions caps how many times one user's daily code may be redeemed.
	MaxCodeSubmissions = 10
	// SubmitterBonus is added to the multiplier once the user redeems someone else's code.
	SubmitterBonus = 0.5
	// OwnerBonusPerSubmission is added per valid redemption of the user's own code.
	OwnerBonusPerSubmission = 0.1
)

// User represents one Telegram identity with its mining balance and daily bonus state.
type User struct {
	ID           uint    `gorm:"primaryKey" json:"-"`
	TelegramID   int64   `gorm:"uniqueIndex;not null" json:"telegramId"`
	Username     string  `gorm:"size:64;not null" json:"username"`
	FirstName    string  `gorm:"size:64" json:"firstName"`
	LastName     string  `gorm:"size:64" json:"lastName"`
	Balance      float64 `gorm:"default:0" json:"balance"`
	MiningActive bool    `gorm:"default:false" json:"miningActive"`
	Premium      bool    `gorm:"default:false" json:"premium"`

	// Daily bonus fields. DailyCode and DailyCodeGeneratedAt are set and
	// cleared together; both are non-nil only while mining is active.
	DailyCode            *string    `gorm:"size:10;index" json:"dailyCode"`
	DailyCodeGeneratedAt *time.Time `json:"dailyCodeGeneratedAt"`
	CodeSubmissions      int        `gorm:"default:0" json:"codeSubmissions"`
	HasSubmittedBonus    bool       `gorm:"default:false" json:"hasSubmittedBonus"`

	LastUpdated time.Time `json:"lastUpdated"`
	JoinedAt    time.Time `json:"joinedAt"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// EffectiveMultiplier derives the user's earning rate factor from its bonus
// fields: 1.0 base, +0.5 after redeeming a code, +0.1 per redemption received.
// This is the single source of truth shared by the query endpoint and the
// accrual worker. Range: [1.0, 6.0].
func (u *User) EffectiveMultiplier() float64 {
	m := 1.0
	if u.HasSubmittedBonus {
		m += SubmitterBonus
	}
	m += OwnerBonusPerSubmission * float64(u.CodeSubmissions)
	return m
}

// CodeExpired reports whether the user's daily code is older than ttl at now.
// A missing issuance timestamp counts as expired.
func (u *User) CodeExpired(now time.Time, ttl time.Duration) bool {
	if u.DailyCodeGeneratedAt == nil {
		return true
	}
	return now.Sub(*u.DailyCodeGeneratedAt) > ttl
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.JoinedAt.IsZero() {
		u.JoinedAt = now
	}
	if u.LastUpdated.IsZero() {
		u.LastUpdated = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
