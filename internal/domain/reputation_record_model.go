package domain

import "time"

// ReputationRecord tracks the evolving bot score for an (address, user-agent)
// identity. The stored score is the most recently observed one, not an
// average: a client cannot wash out a high score by mixing in clean requests.
type ReputationRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Address   string `gorm:"size:45;not null;uniqueIndex:idx_reputation_identity,priority:1"`
	UserAgent string `gorm:"size:512;not null;default:'';uniqueIndex:idx_reputation_identity,priority:2"`

	// BotScore is the latest heuristic score, saturating in [0,100].
	BotScore int `gorm:"not null;default:0"`

	// RequestCount and SuspiciousCount only ever grow.
	RequestCount    uint64 `gorm:"not null;default:0"`
	SuspiciousCount uint64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
