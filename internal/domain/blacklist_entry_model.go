package domain

import "time"

// BlacklistEntry is an administrative address ban. A nil BlockedUntil means
// the ban is permanent; a past BlockedUntil means the entry is inactive but
// still stored until an operator deletes it.
type BlacklistEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Address   string `gorm:"size:45;uniqueIndex;not null"`
	Reason    string `gorm:"size:512;not null;default:''"`
	CreatedBy string `gorm:"size:255;not null;default:''"`

	BlockedAt    time.Time  `gorm:"autoCreateTime"`
	BlockedUntil *time.Time `gorm:"index"`
}

// Active reports whether the entry blocks requests at the given instant.
func (e BlacklistEntry) Active(now time.Time) bool {
	return e.BlockedUntil == nil || e.BlockedUntil.After(now)
}
