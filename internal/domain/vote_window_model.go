package domain

import "time"

// VoteWindow enforces one vote per fingerprint per resource per calendar
// day. The row itself is the lock: inserting it succeeds at most once per
// (resource, fingerprint, day) thanks to the unique index.
type VoteWindow struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	ResourceID  string `gorm:"size:64;not null;uniqueIndex:idx_vote_window,priority:1"`
	Fingerprint string `gorm:"size:64;not null;uniqueIndex:idx_vote_window,priority:2"`

	// Day is the UTC calendar day in 2006-01-02 form.
	Day string `gorm:"size:10;not null;uniqueIndex:idx_vote_window,priority:3"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
