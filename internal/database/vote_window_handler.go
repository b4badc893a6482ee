package database

import (
	"context"
	"errors"
	"time"

	"gatehouse/internal/domain"

	"gorm.io/gorm/clause"
)

const voteWindowDayFormat = "2006-01-02"

// TryInsertVoteWindow attempts the check-and-insert for one vote window. The
// unique index on (resource_id, fingerprint, day) makes the insert the check:
// exactly one of any number of concurrent attempts for the same key sees
// inserted == true. Errors mean the store could not confirm uniqueness, and
// callers must treat that as a denial.
func TryInsertVoteWindow(ctx context.Context, resourceID, fingerprint string, now time.Time) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialised")
	}
	if resourceID == "" || fingerprint == "" {
		return false, errors.New("vote window: resource and fingerprint are required")
	}

	window := domain.VoteWindow{
		ResourceID:  resourceID,
		Fingerprint: fingerprint,
		Day:         now.UTC().Format(voteWindowDayFormat),
	}

	res := dbWithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&window)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
