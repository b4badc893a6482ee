package database

import (
	"context"
	"errors"

	"gatehouse/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// suspiciousScoreFloor is the per-request score above which the observation
// counts towards the identity's suspicious-pattern tally.
const suspiciousScoreFloor = 50

// UpsertReputation records a new score observation for (address, userAgent)
// as a single constrained write. First observation creates the row with a
// request count of one; later observations bump the counters and replace the
// stored score with the latest one. The resulting row is read back for the
// caller's decision-making.
func UpsertReputation(ctx context.Context, address, userAgent string, score int) (*domain.ReputationRecord, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}
	if address == "" {
		return nil, errors.New("reputation: address is required")
	}

	score = clampScore(score)

	suspicious := uint64(0)
	if score > suspiciousScoreFloor {
		suspicious = 1
	}

	record := domain.ReputationRecord{
		Address:         address,
		UserAgent:       userAgent,
		BotScore:        score,
		RequestCount:    1,
		SuspiciousCount: suspicious,
	}

	db := dbWithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}, {Name: "user_agent"}},
		DoUpdates: clause.Assignments(map[string]any{
			"bot_score":        score,
			"request_count":    gorm.Expr("request_count + 1"),
			"suspicious_count": gorm.Expr("suspicious_count + ?", suspicious),
		}),
	}).Create(&record).Error
	if err != nil {
		return nil, err
	}

	return GetReputation(ctx, address, userAgent)
}

// GetReputation loads the record for the identity, or gorm.ErrRecordNotFound.
func GetReputation(ctx context.Context, address, userAgent string) (*domain.ReputationRecord, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	var record domain.ReputationRecord
	err := dbWithContext(ctx).
		Where("address = ? AND user_agent = ?", address, userAgent).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ApplyScoreAmnesty lowers the stored score of every record for the address
// by the given points, flooring at zero. Runs as one statement so concurrent
// observations cannot interleave with the subtraction.
func ApplyScoreAmnesty(ctx context.Context, address string, points int) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}
	if points <= 0 {
		return 0, nil
	}

	res := dbWithContext(ctx).
		Model(&domain.ReputationRecord{}).
		Where("address = ?", address).
		Update("bot_score", gorm.Expr(
			"CASE WHEN bot_score > ? THEN bot_score - ? ELSE 0 END", points, points,
		))
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func dbWithContext(ctx context.Context) *gorm.DB {
	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}
	return db
}
