package database

import (
	"context"
	"errors"

	"gatehouse/internal/domain"
)

const (
	defaultEventListLimit = 100
	maxEventListLimit     = 1000
)

// InsertSecurityEvent appends one audit record.
func InsertSecurityEvent(ctx context.Context, event domain.SecurityEvent) error {
	if DB == nil {
		return errors.New("database not initialised")
	}
	return dbWithContext(ctx).Create(&event).Error
}

// ListSecurityEvents returns the most recent events, newest first.
func ListSecurityEvents(ctx context.Context, limit int) ([]domain.SecurityEvent, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	if limit <= 0 {
		limit = defaultEventListLimit
	}
	if limit > maxEventListLimit {
		limit = maxEventListLimit
	}

	var events []domain.SecurityEvent
	err := dbWithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
