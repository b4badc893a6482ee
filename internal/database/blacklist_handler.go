package database

import (
	"context"
	"errors"
	"net"
	"time"

	"gatehouse/internal/domain"

	"gorm.io/gorm/clause"
)

// ListBlacklistEntries returns all stored entries, newest ban first. Expired
// entries are included: expiry only disables enforcement, deletion is an
// operator action.
func ListBlacklistEntries(ctx context.Context) ([]domain.BlacklistEntry, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	var entries []domain.BlacklistEntry
	if err := dbWithContext(ctx).Order("blocked_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// UpsertBlacklistEntry stores (or refreshes) a ban for the address. Re-banning
// an address overwrites its reason, creator and expiry.
func UpsertBlacklistEntry(ctx context.Context, entry domain.BlacklistEntry) error {
	if DB == nil {
		return errors.New("database not initialised")
	}

	normalized := normalizeAddress(entry.Address)
	if normalized == "" {
		return errors.New("blacklist: invalid address")
	}
	entry.Address = normalized
	if entry.BlockedAt.IsZero() {
		entry.BlockedAt = time.Now().UTC()
	}

	return dbWithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"reason":        entry.Reason,
			"created_by":    entry.CreatedBy,
			"blocked_at":    entry.BlockedAt,
			"blocked_until": entry.BlockedUntil,
		}),
	}).Create(&entry).Error
}

// DeleteBlacklistEntry removes the ban row for the address. Returns the
// number of rows removed.
func DeleteBlacklistEntry(ctx context.Context, address string) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}

	normalized := normalizeAddress(address)
	if normalized == "" {
		return 0, errors.New("blacklist: invalid address")
	}

	res := dbWithContext(ctx).
		Where("address = ?", normalized).
		Delete(&domain.BlacklistEntry{})
	return res.RowsAffected, res.Error
}

// normalizeAddress canonicalises an IP string so cache keys and row keys
// always agree. Returns "" for anything that does not parse.
func normalizeAddress(raw string) string {
	parsed := net.ParseIP(raw)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}
