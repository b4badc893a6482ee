package domain

import "time"

// Security event kinds emitted by the access-control pipeline.
const (
	EventBotDetected        = "bot-detected"
	EventRateLimited        = "rate-limited"
	EventSuspiciousBehavior = "suspicious-behavior"
	EventBlockedRequest     = "blocked-request"
	EventIPBlacklisted      = "ip-blacklisted"
	EventChallengeSolved    = "challenge-solved"
)

// Severity levels for security events.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityEvent is an append-only audit record. This service only writes
// them; the admin console reads.
type SecurityEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Address  string `gorm:"size:45;not null;index"`
	UserID   string `gorm:"size:255;not null;default:''"`
	Kind     string `gorm:"size:32;not null;index"`
	Severity string `gorm:"size:16;not null"`
	Details  string `gorm:"size:1024;not null;default:''"`
	Endpoint string `gorm:"size:255;not null;default:''"`

	// Country is the GeoLite ISO code for Address, empty when no database
	// is configured or the lookup fails.
	Country string `gorm:"size:2;not null;default:''"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
