package abuse

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"gatehouse/internal/database"
)

// TryRecord claims today's vote window for (resourceID, fingerprint). True
// means the action is permitted and the window is consumed; the insert is
// the check, so two concurrent calls for the same key cannot both succeed.
// When the store cannot confirm uniqueness the action is denied: double
// counting is worse than an occasional false denial.
func TryRecord(ctx context.Context, resourceID, fingerprint string) bool {
	inserted, err := database.TryInsertVoteWindow(ctx, resourceID, fingerprint, time.Now())
	if err != nil {
		log.Warn("Vote window check failed, denying action", "resource", resourceID, "error", err)
		return false
	}
	return inserted
}
