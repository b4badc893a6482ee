package blacklist

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gatehouse/internal/database"
	"gatehouse/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupGuardTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := db.AutoMigrate(&domain.BlacklistEntry{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	database.DB = db
	cache.Store(make(map[string]cachedEntry))

	t.Cleanup(func() {
		database.DB = nil
		cache.Store(make(map[string]cachedEntry))
	})
}

func TestIsBlockedPermanentBan(t *testing.T) {
	setupGuardTestDB(t)

	ctx := context.Background()
	if err := Ban(ctx, domain.BlacklistEntry{Address: "203.0.113.10", Reason: "abuse"}); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if !IsBlocked("203.0.113.10") {
		t.Fatal("permanent ban should block")
	}
	if IsBlocked("203.0.113.11") {
		t.Fatal("unrelated address should not block")
	}
}

func TestIsBlockedExpiryEvaluatedAtReadTime(t *testing.T) {
	setupGuardTestDB(t)

	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	if err := Ban(ctx, domain.BlacklistEntry{Address: "203.0.113.12", BlockedUntil: &past}); err != nil {
		t.Fatalf("ban expired: %v", err)
	}
	if err := Ban(ctx, domain.BlacklistEntry{Address: "203.0.113.13", BlockedUntil: &future}); err != nil {
		t.Fatalf("ban temporary: %v", err)
	}

	if IsBlocked("203.0.113.12") {
		t.Fatal("expired ban must not block even though the row still exists")
	}
	if !IsBlocked("203.0.113.13") {
		t.Fatal("unexpired temporary ban should block")
	}
}

func TestUnbanClearsCache(t *testing.T) {
	setupGuardTestDB(t)

	ctx := context.Background()
	if err := Ban(ctx, domain.BlacklistEntry{Address: "203.0.113.14"}); err != nil {
		t.Fatalf("ban: %v", err)
	}

	removed, err := Unban(ctx, "203.0.113.14")
	if err != nil {
		t.Fatalf("unban: %v", err)
	}
	if !removed {
		t.Fatal("unban should report a removed row")
	}
	if IsBlocked("203.0.113.14") {
		t.Fatal("address should no longer block after unban")
	}
}

func TestIsBlockedUnparseableAddress(t *testing.T) {
	setupGuardTestDB(t)

	if IsBlocked("not-an-address") {
		t.Fatal("garbage input must not block")
	}
}
