package server

import (
	"fmt"
	"testing"

	"gatehouse/internal/database"
	"gatehouse/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(
		&domain.ReputationRecord{},
		&domain.BlacklistEntry{},
		&domain.SecurityEvent{},
		&domain.VoteWindow{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	database.DB = db

	t.Cleanup(func() {
		database.DB = nil
	})

	return db
}
