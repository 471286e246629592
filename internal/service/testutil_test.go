package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/lovemap/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	adminIdentity = &Identity{UserID: 1, Username: "admin", Role: db.RoleAdmin}
	userIdentity  = &Identity{UserID: 2, Username: "user", Role: db.RoleUser}
)

func setupMilestoneTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:milestone-service-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	gdb, err := db.Open(dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	if err := db.EnsureMilestones(gdb); err != nil {
		t.Fatalf("failed to seed milestones: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func newTestMilestoneService(t *testing.T) (*MilestoneService, *MediaStore, *gorm.DB) {
	t.Helper()

	gdb := setupMilestoneTestDB(t)
	media := NewMediaStore(t.TempDir(), "/uploads", 0)
	return NewMilestoneService(gdb, media), media, gdb
}

func milestoneIDForDay(t *testing.T, gdb *gorm.DB, day int) uint {
	t.Helper()

	var milestone db.Milestone
	if err := gdb.Where("day_number = ?", day).First(&milestone).Error; err != nil {
		t.Fatalf("failed to load milestone for day %d: %v", day, err)
	}
	return milestone.ID
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func memoryUpload(name, contentType string, data []byte) *Upload {
	return &Upload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
