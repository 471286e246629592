package db

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// SeedOptions 指定默认账号
type SeedOptions struct {
	AdminUsername string
	AdminPassword string
	UserUsername  string
	UserPassword  string
}

// Seed creates the default accounts and the fixed milestone set. Existing
// rows are left as they are.
func Seed(gdb *gorm.DB, opts SeedOptions) error {
	if err := EnsureUser(gdb, opts.AdminUsername, opts.AdminPassword, RoleAdmin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := EnsureUser(gdb, opts.UserUsername, opts.UserPassword, RoleUser); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	if err := EnsureMilestones(gdb); err != nil {
		return fmt.Errorf("seed milestones: %w", err)
	}

	var count int64
	if err := gdb.Model(&Milestone{}).Count(&count).Error; err != nil {
		return err
	}
	log.Printf("database ready: %d milestones, accounts %q (admin) and %q (user)", count, opts.AdminUsername, opts.UserUsername)
	return nil
}
