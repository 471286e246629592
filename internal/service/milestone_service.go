package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lovemap/internal/db"
	"gorm.io/gorm"
)

// MilestoneService drives the unlock, content, reply and restart lifecycle.
type MilestoneService struct {
	db    *gorm.DB
	media MediaStorage
	now   func() time.Time

	// sqlite allows a single writer; writes are serialized here as well so
	// concurrent requests fail with domain errors instead of lock errors.
	mu sync.Mutex
}

// MilestoneDetail is a milestone with its content and replies in display order.
type MilestoneDetail struct {
	Milestone db.Milestone
	Content   []db.MilestoneContent
	Replies   []db.MilestoneReply
}

// ItemInput is the payload for a content item or a reply.
type ItemInput struct {
	Type string
	Text string
	File *Upload
}

// ItemResult reports how an item was stored.
type ItemResult struct {
	ContentType string
	FilePath    *string
}

// RestartResult counts the rows removed by Restart.
type RestartResult struct {
	DeletedContent int
	DeletedReplies int
}

// NewMilestoneService creates a MilestoneService instance.
func NewMilestoneService(gdb *gorm.DB, media MediaStorage) *MilestoneService {
	return &MilestoneService{
		db:    gdb,
		media: media,
		now:   time.Now,
	}
}

// List returns every milestone for admins and only unlocked ones otherwise,
// ordered by day number.
func (s *MilestoneService) List(ctx context.Context, identity *Identity) ([]db.Milestone, error) {
	if err := RequireAuthenticated(identity); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&db.Milestone{})
	if !identity.IsAdmin() {
		query = query.Where("is_unlocked = ?", true)
	}

	var milestones []db.Milestone
	if err := query.Order("day_number asc").Find(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

// Get loads a milestone with its items. Non-admins cannot see locked milestones.
func (s *MilestoneService) Get(ctx context.Context, identity *Identity, id uint) (*MilestoneDetail, error) {
	if err := RequireAuthenticated(identity); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx)
	milestone, err := findMilestone(tx, id)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() && !milestone.IsUnlocked {
		return nil, ErrMilestoneLocked
	}

	detail := &MilestoneDetail{
		Milestone: *milestone,
		Content:   []db.MilestoneContent{},
		Replies:   []db.MilestoneReply{},
	}
	if err := tx.Where("milestone_id = ?", id).Order("created_at asc").Order("id asc").Find(&detail.Content).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("milestone_id = ?", id).Order("created_at asc").Order("id asc").Find(&detail.Replies).Error; err != nil {
		return nil, err
	}
	return detail, nil
}

// Unlock flips a locked milestone to unlocked and stamps the unlock date.
// Unlocking twice is an error.
func (s *MilestoneService) Unlock(ctx context.Context, identity *Identity, id uint) (*db.Milestone, error) {
	if err := RequireRole(identity, db.RoleAdmin); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var milestone *db.Milestone
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := findMilestone(tx, id)
		if err != nil {
			return err
		}
		if found.IsUnlocked {
			return ErrAlreadyUnlocked
		}

		now := s.now()
		result := tx.Model(&db.Milestone{}).
			Where("id = ? AND is_unlocked = ?", id, false).
			Updates(map[string]interface{}{"is_unlocked": true, "unlock_date": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadyUnlocked
		}

		found.IsUnlocked = true
		found.UnlockDate = &now
		milestone = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[milestone] day %d unlocked by %s", milestone.DayNumber, identity.Username)
	return milestone, nil
}

// AddContent attaches an admin item to a milestone regardless of its lock state.
func (s *MilestoneService) AddContent(ctx context.Context, identity *Identity, id uint, input ItemInput) (*ItemResult, error) {
	if err := RequireRole(identity, db.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := findMilestone(s.db.WithContext(ctx), id); err != nil {
		return nil, err
	}

	return s.storeItem(ctx, input, func(tx *gorm.DB, itemType string, filePath, text *string) error {
		if _, err := findMilestone(tx, id); err != nil {
			return err
		}
		return tx.Create(&db.MilestoneContent{
			MilestoneID: id,
			Type:        itemType,
			FilePath:    filePath,
			TextContent: text,
		}).Error
	})
}

// AddReply attaches a reply to an unlocked milestone.
func (s *MilestoneService) AddReply(ctx context.Context, identity *Identity, id uint, input ItemInput) (*ItemResult, error) {
	if err := RequireAuthenticated(identity); err != nil {
		return nil, err
	}
	if err := requireUnlocked(s.db.WithContext(ctx), id); err != nil {
		return nil, err
	}

	return s.storeItem(ctx, input, func(tx *gorm.DB, itemType string, filePath, text *string) error {
		if err := requireUnlocked(tx, id); err != nil {
			return err
		}
		return tx.Create(&db.MilestoneReply{
			MilestoneID: id,
			Type:        itemType,
			FilePath:    filePath,
			TextContent: text,
		}).Error
	})
}

// Restart deletes every content item and reply of a milestone, locks it again
// and then removes their media files. File cleanup is best effort.
func (s *MilestoneService) Restart(ctx context.Context, identity *Identity, id uint) (*RestartResult, error) {
	if err := RequireRole(identity, db.RoleAdmin); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		contents  []db.MilestoneContent
		replies   []db.MilestoneReply
		milestone *db.Milestone
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := findMilestone(tx, id)
		if err != nil {
			return err
		}
		milestone = found

		if err := tx.Where("milestone_id = ?", id).Find(&contents).Error; err != nil {
			return err
		}
		if err := tx.Where("milestone_id = ?", id).Find(&replies).Error; err != nil {
			return err
		}

		if err := tx.Where("milestone_id = ?", id).Delete(&db.MilestoneContent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("milestone_id = ?", id).Delete(&db.MilestoneReply{}).Error; err != nil {
			return err
		}

		return tx.Model(&db.Milestone{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"is_unlocked": false, "unlock_date": nil}).Error
	})
	if err != nil {
		return nil, err
	}

	for _, item := range contents {
		s.removeMedia(item.FilePath)
	}
	for _, item := range replies {
		s.removeMedia(item.FilePath)
	}

	log.Printf("[restart] day %d reset by %s: %d content, %d replies", milestone.DayNumber, identity.Username, len(contents), len(replies))
	return &RestartResult{DeletedContent: len(contents), DeletedReplies: len(replies)}, nil
}

type insertFunc func(tx *gorm.DB, itemType string, filePath, text *string) error

// storeItem resolves the payload, writes any file and then inserts the row.
// A failed insert removes the file it just wrote.
func (s *MilestoneService) storeItem(ctx context.Context, input ItemInput, insert insertFunc) (*ItemResult, error) {
	itemType, err := ResolveItem(input)
	if err != nil {
		return nil, err
	}

	// Text is stored verbatim; clients escape it when rendering.
	var text, filePath *string
	if itemType == db.ItemText {
		raw := input.Text
		text = &raw
	} else {
		ref, err := s.media.Save(input.File)
		if err != nil {
			return nil, err
		}
		filePath = &ref
	}

	s.mu.Lock()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insert(tx, itemType, filePath, text)
	})
	s.mu.Unlock()
	if err != nil {
		s.removeMedia(filePath)
		return nil, err
	}

	return &ItemResult{ContentType: itemType, FilePath: filePath}, nil
}

func (s *MilestoneService) removeMedia(ref *string) {
	if ref == nil || *ref == "" {
		return
	}
	if err := s.media.Remove(*ref); err != nil {
		log.Printf("[media] failed to remove %s: %v", *ref, err)
	}
}

// ResolveItem validates an item payload and returns its stored type. Exactly
// one of text or file must be present. An attached file decides the type by
// extension.
func ResolveItem(input ItemInput) (string, error) {
	declared := strings.ToLower(strings.TrimSpace(input.Type))
	if declared != "" && !isItemType(declared) {
		return "", ErrInvalidItemType
	}
	hasText := strings.TrimSpace(input.Text) != ""

	if input.File == nil {
		if declared == "" {
			declared = db.ItemText
		}
		if declared != db.ItemText {
			return "", ErrFileRequired
		}
		if !hasText {
			return "", ErrTextRequired
		}
		return db.ItemText, nil
	}

	if declared == db.ItemText || hasText {
		return "", ErrPayloadConflict
	}
	resolved := ClassifyMedia(declared, input.File.Filename)
	if resolved == "" || resolved == db.ItemText {
		return "", ErrInvalidItemType
	}
	return resolved, nil
}

func isItemType(value string) bool {
	switch value {
	case db.ItemText, db.ItemImage, db.ItemAudio, db.ItemVideo:
		return true
	}
	return false
}

func findMilestone(tx *gorm.DB, id uint) (*db.Milestone, error) {
	var milestone db.Milestone
	if err := tx.First(&milestone, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}
	return &milestone, nil
}

func requireUnlocked(tx *gorm.DB, id uint) error {
	milestone, err := findMilestone(tx, id)
	if err != nil {
		return err
	}
	if !milestone.IsUnlocked {
		return ErrMilestoneLocked
	}
	return nil
}
