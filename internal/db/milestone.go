package db

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item types shared by content and replies.
const (
	ItemText  = "text"
	ItemImage = "image"
	ItemAudio = "audio"
	ItemVideo = "video"
)

// Milestone 表示一个按天解锁的节点，共 8 个固定记录
type Milestone struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	DayNumber   int        `gorm:"uniqueIndex;not null" json:"day_number"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	IsUnlocked  bool       `gorm:"not null;default:false" json:"is_unlocked"`
	UnlockDate  *time.Time `json:"unlock_date"`
	CreatedAt   time.Time  `json:"created_at"`

	Contents []MilestoneContent `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Replies  []MilestoneReply   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// MilestoneContent 是管理员上传到节点的内容
type MilestoneContent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MilestoneID uint      `gorm:"not null;index" json:"milestone_id"`
	Type        string    `gorm:"not null" json:"type"`
	FilePath    *string   `json:"file_path"`
	TextContent *string   `json:"text_content"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName keeps the singular table name used by existing databases.
func (MilestoneContent) TableName() string {
	return "milestone_content"
}

// MilestoneReply 是用户在已解锁节点下的回复
type MilestoneReply struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MilestoneID uint      `gorm:"not null;index" json:"milestone_id"`
	Type        string    `gorm:"not null" json:"type"`
	FilePath    *string   `json:"file_path"`
	TextContent *string   `json:"text_content"`
	CreatedAt   time.Time `json:"created_at"`
}

func (MilestoneReply) TableName() string {
	return "milestone_replies"
}

// DefaultMilestones is the fixed Valentine's week seed set.
var DefaultMilestones = []Milestone{
	{DayNumber: 1, Title: "Rose Day", Description: "Feb 7, 2025 - The Journey Begins 🌹"},
	{DayNumber: 2, Title: "Propose Day", Description: "Feb 8, 2025 - Choosing You Again 💍"},
	{DayNumber: 3, Title: "Chocolate Day", Description: "Feb 9, 2025 - Sweet Us 🍫"},
	{DayNumber: 4, Title: "Teddy Day", Description: "Feb 10, 2025 - Comfort Zone 🧸"},
	{DayNumber: 5, Title: "Promise Day", Description: "Feb 11, 2025 - Words That Stay 🤝"},
	{DayNumber: 6, Title: "Hug Day", Description: "Feb 12, 2025 - No Distance 🤗"},
	{DayNumber: 7, Title: "Kiss Day", Description: "Feb 13, 2025 - Sealed with a Kiss 💋"},
	{DayNumber: 8, Title: "Valentine's Day", Description: "Feb 14, 2025 - We Made It ❤️"},
}

// EnsureMilestones 插入缺失的默认节点，已存在的 day_number 不会被覆盖。
func EnsureMilestones(gdb *gorm.DB) error {
	seed := make([]Milestone, len(DefaultMilestones))
	copy(seed, DefaultMilestones)
	return gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day_number"}},
		DoNothing: true,
	}).Create(&seed).Error
}

// CountUnlocked reports how many milestones are currently unlocked.
func CountUnlocked(gdb *gorm.DB) (int64, error) {
	var count int64
	if err := gdb.Model(&Milestone{}).Where("is_unlocked = ?", true).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
