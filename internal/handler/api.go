package handler

import (
	"github.com/lovemap/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	auth       *service.AuthService
	milestones *service.MilestoneService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, media service.MediaStorage) *API {
	return &API{
		auth:       service.NewAuthService(db),
		milestones: service.NewMilestoneService(db, media),
	}
}
