package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lovemap/internal/service"
)

var errorMessages = map[error]string{
	service.ErrUnauthorized:        "Not authenticated",
	service.ErrForbidden:           "Admin access required",
	service.ErrCredentialsRequired: "Username and password required",
	service.ErrInvalidCredentials:  "Invalid credentials",
	service.ErrMilestoneNotFound:   "Milestone not found",
	service.ErrMilestoneLocked:     "Milestone not unlocked yet",
	service.ErrAlreadyUnlocked:     "Milestone already unlocked",
	service.ErrInvalidItemType:     "Invalid content type",
	service.ErrTextRequired:        "Please enter a message",
	service.ErrFileRequired:        "Please select a file",
	service.ErrPayloadConflict:     "Send either a message or a file, not both",
	service.ErrUnsupportedFile:     "Invalid file type",
	service.ErrFileTooLarge:        "File too large (max 100MB)",
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondServiceError maps a service error to its status code. Internal
// errors are logged and answered with fallback.
func respondServiceError(c *gin.Context, err error, fallback string) {
	status := statusForKind(service.Kind(err))
	if status == http.StatusInternalServerError {
		log.Printf("[api] %s %s: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, status, fallback)
		return
	}

	for sentinel, message := range errorMessages {
		if errors.Is(err, sentinel) {
			respondError(c, status, message)
			return
		}
	}
	respondError(c, status, err.Error())
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidInput, service.KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}
