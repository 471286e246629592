package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lovemap/internal/service"
)

// RestartConfirmHeader must be "true" (or ?confirm=true) for a restart to run.
const RestartConfirmHeader = "X-Confirm-Restart"

// ListMilestones returns milestones visible to the caller.
func (a *API) ListMilestones(c *gin.Context) {
	milestones, err := a.milestones.List(c.Request.Context(), currentIdentity(c))
	if err != nil {
		respondServiceError(c, err, "Failed to fetch milestones")
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// GetMilestone returns a milestone with its content and replies.
func (a *API) GetMilestone(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid milestone id")
		return
	}

	detail, err := a.milestones.Get(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch milestone")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"milestone": detail.Milestone,
		"content":   detail.Content,
		"replies":   detail.Replies,
	})
}

// UnlockMilestone unlocks a milestone for the user.
func (a *API) UnlockMilestone(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid milestone id")
		return
	}

	milestone, err := a.milestones.Unlock(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		respondServiceError(c, err, "Failed to unlock milestone")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Milestone unlocked!", "milestone": milestone})
}

// AddContent stores an admin text or media item.
func (a *API) AddContent(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid milestone id")
		return
	}

	input, ok := readItemInput(c)
	if !ok {
		return
	}

	result, err := a.milestones.AddContent(c.Request.Context(), currentIdentity(c), id, input)
	if err != nil {
		respondServiceError(c, err, "Failed to add content")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Content added successfully!",
		"contentType": result.ContentType,
		"filePath":    result.FilePath,
	})
}

// RestartMilestone wipes a milestone's content and replies and locks it again.
func (a *API) RestartMilestone(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid milestone id")
		return
	}

	if !restartConfirmed(c) {
		respondError(c, http.StatusBadRequest, "Restart must be confirmed")
		return
	}

	result, err := a.milestones.Restart(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		respondServiceError(c, err, "Failed to delete content")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "All content and replies deleted! Day restarted.",
		"deletedContent": result.DeletedContent,
		"deletedReplies": result.DeletedReplies,
	})
}

// AddReply stores a user reply on an unlocked milestone.
func (a *API) AddReply(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid milestone id")
		return
	}

	input, ok := readItemInput(c)
	if !ok {
		return
	}

	result, err := a.milestones.AddReply(c.Request.Context(), currentIdentity(c), id, input)
	if err != nil {
		respondServiceError(c, err, "Failed to add reply")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Reply added successfully!",
		"contentType": result.ContentType,
		"filePath":    result.FilePath,
	})
}

func readItemInput(c *gin.Context) (service.ItemInput, bool) {
	var input service.ItemInput

	header, err := c.FormFile("file")
	switch {
	case err == nil:
		input.File = service.UploadFromHeader(header)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondServiceError(c, service.ErrFileTooLarge, "")
		} else {
			respondError(c, http.StatusBadRequest, "Invalid upload")
		}
		return input, false
	}

	input.Type = c.PostForm("type")
	input.Text = c.PostForm("text")
	return input, true
}

func restartConfirmed(c *gin.Context) bool {
	for _, raw := range []string{c.Query("confirm"), c.GetHeader(RestartConfirmHeader)} {
		if ok, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil && ok {
			return true
		}
	}
	return false
}
