package handler

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/lovemap/internal/db"
	"github.com/lovemap/internal/service"
)

const (
	sessionUserID   = "user_id"
	sessionRole     = "role"
	sessionUsername = "username"

	identityContextKey = "__identity"
)

type loginPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login 校验账号密码并写入会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBind(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "Username and password required")
		return
	}

	identity, err := a.auth.Authenticate(c.Request.Context(), payload.Username, payload.Password)
	if err != nil {
		respondServiceError(c, err, "Login failed")
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserID, identity.UserID)
	session.Set(sessionRole, identity.Role)
	session.Set(sessionUsername, identity.Username)
	if err := session.Save(); err != nil {
		log.Printf("[auth] failed to save session for %s: %v", identity.Username, err)
		respondError(c, http.StatusInternalServerError, "Login failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": identity})
}

// Logout 清空会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		log.Printf("[auth] failed to clear session: %v", err)
		respondError(c, http.StatusInternalServerError, "Logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AuthStatus 返回当前会话的登录状态
func (a *API) AuthStatus(c *gin.Context) {
	identity := identityFromSession(sessions.Default(c))
	if identity == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": identity})
}

// AuthRequired rejects requests without a session identity.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFromSession(sessions.Default(c))
		if err := service.RequireAuthenticated(identity); err != nil {
			respondServiceError(c, err, "")
			c.Abort()
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// AdminRequired rejects requests unless the session belongs to an admin.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFromSession(sessions.Default(c))
		if err := service.RequireRole(identity, db.RoleAdmin); err != nil {
			respondServiceError(c, err, "")
			c.Abort()
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// currentIdentity returns the identity stored by the auth middleware.
func currentIdentity(c *gin.Context) *service.Identity {
	if value, exists := c.Get(identityContextKey); exists {
		if identity, ok := value.(*service.Identity); ok {
			return identity
		}
	}
	return identityFromSession(sessions.Default(c))
}

func identityFromSession(session sessions.Session) *service.Identity {
	userID, ok := session.Get(sessionUserID).(uint)
	if !ok || userID == 0 {
		return nil
	}
	role, _ := session.Get(sessionRole).(string)
	username, _ := session.Get(sessionUsername).(string)
	return &service.Identity{UserID: userID, Username: username, Role: role}
}
