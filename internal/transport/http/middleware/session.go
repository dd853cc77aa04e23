package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Switch-is-case/ChatBots-for-Learning/internal/model"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/transport/http/response"
)

const (
	SessionCookieName = "sessionId"
	ContextUserKey    = "current_user"
	ContextUserIDKey  = "user_id"
)

// SessionResolver turns the signed cookie value into an existing user.
type SessionResolver interface {
	ResolveSession(token string) (*model.User, error)
}

// SessionAuth guards a route group: missing or invalid cookies abort
// with 401, otherwise the resolved user is attached to the context.
func SessionAuth(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			response.Message(c, http.StatusUnauthorized, "Authentication required.")
			c.Abort()
			return
		}

		user, err := resolver.ResolveSession(token)
		if err != nil || user == nil {
			response.Message(c, http.StatusUnauthorized, "Invalid session.")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Next()
	}
}

// UserFromContext returns the user attached by SessionAuth.
func UserFromContext(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok
}
