package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/services/auth"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"
	actorKey       = "staybook.actor"
)

// ActorMiddleware reads the caller asserted by the upstream gateway. Requests
// without a user id stay anonymous; handlers decide whether that is enough.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(userIDHeader))
		if id == "" {
			c.Next()
			return
		}
		role, err := auth.ParseRole(c.GetHeader(userRoleHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		actor := auth.Actor{ID: id, Role: role}
		c.Set(actorKey, actor)
		c.Set("actor_id", id)
		c.Request = c.Request.WithContext(auth.ContextWithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func currentActor(c *gin.Context) (auth.Actor, bool) {
	val, exists := c.Get(actorKey)
	if !exists {
		return auth.Actor{}, false
	}
	a, ok := val.(auth.Actor)
	return a, ok
}

func requireActor(c *gin.Context) (auth.Actor, bool) {
	a, ok := currentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return auth.Actor{}, false
	}
	return a, true
}
