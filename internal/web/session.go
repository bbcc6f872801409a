package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"animedash/internal/filter"
)

const (
	sessionCookie = "animedash_session"
	sessionKey    = "session_id"
)

var noFilter = filter.Criterion{}

// sessionMiddleware makes sure every request carries a session id, issuing
// a cookie when the client has none or sends a malformed one.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func parseFilter(req filterRequest) (filter.Criterion, error) {
	return filter.ParseCriterion(req.Kind, req.Value)
}
