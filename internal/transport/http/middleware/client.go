package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ropatopia/internal/auth"
	"ropatopia/internal/transport/http/response"
)

const (
	ContextClientKey = "client_session"
	LoginPath        = "/login"
	clientCookieAge  = 365 * 24 * 60 * 60
)

// ClientSession identifies the browser by its client cookie, issuing a new id
// when it has none, and restores the client's auth state.
func ClientSession(clients *auth.Manager, cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(clientID) != nil {
			clientID = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, clientID, clientCookieAge, "/", "", secure, true)

		sess, release := clients.Acquire(clientID)
		defer release()
		if err := sess.Restore(c.Request.Context()); err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "restore client session failed")
			c.Abort()
			return
		}
		c.Set(ContextClientKey, sess)
		c.Next()
	}
}

// RequireAuth rejects clients without a token before any backend call.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := Client(c)
		if !ok || !sess.Authenticated() {
			Unauthorized(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func Client(c *gin.Context) (*auth.Session, bool) {
	v, exists := c.Get(ContextClientKey)
	if !exists {
		return nil, false
	}
	sess, ok := v.(*auth.Session)
	return sess, ok
}

// Unauthorized sends the client to the login page: a redirect for page loads,
// a 401 naming the redirect target for API calls.
func Unauthorized(c *gin.Context) {
	if WantsHTML(c.Request) {
		c.Redirect(http.StatusFound, LoginPath)
		return
	}
	response.ErrorWithData(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required",
		gin.H{"redirect": LoginPath})
}

func WantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
