package handler

import (
	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/transport/http/response"
)

type SessionHandler struct {
	sessions *app.SessionService
}

func NewSessionHandler(sessions *app.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) List(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	sessions, err := h.sessions.List(c.Request.Context(), sess, c.Query("q"))
	if err != nil {
		writeError(c, err, "list sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	detail, err := h.sessions.Get(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		writeError(c, err, "get session failed")
		return
	}
	response.OK(c, detail)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	confirmer := newQueryConfirmer(c)
	err := h.sessions.Delete(c.Request.Context(), sess, c.Param("id"), confirmer)
	writeDeleteResult(c, confirmer, err, "Failed to delete the session.")
}
