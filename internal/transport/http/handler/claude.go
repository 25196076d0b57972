package handler

import (
	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/transport/http/response"
)

type ClaudeHandler struct {
	claude *app.ClaudeService
}

type ClaudeGenerateRequest struct {
	Message string `json:"message"`
}

func NewClaudeHandler(claude *app.ClaudeService) *ClaudeHandler {
	return &ClaudeHandler{claude: claude}
}

func (h *ClaudeHandler) Generate(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req ClaudeGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	result, err := h.claude.Generate(c.Request.Context(), sess, req.Message)
	if err != nil {
		writeError(c, err, "generate content failed")
		return
	}
	response.OK(c, result)
}
