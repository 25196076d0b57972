package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/model"
	"ropatopia/internal/transport/http/response"
)

type KnowledgeHandler struct {
	knowledge *app.KnowledgeService
}

type KnowledgeTextRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func NewKnowledgeHandler(knowledge *app.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge}
}

func (h *KnowledgeHandler) List(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	items, err := h.knowledge.List(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		writeError(c, err, "list knowledge failed")
		return
	}
	response.OK(c, items)
}

func (h *KnowledgeHandler) AddText(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req KnowledgeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	item, err := h.knowledge.AddText(c.Request.Context(), sess, c.Param("id"), model.KnowledgeText{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeError(c, err, "add knowledge failed")
		return
	}
	response.OK(c, item)
}

func (h *KnowledgeHandler) AddFile(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil && err != http.ErrMissingFile {
		badRequest(c)
		return
	}
	item, err := h.knowledge.AddFile(c.Request.Context(), sess, c.Param("id"), file)
	if err != nil {
		writeError(c, err, "upload knowledge file failed")
		return
	}
	response.OK(c, item)
}

func (h *KnowledgeHandler) Update(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req KnowledgeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	item, err := h.knowledge.UpdateText(c.Request.Context(), sess, c.Param("id"), c.Param("kid"), model.KnowledgeText{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeError(c, err, "update knowledge failed")
		return
	}
	response.OK(c, item)
}

func (h *KnowledgeHandler) Delete(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	if err := h.knowledge.Delete(c.Request.Context(), sess, c.Param("id"), c.Param("kid")); err != nil {
		writeError(c, err, "delete knowledge failed")
		return
	}
	response.OK(c, gin.H{"deleted_knowledge_id": c.Param("kid")})
}
