package handler

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/model"
	"ropatopia/internal/transport/http/response"
)

type RopaHandler struct {
	ropa *app.RopaService
}

type RopaAnswerRequest struct {
	Answer    *string `json:"answer"`
	Boolean   *bool   `json:"boolean"`
	AddOption string  `json:"add_option"`
	DelOption string  `json:"remove_option"`
}

type AddRopaQuestionRequest struct {
	Question     string             `json:"question"`
	QuestionType model.QuestionType `json:"question_type"`
	Category     string             `json:"category"`
	HelpText     string             `json:"help_text"`
	Required     bool               `json:"required"`
	Options      string             `json:"options"`
}

func NewRopaHandler(ropa *app.RopaService) *RopaHandler {
	return &RopaHandler{ropa: ropa}
}

func (h *RopaHandler) List(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	sessions, err := h.ropa.List(c.Request.Context(), sess, c.Query("q"))
	if err != nil {
		writeError(c, err, "list ROPA sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *RopaHandler) Delete(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	confirmer := newQueryConfirmer(c)
	err := h.ropa.Delete(c.Request.Context(), sess, c.Param("id"), confirmer)
	writeDeleteResult(c, confirmer, err, "Failed to delete the ROPA session.")
}

func (h *RopaHandler) workspace(c *gin.Context) (*app.RopaQuestionnaire, bool) {
	sess, ok := clientFrom(c)
	if !ok {
		return nil, false
	}
	q, err := h.ropa.Workspace(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		writeError(c, err, "Failed to fetch questions")
		return nil, false
	}
	return q, true
}

// Questions shows the answer sheet. answered_only switches the filter and
// refetches; without it the current sheet is returned.
func (h *RopaHandler) Questions(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	if raw, set := c.GetQuery("answered_only"); set {
		answeredOnly, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c)
			return
		}
		if err := q.Load(c.Request.Context(), answeredOnly); err != nil {
			writeError(c, err, "Failed to fetch questions")
			return
		}
	}
	response.OK(c, q.View())
}

func (h *RopaHandler) SetAnswer(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	var req RopaAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	id := c.Param("qid")
	var err error
	switch {
	case req.Answer != nil:
		err = q.SetAnswer(id, *req.Answer)
	case req.Boolean != nil:
		err = q.SetBoolean(id, *req.Boolean)
	case req.AddOption != "":
		err = q.AddOption(id, req.AddOption)
	case req.DelOption != "":
		err = q.RemoveOption(id, req.DelOption)
	default:
		badRequest(c)
		return
	}
	if err != nil {
		writeError(c, err, "update answer failed")
		return
	}
	response.OK(c, gin.H{"changed_ids": q.View().ChangedIDs})
}

func (h *RopaHandler) Save(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	saved, err := q.Save(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to save answers.")
		return
	}
	response.OK(c, gin.H{"saved": saved, "questionnaire": q.View()})
}

func (h *RopaHandler) RemoveQuestion(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := q.Remove(c.Request.Context(), c.Param("qid")); err != nil {
		writeError(c, err, "Failed to remove the question.")
		return
	}
	response.OK(c, q.View())
}

func (h *RopaHandler) AddQuestion(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	var req AddRopaQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	err := q.AddQuestion(c.Request.Context(), app.AddRopaQuestionInput{
		Question:     req.Question,
		QuestionType: req.QuestionType,
		Category:     req.Category,
		HelpText:     req.HelpText,
		Required:     req.Required,
		OptionsText:  req.Options,
	})
	if err != nil {
		writeError(c, err, "Failed to add the question.")
		return
	}
	response.OK(c, q.View())
}

func (h *RopaHandler) Status(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	st, err := q.Status(c.Request.Context())
	if err != nil {
		writeError(c, err, "load session status failed")
		return
	}
	response.OK(c, st)
}

// Document streams the generated ROPA document from the backend.
func (h *RopaHandler) Document(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	resp, err := h.ropa.GenerateDocument(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		writeError(c, err, "Failed to generate the document.")
		return
	}
	defer resp.Body.Close()

	for _, key := range []string{"Content-Type", "Content-Disposition", "Content-Length"} {
		if v := resp.Header.Get(key); v != "" {
			c.Header(key, v)
		}
	}
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, resp.Body)
}

func (h *RopaHandler) Download(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := q.Download(&buf); err != nil {
		writeError(c, err, "export failed")
		return
	}
	writeSpreadsheet(c, &buf)
}
