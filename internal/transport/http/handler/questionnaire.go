package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/export"
	"ropatopia/internal/model"
	"ropatopia/internal/transport/http/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type QuestionnaireHandler struct {
	questionnaires *app.QuestionnaireService
}

type EditModeRequest struct {
	Editing *bool `json:"editing" binding:"required"`
}

type QuestionTextRequest struct {
	Question string `json:"question"`
}

type RunRequest struct {
	Feedback string `json:"feedback"`
}

type GenerateRequest struct {
	Query      string  `json:"query" binding:"required"`
	SessionID  string  `json:"session_id"`
	QuestionID *string `json:"question_id"`
	Feedback   *string `json:"feedback"`
}

func NewQuestionnaireHandler(questionnaires *app.QuestionnaireService) *QuestionnaireHandler {
	return &QuestionnaireHandler{questionnaires: questionnaires}
}

// workspace loads the questionnaire named by the :id param, writing the error
// response itself when it cannot.
func (h *QuestionnaireHandler) workspace(c *gin.Context) (*app.Questionnaire, bool) {
	sess, ok := clientFrom(c)
	if !ok {
		return nil, false
	}
	q, err := h.questionnaires.Workspace(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		writeError(c, err, "load questionnaire failed")
		return nil, false
	}
	return q, true
}

func (h *QuestionnaireHandler) View(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	if c.Query("refresh") == "true" {
		if err := q.Load(c.Request.Context(), true); err != nil {
			writeError(c, err, "load questionnaire failed")
			return
		}
	}
	response.OK(c, q.View())
}

func (h *QuestionnaireHandler) SetEditing(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	var req EditModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := q.SetEditing(c.Request.Context(), *req.Editing); err != nil {
		writeError(c, err, "reload questionnaire failed")
		return
	}
	response.OK(c, q.View())
}

func (h *QuestionnaireHandler) AddQuestion(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	var req QuestionTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	view, err := q.AddQuestion(req.Question)
	if err != nil {
		writeError(c, err, "add question failed")
		return
	}
	response.OK(c, view)
}

func (h *QuestionnaireHandler) SetQuestion(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	var req QuestionTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := q.SetQuestion(c.Param("qid"), req.Question); err != nil {
		writeError(c, err, "update question failed")
		return
	}
	response.OK(c, gin.H{"changed_ids": q.View().ChangedIDs})
}

func (h *QuestionnaireHandler) Run(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}
	result, err := q.Run(c.Request.Context(), c.Param("qid"), req.Feedback)
	if err != nil {
		writeError(c, err, "Failed to generate an answer. Please try again.")
		return
	}
	response.OK(c, result)
}

func (h *QuestionnaireHandler) ToggleDropdown(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	open, err := q.ToggleDropdown(c.Param("qid"))
	if err != nil {
		writeError(c, err, "toggle dropdown failed")
		return
	}
	response.OK(c, gin.H{"open": open})
}

func (h *QuestionnaireHandler) ToggleFeedback(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	open, err := q.ToggleFeedback(c.Param("qid"))
	if err != nil {
		writeError(c, err, "toggle feedback failed")
		return
	}
	response.OK(c, gin.H{"open": open})
}

func (h *QuestionnaireHandler) Remove(c *gin.Context) {
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

func (h *QuestionnaireHandler) History(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	history, err := q.History(c.Param("qid"))
	if err != nil {
		writeError(c, err, "load history failed")
		return
	}
	response.OK(c, history)
}

func (h *QuestionnaireHandler) Save(c *gin.Context) {
	q, ok := h.workspace(c)
	if !ok {
		return
	}
	results, err := q.SaveChanged(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to save changes.")
		return
	}
	response.OK(c, gin.H{"results": results, "questionnaire": q.View()})
}

func (h *QuestionnaireHandler) Download(c *gin.Context) {
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

func writeSpreadsheet(c *gin.Context, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Generate runs a one-off generate_pia request outside any questionnaire.
func (h *QuestionnaireHandler) Generate(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	resp, err := h.questionnaires.Generate(c.Request.Context(), sess, model.RetrieveRequest{
		Query:      req.Query,
		SessionID:  req.SessionID,
		QuestionID: req.QuestionID,
		Feedback:   req.Feedback,
	})
	if err != nil {
		writeError(c, err, "Failed to generate an answer. Please try again.")
		return
	}
	response.OK(c, resp)
}
