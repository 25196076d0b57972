package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/transport/http/response"
)

// UploadHandler serves the upload, activity and preliminary-question popups.
type UploadHandler struct {
	uploads     *app.UploadService
	activities  *app.ActivityService
	preliminary *app.PreliminaryService
}

type SelectActivitiesRequest struct {
	BatchID    string   `json:"batch_id"`
	Company    string   `json:"company"`
	Activities []string `json:"activities"`
}

type StartRopaRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

func NewUploadHandler(uploads *app.UploadService, activities *app.ActivityService, preliminary *app.PreliminaryService) *UploadHandler {
	return &UploadHandler{uploads: uploads, activities: activities, preliminary: preliminary}
}

func (h *UploadHandler) Upload(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	// A missing file is reported by the service with the form's message.
	file, err := c.FormFile("file")
	if err != nil && err != http.ErrMissingFile {
		badRequest(c)
		return
	}

	result, err := h.uploads.Upload(c.Request.Context(), sess, app.UploadInput{
		Company:      c.PostForm("company"),
		SheetName:    c.PostForm("sheet_name"),
		TemplateType: c.PostForm("template_type"),
		File:         file,
	})
	if err != nil {
		writeError(c, err, "Upload failed. Please try again.")
		return
	}
	response.OK(c, result)
}

func (h *UploadHandler) Batches(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	batches, err := h.uploads.Batches(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err, "list uploads failed")
		return
	}
	response.OK(c, batches)
}

func (h *UploadHandler) Activities(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	response.OK(c, h.activities.List(c.Request.Context(), sess, c.Query("batch_id")))
}

func (h *UploadHandler) SelectActivities(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req SelectActivitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sessionID, err := h.activities.Select(c.Request.Context(), sess, app.SelectActivitiesInput{
		BatchID:    req.BatchID,
		Company:    req.Company,
		Activities: req.Activities,
	})
	if err != nil {
		writeError(c, err, "create session failed")
		return
	}
	response.OK(c, gin.H{"session_id": sessionID, "redirect": "/sessions/" + sessionID})
}

func (h *UploadHandler) PreliminaryQuestions(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	fields, err := h.preliminary.Fields(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err, "Failed to load questions")
		return
	}
	response.OK(c, fields)
}

func (h *UploadHandler) StartRopaSession(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req StartRopaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	sessionID, err := h.preliminary.Submit(c.Request.Context(), sess, req.Answers)
	if err != nil {
		writeError(c, err, "Failed to start the ROPA session")
		return
	}
	response.OK(c, gin.H{"session_id": sessionID, "redirect": "/ropa/" + sessionID})
}
