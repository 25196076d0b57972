package handler

import (
	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/transport/http/response"
)

type JobHandler struct {
	jobs *app.BulkJobService
}

type CreateJobRequest struct {
	BatchID    string   `json:"batch_id"`
	Activities []string `json:"processing_activity"`
	Queries    []string `json:"queries"`
}

func NewJobHandler(jobs *app.BulkJobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) Create(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	job, err := h.jobs.Enqueue(c.Request.Context(), sess, app.BulkJobInput{
		BatchID:    req.BatchID,
		Activities: req.Activities,
		Queries:    req.Queries,
	})
	if err != nil {
		writeError(c, err, "Failed to submit questions.")
		return
	}
	response.OK(c, job)
}

func (h *JobHandler) Get(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		writeError(c, err, "get job failed")
		return
	}
	response.OK(c, job)
}

func (h *JobHandler) List(c *gin.Context) {
	sess, ok := clientFrom(c)
	if !ok {
		return
	}
	jobs, err := h.jobs.List(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err, "list jobs failed")
		return
	}
	response.OK(c, jobs)
}
