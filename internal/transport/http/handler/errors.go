package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ropatopia/internal/app"
	"ropatopia/internal/auth"
	"ropatopia/internal/backend"
	"ropatopia/internal/repository"
	"ropatopia/internal/transport/http/middleware"
	"ropatopia/internal/transport/http/response"
)

// writeError maps service and backend errors onto the response envelope.
// fallback is the message for anything unexpected.
func writeError(c *gin.Context, err error, fallback string) {
	var (
		validation *app.ValidationError
		authErr    *repository.AuthError
		statusErr  *backend.StatusError
	)
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		middleware.Unauthorized(c)
	case errors.As(err, &validation):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, validation.Message)
	case errors.As(err, &authErr):
		response.ErrorWithData(c, authFailureStatus(authErr.Failure), response.CodeLoginFailed, authErr.Message,
			gin.H{"failure": authErr.Failure})
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrQuestionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeQuestionMissing, err.Error())
	case errors.Is(err, app.ErrJobNotFound):
		response.Error(c, http.StatusNotFound, response.CodeJobNotFound, err.Error())
	case errors.Is(err, app.ErrNotEditing):
		response.Error(c, http.StatusConflict, response.CodeNotEditing, err.Error())
	case errors.Is(err, app.ErrJobEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeQueueFailed, fallback)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		response.Error(c, http.StatusNotFound, response.CodeNotFound, fallback)
	case errors.As(err, &statusErr), errors.Is(err, backend.ErrMalformedResponse):
		response.Error(c, http.StatusBadGateway, response.CodeBackendFailed, fallback)
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func authFailureStatus(f repository.AuthFailure) int {
	switch f {
	case repository.FailureCredentials:
		return http.StatusUnauthorized
	case repository.FailureInvalidSignup:
		return http.StatusBadRequest
	case repository.FailureConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func clientFrom(c *gin.Context) (*auth.Session, bool) {
	sess, ok := middleware.Client(c)
	if !ok {
		middleware.Unauthorized(c)
	}
	return sess, ok
}

func badRequest(c *gin.Context) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
}

// queryConfirmer answers a delete prompt from the request's confirm flag and
// collects the notice to return to the page.
type queryConfirmer struct {
	confirmed bool
	prompt    string
	notice    *app.Notice
}

func newQueryConfirmer(c *gin.Context) *queryConfirmer {
	return &queryConfirmer{confirmed: c.Query("confirm") == "true"}
}

func (q *queryConfirmer) Confirm(_ context.Context, prompt string) bool {
	q.prompt = prompt
	return q.confirmed
}

func (q *queryConfirmer) Notify(_ context.Context, n app.Notice) {
	q.notice = &n
}

// writeDeleteResult reports a confirmed delete. Without confirmation the
// prompt is returned so the page can ask and retry with confirm=true.
func writeDeleteResult(c *gin.Context, q *queryConfirmer, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrNotConfirmed):
		response.ErrorWithData(c, http.StatusPreconditionRequired, response.CodeConfirmRequired, q.prompt,
			gin.H{"prompt": q.prompt})
	case err != nil && q.notice != nil && !errors.Is(err, backend.ErrUnauthorized):
		response.ErrorWithData(c, http.StatusBadGateway, response.CodeBackendFailed, q.notice.Message,
			gin.H{"notice": q.notice})
	case err != nil:
		writeError(c, err, fallback)
	default:
		response.OK(c, gin.H{"notice": q.notice})
	}
}
