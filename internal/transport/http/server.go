package http

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	"ropatopia/internal/bootstrap"
	"ropatopia/internal/transport/http/handler"
	"ropatopia/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	web := app.Config.App.WebDir
	router.StaticFile("/", filepath.Join(web, "index.html"))
	router.StaticFile("/login", filepath.Join(web, "login.html"))
	router.GET("/healthz", healthHandler.Check)

	svc := app.Services
	authHandler := handler.NewAuthHandler(svc.Auth)
	uploadHandler := handler.NewUploadHandler(svc.Upload, svc.Activities, svc.Preliminary)
	sessionHandler := handler.NewSessionHandler(svc.Sessions)
	questionnaireHandler := handler.NewQuestionnaireHandler(svc.Questionnaire)
	ropaHandler := handler.NewRopaHandler(svc.Ropa)
	knowledgeHandler := handler.NewKnowledgeHandler(svc.Knowledge)
	jobHandler := handler.NewJobHandler(svc.Jobs)
	claudeHandler := handler.NewClaudeHandler(svc.Claude)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.ClientSession(app.Clients, app.Config.Auth.CookieName, app.Config.Auth.CookieSecure))

	authGroup := v1.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/status", authHandler.Status)

	api := v1.Group("")
	api.Use(middleware.RequireAuth())

	api.POST("/uploads", uploadHandler.Upload)
	api.GET("/uploads/batches", uploadHandler.Batches)
	api.GET("/activities", uploadHandler.Activities)
	api.POST("/activities/select", uploadHandler.SelectActivities)

	api.GET("/sessions", sessionHandler.List)
	api.GET("/sessions/:id", sessionHandler.Get)
	api.DELETE("/sessions/:id", sessionHandler.Delete)

	qn := api.Group("/sessions/:id")
	qn.GET("/questionnaire", questionnaireHandler.View)
	qn.POST("/questionnaire/edit", questionnaireHandler.SetEditing)
	qn.POST("/questionnaire/questions", questionnaireHandler.AddQuestion)
	qn.PUT("/questionnaire/questions/:qid", questionnaireHandler.SetQuestion)
	qn.POST("/questionnaire/questions/:qid/run", questionnaireHandler.Run)
	qn.POST("/questionnaire/questions/:qid/dropdown", questionnaireHandler.ToggleDropdown)
	qn.POST("/questionnaire/questions/:qid/feedback", questionnaireHandler.ToggleFeedback)
	qn.DELETE("/questionnaire/questions/:qid", questionnaireHandler.Remove)
	qn.GET("/questionnaire/questions/:qid/history", questionnaireHandler.History)
	qn.POST("/questionnaire/save", questionnaireHandler.Save)
	qn.GET("/questionnaire/download", questionnaireHandler.Download)

	qn.GET("/knowledge", knowledgeHandler.List)
	qn.POST("/knowledge", knowledgeHandler.AddText)
	qn.POST("/knowledge/file", knowledgeHandler.AddFile)
	qn.PUT("/knowledge/:kid", knowledgeHandler.Update)
	qn.DELETE("/knowledge/:kid", knowledgeHandler.Delete)

	ropa := api.Group("/ropa")
	ropa.GET("/preliminary-questions", uploadHandler.PreliminaryQuestions)
	ropa.POST("/sessions", uploadHandler.StartRopaSession)
	ropa.GET("/sessions", ropaHandler.List)
	ropa.DELETE("/sessions/:id", ropaHandler.Delete)
	ropa.GET("/sessions/:id/questions", ropaHandler.Questions)
	ropa.POST("/sessions/:id/questions", ropaHandler.AddQuestion)
	ropa.DELETE("/sessions/:id/questions/:qid", ropaHandler.RemoveQuestion)
	ropa.PUT("/sessions/:id/answers/:qid", ropaHandler.SetAnswer)
	ropa.POST("/sessions/:id/save", ropaHandler.Save)
	ropa.GET("/sessions/:id/status", ropaHandler.Status)
	ropa.POST("/sessions/:id/document", ropaHandler.Document)
	ropa.GET("/sessions/:id/download", ropaHandler.Download)

	api.POST("/generate", questionnaireHandler.Generate)
	api.POST("/claude/generate", claudeHandler.Generate)
	api.POST("/jobs", jobHandler.Create)
	api.GET("/jobs", jobHandler.List)
	api.GET("/jobs/:id", jobHandler.Get)

	return router
}
