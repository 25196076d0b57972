package app

import (
	"errors"
	"log/slog"

	"ropatopia/internal/backend"
	"ropatopia/internal/repository"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrSessionNotFound  = errors.New("session not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNotConfirmed     = errors.New("action not confirmed")
	ErrNotEditing       = errors.New("questionnaire is not in edit mode")
)

// ValidationError is a form error shown to the user as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// Repositories groups the backend repositories bound to one client's token.
type Repositories struct {
	Auth       *repository.AuthenticationRepository
	Sessions   *repository.SessionRepository
	Ingestion  *repository.IngestionRepository
	Activities *repository.ProcessingActivityRepository
	PIA        *repository.GeneratePIARepository
	Ropa       *repository.RopaTemplateRepository
	Knowledge  *repository.KnowledgeRepository
	Claude     *repository.ClaudeRepository
}

func NewRepositories(caller backend.Caller, logger *slog.Logger) *Repositories {
	return &Repositories{
		Auth:       repository.NewAuthenticationRepository(caller),
		Sessions:   repository.NewSessionRepository(caller, logger),
		Ingestion:  repository.NewIngestionRepository(caller),
		Activities: repository.NewProcessingActivityRepository(caller),
		PIA:        repository.NewGeneratePIARepository(caller),
		Ropa:       repository.NewRopaTemplateRepository(caller),
		Knowledge:  repository.NewKnowledgeRepository(caller),
		Claude:     repository.NewClaudeRepository(caller),
	}
}

// Gateway binds the shared backend client to a client's token provider.
type Gateway struct {
	client *backend.Client
	logger *slog.Logger
}

func NewGateway(client *backend.Client, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

func (g *Gateway) For(tokens backend.TokenProvider) *Repositories {
	return NewRepositories(g.client.Bind(tokens), g.logger)
}
