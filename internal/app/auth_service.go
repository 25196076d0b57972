package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ropatopia/internal/auth"
	"ropatopia/internal/model"
	"ropatopia/internal/pkg/jwtutil"
	"ropatopia/internal/repository"
)

type AuthService struct {
	gateway  *Gateway
	onLogout func(clientID string)
	logger   *slog.Logger
}

type LoginInput struct {
	Username string
	Password string
}

type SignupInput struct {
	Email    string
	Name     string
	Password string
}

type AuthStatus struct {
	State     auth.State `json:"state"`
	Error     string     `json:"error,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

// NewAuthService builds the login flow. onLogout, when set, is told which
// client logged out so its workspaces can be dropped.
func NewAuthService(gateway *Gateway, onLogout func(clientID string), logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{gateway: gateway, onLogout: onLogout, logger: logger}
}

func (s *AuthService) Login(ctx context.Context, sess *auth.Session, input LoginInput) error {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return ErrInvalidInput
	}

	sess.Begin()
	out, err := s.gateway.For(sess).Auth.Login(ctx, model.LoginRequest{Username: username, Password: input.Password})
	if err != nil {
		message := "Login failed"
		if authErr, ok := repository.IsAuthError(err); ok {
			message = authErr.Message
		}
		if failErr := sess.Fail(ctx, message); failErr != nil {
			s.logger.Error("drop token after failed login", "client", sess.ID, "error", failErr)
		}
		return err
	}
	if err := sess.Authenticate(ctx, out.AccessToken); err != nil {
		_ = sess.Fail(ctx, "Login failed")
		return fmt.Errorf("store access token failed: %w", err)
	}
	s.logger.Info("client logged in", "client", sess.ID)
	return nil
}

// Signup registers an account; the caller still has to log in.
func (s *AuthService) Signup(ctx context.Context, sess *auth.Session, input SignupInput) error {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	name := strings.TrimSpace(input.Name)
	if email == "" || name == "" || input.Password == "" {
		return ErrInvalidInput
	}

	sess.Begin()
	err := s.gateway.For(sess).Auth.Signup(ctx, model.SignupRequest{Email: email, Name: name, Password: input.Password})
	if err != nil {
		message := "Signup failed"
		if authErr, ok := repository.IsAuthError(err); ok {
			message = authErr.Message
		}
		if failErr := sess.Fail(ctx, message); failErr != nil {
			s.logger.Error("record failed signup", "client", sess.ID, "error", failErr)
		}
		return err
	}
	sess.Settle(ctx)
	return nil
}

// Logout tells the backend, then clears the local token whatever it answered.
func (s *AuthService) Logout(ctx context.Context, sess *auth.Session) error {
	if err := s.gateway.For(sess).Auth.Logout(ctx); err != nil {
		s.logger.Warn("backend logout failed", "client", sess.ID, "error", err)
	}
	if s.onLogout != nil {
		s.onLogout(sess.ID)
	}
	if err := sess.ClearAuth(ctx); err != nil {
		return fmt.Errorf("clear auth failed: %w", err)
	}
	return nil
}

func (s *AuthService) Status(ctx context.Context, sess *auth.Session) AuthStatus {
	st := sess.Status()
	out := AuthStatus{State: st.State, Error: st.Error}
	token, err := sess.AccessToken(ctx)
	if err != nil || token == "" {
		return out
	}
	if exp, err := jwtutil.ExpiresAt(token); err == nil {
		out.ExpiresAt = &exp
	}
	out.Expired = jwtutil.IsExpired(token, time.Now())
	return out
}
