package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"ropatopia/internal/backend"
	"ropatopia/internal/model"
)

type AuthFailure string

const (
	FailureCredentials     AuthFailure = "credentials"
	FailureInvalidSignup   AuthFailure = "invalid_signup"
	FailureConflict        AuthFailure = "conflict"
	FailureServer          AuthFailure = "server"
	FailureNetwork         AuthFailure = "network"
	FailureInvalidResponse AuthFailure = "invalid_response"
	FailureOther           AuthFailure = "other"
)

const (
	msgWrongCredentials = "Wrong username or password"
	msgServerError      = "Server error. Please try again later."
	msgNetworkError     = "Network error. Please check your connection and try again."
	msgInvalidResponse  = "Invalid response from server"
	msgLoginFailed      = "Login failed"
	msgInvalidSignup    = "Invalid signup data. Please check your information."
	msgUserExists       = "User already exists with this email."
	msgSignupFailed     = "Signup failed"
)

// AuthError carries a message meant for the person at the login form.
type AuthError struct {
	Failure AuthFailure
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

type AuthenticationRepository struct {
	caller backend.Caller
}

func NewAuthenticationRepository(caller backend.Caller) *AuthenticationRepository {
	return &AuthenticationRepository{caller: caller}
}

// Login exchanges credentials for an access token. Only the token is returned;
// storing it is the caller's job.
func (r *AuthenticationRepository) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	resp, err := r.caller.Call(ctx, "/auth/jwt/login", backend.RequestOptions{
		Method: http.MethodPost,
		Form:   url.Values{"username": {req.Username}, "password": {req.Password}},
	}, false)
	if err != nil {
		return nil, &AuthError{Failure: FailureNetwork, Message: msgNetworkError, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Failure: FailureCredentials, Message: msgWrongCredentials}
	case resp.StatusCode == http.StatusInternalServerError:
		return nil, &AuthError{Failure: FailureServer, Message: msgServerError}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &AuthError{Failure: FailureOther, Message: statusMessage(resp.StatusCode, msgLoginFailed)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Failure: FailureNetwork, Message: msgNetworkError, Err: err}
	}
	var out model.AuthResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, &AuthError{Failure: FailureInvalidResponse, Message: msgInvalidResponse, Err: err}
		}
	}
	if out.AccessToken == "" {
		return nil, &AuthError{Failure: FailureOther, Message: msgLoginFailed}
	}
	return &out, nil
}

// Signup registers an account. It does not log the caller in.
func (r *AuthenticationRepository) Signup(ctx context.Context, req model.SignupRequest) error {
	resp, err := r.caller.Call(ctx, "/auth/register", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   req,
	}, false)
	if err != nil {
		return &AuthError{Failure: FailureNetwork, Message: msgNetworkError, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return &AuthError{Failure: FailureInvalidSignup, Message: msgInvalidSignup}
	case resp.StatusCode == http.StatusConflict:
		return &AuthError{Failure: FailureConflict, Message: msgUserExists}
	case resp.StatusCode == http.StatusInternalServerError:
		return &AuthError{Failure: FailureServer, Message: msgServerError}
	default:
		return &AuthError{Failure: FailureOther, Message: statusMessage(resp.StatusCode, msgSignupFailed)}
	}
}

func (r *AuthenticationRepository) Logout(ctx context.Context) error {
	resp, err := r.caller.Call(ctx, "/auth/jwt/logout", backend.RequestOptions{Method: http.MethodPost}, true)
	if err != nil {
		return err
	}
	return backend.Discard(resp)
}

func statusMessage(code int, fallback string) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fallback
}

// IsAuthError reports whether err carries a user-facing auth message.
func IsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
