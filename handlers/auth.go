package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"todo-service/credentials"
	"todo-service/models"
	"todo-service/tokens"
)

// AuthHandler serves registration, login and the token echo route.
type AuthHandler struct {
	credentials *credentials.Service
	tokens      *tokens.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cs *credentials.Service, ts *tokens.Service) *AuthHandler {
	return &AuthHandler{
		credentials: cs,
		tokens:      ts,
	}
}

// Register handles POST /register
func (h *AuthHandler) Register(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(ctx, w, r)
	if !ok {
		return
	}

	logRequest(ctx, "info", "Registering user", zap.String("username", req.Username))

	user, err := h.credentials.Register(ctx, req.Username, req.Password)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "User registered", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Register complete"})
}

// Login handles POST /login and returns a bearer token
func (h *AuthHandler) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(ctx, w, r)
	if !ok {
		return
	}

	user, err := h.credentials.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	token, err := h.tokens.Issue(tokens.Payload{UserID: user.ID, Username: user.Username})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Login successful", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token})
}

// Secret handles GET /secret and echoes the verified token payload
func (h *AuthHandler) Secret(ctx context.Context, w http.ResponseWriter, r *http.Request, user *tokens.Payload) {
	logRequest(ctx, "debug", "Token payload requested", zap.Int64("user_id", user.UserID))
	writeJSON(w, http.StatusOK, user)
}

// decodeCredentials reports JSON errors, including non-string fields, as
// validation failures.
func decodeCredentials(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.CredentialsRequest, bool) {
	var req models.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		writeError(ctx, w, invalidJSON)
		return req, false
	}
	return req, true
}
