package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	logger "github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"todo-service/apperr"
	"todo-service/tokens"
)

// logRequest logs with the route, method, path and authenticated user
// taken from the request context.
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	routeName := httpserver.GetRouteName(ctx)
	method := httpserver.GetRouteMethod(ctx)
	path := httpserver.GetRoutePath(ctx)

	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + routeName + " - " + method + " - " + path
	if client := clientName(ctx); client != "" {
		logMsg += " - client:" + client
	}
	if message != "" {
		logMsg += " - " + message
	}

	allFields := append([]zap.Field{
		zap.String("route", routeName),
		zap.String("method", method),
		zap.String("path", path),
	}, fields...)

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps an apperr kind to its status code and errs payload.
// Causes of internal errors are logged and never sent.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	message := apperr.MessageOf(err)
	status := apperr.HTTPStatus(kind)

	var body interface{}
	switch kind {
	case apperr.KindValidation, apperr.KindConflict:
		body = errs.NewValidationError(message)
	case apperr.KindAuth, apperr.KindVerification:
		body = errs.NewAuthenticationError(message)
	case apperr.KindNotFound:
		body = errs.NewNotFoundError(message)
	default:
		logRequest(ctx, "error", message, zap.Error(err))
		body = errs.NewInternalServerError(message)
	}

	if kind != apperr.KindInternal {
		logRequest(ctx, "info", message, zap.String("kind", kind.String()))
	}
	writeJSON(w, status, body)
}

// UserHandlerFunc is a handler for routes that need a verified token.
type UserHandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, user *tokens.Payload)

// Authenticator verifies bearer tokens for protected routes.
type Authenticator struct {
	tokens     *tokens.Service
	allowQuery bool
}

// NewAuthenticator creates an authenticator. allowQuery also accepts the
// token as a ?token= query parameter.
func NewAuthenticator(ts *tokens.Service, allowQuery bool) *Authenticator {
	return &Authenticator{tokens: ts, allowQuery: allowQuery}
}

// CheckAuth is the httpserver auth gate for routes registered with
// AuthType "bearer". The service's own routes use AuthType "none" and
// Require, since the gate's plain-text 401 skips the CORS handler.
func (a *Authenticator) CheckAuth(r *http.Request) (bool, httpserver.RequestAuth) {
	payload, err := a.verify(r)
	if err != nil {
		return false, httpserver.RequestAuth{}
	}

	return true, httpserver.RequestAuth{
		Type:   "bearer",
		Client: payload.Username,
		Claims: map[string]interface{}{
			"payload":  payload,
			"user_id":  payload.UserID,
			"username": payload.Username,
		},
	}
}

// Require resolves the caller and answers 401 itself, so the response
// still passes through the CORS handler. A payload already stored by
// CheckAuth is reused.
func (a *Authenticator) Require(next UserHandlerFunc) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		payload, ok := payloadFromAuth(httpserver.GetRequestAuth(ctx))
		if !ok {
			var err error
			if payload, err = a.verify(r); err != nil {
				writeError(ctx, w, err)
				return
			}
		}

		ctx = context.WithValue(ctx, userKey{}, payload)
		next(ctx, w, r, payload)
	})
}

type userKey struct{}

func payloadFromAuth(auth *httpserver.RequestAuth) (*tokens.Payload, bool) {
	if auth == nil {
		return nil, false
	}
	claims, _ := auth.Claims.(map[string]interface{})
	payload, ok := claims["payload"].(*tokens.Payload)
	return payload, ok && payload != nil
}

func clientName(ctx context.Context) string {
	if user, ok := ctx.Value(userKey{}).(*tokens.Payload); ok {
		return user.Username
	}
	if auth := httpserver.GetRequestAuth(ctx); auth != nil {
		return auth.Client
	}
	return ""
}

func (a *Authenticator) verify(r *http.Request) (*tokens.Payload, error) {
	return a.tokens.Verify(bearerToken(r, a.allowQuery))
}

func bearerToken(r *http.Request, allowQuery bool) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}
