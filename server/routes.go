package server

import (
	"context"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/umakantv/go-utils/httpserver"

	"todo-service/config"
	"todo-service/handlers"
)

type route struct {
	httpserver.Route
	Handler httpserver.HandlerFunc
}

// routes lists every endpoint plus one OPTIONS route per path so browser
// preflights reach the CORS handler. Protected routes authenticate in
// Authenticator.Require rather than the httpserver bearer gate, whose 401
// would bypass CORS.
func routes(cfg *config.Config, auth *handlers.Authenticator, authHandler *handlers.AuthHandler, todoHandler *handlers.TodoHandler) []route {
	rs := []route{
		{httpserver.Route{Name: "HealthCheck", Method: "GET", Path: "/health", AuthType: "none"},
			healthCheck},
		{httpserver.Route{Name: "Register", Method: "POST", Path: "/register", AuthType: "none"},
			authHandler.Register},
		{httpserver.Route{Name: "Login", Method: "POST", Path: "/login", AuthType: "none"},
			authHandler.Login},
		{httpserver.Route{Name: "ListTodos", Method: "GET", Path: "/todos", AuthType: "none"},
			auth.Require(todoHandler.GetTodos)},
		{httpserver.Route{Name: "CreateTodo", Method: "POST", Path: "/todos", AuthType: "none"},
			auth.Require(todoHandler.CreateTodo)},
		{httpserver.Route{Name: "DeleteTodo", Method: "DELETE", Path: "/todos/{id}", AuthType: "none"},
			auth.Require(todoHandler.DeleteTodo)},
	}
	if cfg.ExposeSecretRoute {
		rs = append(rs, route{
			httpserver.Route{Name: "Secret", Method: "GET", Path: "/secret", AuthType: "none"},
			auth.Require(authHandler.Secret),
		})
	}

	seen := make(map[string]bool)
	var preflights []route
	for _, rt := range rs {
		if seen[rt.Path] {
			continue
		}
		seen[rt.Path] = true
		preflights = append(preflights, route{
			httpserver.Route{Name: rt.Name + "Preflight", Method: "OPTIONS", Path: rt.Path, AuthType: "none"},
			noContent,
		})
	}
	return append(rs, preflights...)
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
}

// withCORS runs next behind the CORS handler. Preflights are answered by
// the CORS handler and never reach next.
func withCORS(c *cors.Cors, next httpserver.HandlerFunc) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next(ctx, w, r)
		})).ServeHTTP(w, r)
	})
}

func noContent(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
