package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/httpserver"

	"todo-service/config"
	"todo-service/credentials"
	"todo-service/handlers"
	"todo-service/models"
	"todo-service/store/filestore"
	"todo-service/todos"
	"todo-service/tokens"
)

const testOrigin = "http://localhost:3000"

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
}

// startHTTPServer serves the routes on a real httpserver.Server, wired the
// way StartServer wires them, plus a /whoami route behind the bearer gate.
func startHTTPServer(t *testing.T) string {
	t.Helper()
	st := filestore.New(filestore.NewDisk(filepath.Join(t.TempDir(), "db.json")))
	ts := tokens.NewService("server-test-secret", time.Hour)
	cs, err := credentials.NewService(st, nil, nil, 4)
	require.NoError(t, err)

	auth := handlers.NewAuthenticator(ts, false)
	authHandler := handlers.NewAuthHandler(cs, ts)
	todoHandler := handlers.NewTodoHandler(todos.NewService(st, nil))

	port := freePort(t)
	srv := httpserver.New(port, auth.CheckAuth)
	corsHandler := newCORS([]string{testOrigin})
	for _, rt := range routes(&config.Config{}, auth, authHandler, todoHandler) {
		srv.Register(rt.Route, withCORS(corsHandler, rt.Handler))
	}
	srv.Register(httpserver.Route{Name: "WhoAmI", Method: "GET", Path: "/whoami", AuthType: "bearer"},
		auth.Require(func(ctx context.Context, w http.ResponseWriter, r *http.Request, user *tokens.Payload) {
			gateClient := ""
			if ra := httpserver.GetRequestAuth(ctx); ra != nil {
				gateClient = ra.Client
			}
			json.NewEncoder(w).Encode(map[string]string{"username": user.Username, "gate_client": gateClient})
		}))

	go srv.Start()

	baseURL := "http://127.0.0.1:" + port
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	return baseURL
}

func send(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func loginOver(t *testing.T, baseURL, username string) string {
	t.Helper()
	creds := models.CredentialsRequest{Username: username, Password: "pw123456"}
	resp := send(t, "POST", baseURL+"/register", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, "POST", baseURL+"/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login models.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	return login.Token
}

func TestHTTPServerTodoRoutes(t *testing.T) {
	baseURL := startHTTPServer(t)
	token := loginOver(t, baseURL, "alice")

	resp := send(t, "POST", baseURL+"/todos", token, models.CreateTodoRequest{Title: "test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	var created models.CreateTodoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp = send(t, "GET", baseURL+"/todos", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Todo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)

	resp = send(t, "DELETE", baseURL+"/todos/"+strconv.FormatInt(created.Data.ID, 10), token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServerUnauthorizedKeepsCORS(t *testing.T) {
	baseURL := startHTTPServer(t)

	for _, token := range []string{"", "not-a-token"} {
		resp := send(t, "GET", baseURL+"/todos", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	}
}

func TestHTTPServerPreflight(t *testing.T) {
	baseURL := startHTTPServer(t)

	req, err := http.NewRequest("OPTIONS", baseURL+"/todos/1", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "DELETE", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestHTTPServerBearerGateClaims(t *testing.T) {
	baseURL := startHTTPServer(t)
	token := loginOver(t, baseURL, "alice")

	resp := send(t, "GET", baseURL+"/whoami", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, "alice", got["gate_client"])

	resp = send(t, "GET", baseURL+"/whoami", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
