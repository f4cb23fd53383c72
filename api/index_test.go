package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	srv *httptest.Server
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Environment:    "test",
		Port:           "0",
		UseMemoryDB:    true,
		JWTSecret:      "test-secret-not-for-production",
		AllowedOrigins: []string{"*"},
	}
	db := database.NewMemoryDatabase()
	hub := realtime.NewHub()

	srv := httptest.NewServer(NewRouter(cfg, db, hub))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	resp.Body.Close()
	return resp, env
}

func (ts *testServer) register(t *testing.T, email string) models.UserLoginResponse {
	t.Helper()

	resp, env := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var login models.UserLoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.AccessToken)
	return login
}

func (ts *testServer) createProject(t *testing.T, token, name string) models.Project {
	t.Helper()

	resp, env := ts.do(t, http.MethodPost, "/api/projects", token, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var project models.Project
	require.NoError(t, json.Unmarshal(env.Data, &project))
	return project
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register(t, "alice@example.com")
	assert.Equal(t, "alice@example.com", alice.User.Email)

	// Duplicate email is a conflict
	resp, env := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "another-password",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	// Wrong password and unknown email both answer 401
	resp, _ = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "correct-horse-battery",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var login models.UserLoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))

	// Refresh issues a new access token
	resp, env = ts.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": login.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))
	assert.NotEmpty(t, refreshed["access_token"])

	// Protected routes reject missing and garbage tokens
	resp, _ = ts.do(t, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProjectAccessControl(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register(t, "alice@example.com")
	mallory := ts.register(t, "mallory@example.com")

	project := ts.createProject(t, alice.AccessToken, "Secret Launch")

	// Owner reads the full board
	resp, env := ts.do(t, http.MethodGet, "/api/projects/"+project.ID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail models.ProjectDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "alice@example.com", detail.OwnerEmail)
	assert.Empty(t, detail.Tasks)

	// A non-participant is forbidden, not told the project is missing
	resp, env = ts.do(t, http.MethodGet, "/api/projects/"+project.ID, mallory.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	// An unknown project is 404 for everyone
	resp, _ = ts.do(t, http.MethodGet, "/api/projects/no-such-project", alice.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Non-owners cannot rename, delete or invite
	resp, _ = ts.do(t, http.MethodPut, "/api/projects/"+project.ID, mallory.AccessToken, map[string]string{"name": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/projects/"+project.ID, mallory.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/invite", mallory.AccessToken, map[string]string{"email": "mallory@example.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMembershipAndTasks(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register(t, "alice@example.com")
	bob := ts.register(t, "bob@example.com")

	project := ts.createProject(t, alice.AccessToken, "Sprint Board")

	// Invite is owner-only and keyed by email
	resp, _ := ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/invite", alice.AccessToken, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Re-inviting succeeds and leaves exactly one membership
	resp, _ = ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/invite", alice.AccessToken, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := ts.do(t, http.MethodGet, "/api/projects/"+project.ID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail models.ProjectDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.Len(t, detail.Members, 1)
	assert.Equal(t, "bob@example.com", detail.Members[0].Email)

	// Unknown email is 404, inviting the owner is invalid
	resp, _ = ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/invite", alice.AccessToken, map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/invite", alice.AccessToken, map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_OPERATION", env.Error.Code)

	// Members write tasks
	resp, env = ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/tasks", bob.AccessToken, map[string]string{"title": "Write the docs"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, models.StatusTodo, task.Status)

	// Partial update changes only the given fields
	resp, env = ts.do(t, http.MethodPatch, "/api/tasks/"+task.ID, bob.AccessToken, map[string]string{"status": "in-progress"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Task
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, "Write the docs", updated.Title)

	// Unknown status is rejected before the store sees it
	resp, _ = ts.do(t, http.MethodPatch, "/api/tasks/"+task.ID, bob.AccessToken, map[string]string{"status": "blocked"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Analytics zero-fills every column
	resp, env = ts.do(t, http.MethodGet, "/api/projects/"+project.ID+"/analytics", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var counts []models.StatusCount
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	require.Len(t, counts, 3)
	assert.Equal(t, models.StatusCount{Status: models.StatusTodo, Count: 0}, counts[0])
	assert.Equal(t, models.StatusCount{Status: models.StatusInProgress, Count: 1}, counts[1])
	assert.Equal(t, models.StatusCount{Status: models.StatusDone, Count: 0}, counts[2])

	// Removing the owner is invalid; removing a member works
	resp, _ = ts.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/members/"+alice.User.ID, alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/members/"+bob.User.ID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Access ends with the membership
	resp, _ = ts.do(t, http.MethodGet, "/api/projects/"+project.ID, bob.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestExportDownload(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register(t, "alice@example.com")
	project := ts.createProject(t, alice.AccessToken, "Exportable")

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/projects/"+project.ID+"/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+alice.AccessToken)

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	disposition := resp.Header.Get("Content-Disposition")
	assert.Equal(t, fmt.Sprintf("attachment; filename=project-%s.json", project.ID), disposition)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var detail models.ProjectDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, project.ID, detail.Project.ID)
}

func TestPublicDirectory(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register(t, "alice@example.com")
	project := ts.createProject(t, alice.AccessToken, "Visible To All")

	// No token needed for the directory
	resp, env := ts.do(t, http.MethodGet, "/api/all-projects", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var projects []models.Project
	require.NoError(t, json.Unmarshal(env.Data, &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)
	assert.Equal(t, alice.User.ID, projects[0].OwnerID)

	// Email batch lookup; unknown ids are omitted
	resp, env = ts.do(t, http.MethodGet, "/api/users/emails?ids="+alice.User.ID+",no-such-user", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var emails map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &emails))
	assert.Equal(t, map[string]string{alice.User.ID: "alice@example.com"}, emails)
}

func dialWS(t *testing.T, ts *testServer, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.srv.URL, "http", "ws", 1) + "/ws?token=" + token
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

type wsFrame struct {
	Event string             `json:"event"`
	Data  models.ChangeEvent `json:"data"`
}

func TestRealtimeDelivery(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.register(t, "alice@example.com")
	bob := ts.register(t, "bob@example.com")

	project := ts.createProject(t, alice.AccessToken, "Live Board")
	resp, _ := ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/invite", alice.AccessToken, map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Unauthenticated upgrades are rejected before the handshake
	wsURL := strings.Replace(ts.srv.URL, "http", "ws", 1) + "/ws"
	_, badResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, badResp)
	assert.Equal(t, http.StatusUnauthorized, badResp.StatusCode)
	badResp.Body.Close()

	ws := dialWS(t, ts, bob.AccessToken)
	require.NoError(t, ws.WriteJSON(map[string]string{
		"action":     "joinProject",
		"project_id": project.ID,
	}))

	// Wait for the join frame to land in the room registry
	require.Eventually(t, func() bool {
		return len(ts.hub.MembersOf(project.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A mutation over HTTP arrives as a taskUpdate frame
	resp, env := ts.do(t, http.MethodPost, "/api/projects/"+project.ID+"/tasks", alice.AccessToken, map[string]string{"title": "Ship it"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame wsFrame
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, "taskUpdate", frame.Event)
	assert.Equal(t, models.EventCreate, frame.Data.Kind)
	require.NotNil(t, frame.Data.Task)
	assert.Equal(t, task.ID, frame.Data.Task.ID)
	assert.Equal(t, "Ship it", frame.Data.Task.Title)

	// Project creation fans out on the global topic, no room join needed
	created := ts.createProject(t, alice.AccessToken, "Announced Everywhere")

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, "projectUpdate", frame.Event)
	assert.Equal(t, models.EventCreate, frame.Data.Kind)
	require.NotNil(t, frame.Data.Project)
	assert.Equal(t, created.ID, frame.Data.Project.ID)

	// After leaving the room, per-project events stop
	require.NoError(t, ws.WriteJSON(map[string]string{
		"action":     "leaveProject",
		"project_id": project.ID,
	}))
	require.Eventually(t, func() bool {
		return len(ts.hub.MembersOf(project.ID)) == 0
	}, 2*time.Second, 10*time.Millisecond)

	resp, _ = ts.do(t, http.MethodDelete, "/api/tasks/"+task.ID, alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	err = ws.ReadJSON(&frame)
	assert.Error(t, err)
}
