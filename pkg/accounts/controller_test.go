package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/account-notifier/pkg/apiresponses"
	"github.com/telekom/account-notifier/pkg/system"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *Service, *recordingPublisher) {
	t.Helper()
	svc, _, pub := newTestService(t)
	ctrl := NewController(svc, system.NewTestLogger(t))

	r := gin.New()
	require.NoError(t, ctrl.Register(r.Group("/api/"+ctrl.BasePath(), ctrl.Handlers()...)))
	return r, svc, pub
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantFields  map[string]string
		wantMessage string
	}{
		{
			name:       "valid",
			body:       `{"name":"Alice","email":"alice@example.com","age":30}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "age omitted",
			body:       `{"name":"Bob","email":"bob@example.com"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:        "duplicate email",
			body:        `{"name":"Alice Two","email":"alice@example.com"}`,
			wantStatus:  http.StatusConflict,
			wantMessage: "email already in use: alice@example.com",
		},
		{
			name:       "invalid fields",
			body:       `{"name":"A","email":"not-an-email","age":-1}`,
			wantStatus: http.StatusBadRequest,
			wantFields: map[string]string{
				"name":  "Name must be between 2 and 30 characters",
				"email": "Invalid email format",
				"age":   "Age must not be negative",
			},
		},
		{
			name:       "missing fields and age too high",
			body:       `{"age":111}`,
			wantStatus: http.StatusBadRequest,
			wantFields: map[string]string{
				"name":  "Name must not be empty",
				"email": "Email must not be empty",
				"age":   "Age must not be greater than 110",
			},
		},
		{
			name:        "malformed json",
			body:        `{"name":`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid request body",
		},
	}

	r, _, _ := newTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/users", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			switch {
			case tt.wantFields != nil:
				var body apiresponses.ValidationError
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "Validation Failed", body.Error)
				assert.Equal(t, "Invalid data", body.Message)
				assert.Equal(t, tt.wantFields, body.FieldErrors)
			case tt.wantMessage != "":
				var body apiresponses.APIError
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.wantStatus, body.Status)
				assert.Equal(t, tt.wantMessage, body.Message)
			default:
				var res Resource
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
				assert.NotZero(t, res.ID)
				assert.Equal(t, "/api/users/"+strconv.FormatInt(res.ID, 10), res.Links["self"].Href)
			}
		})
	}
}

func TestReadEndpoints(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/api/users", `{"name":"Alice","email":"alice@example.com","age":30}`).Code)
	require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/api/users", `{"name":"Bob","email":"bob@example.com"}`).Code)

	t.Run("get by id", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/users/1", "")
		require.Equal(t, http.StatusOK, w.Code)
		var res Resource
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "Alice", res.Name)
		assert.Equal(t, "/api/users", res.Links["users"].Href)
	})

	t.Run("get missing", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/users/42", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		var body apiresponses.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Not Found", body.Error)
		assert.Contains(t, body.Message, "no account with id 42")
	})

	t.Run("invalid id", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-3"} {
			w := doRequest(r, http.MethodGet, "/api/users/"+id, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, id)
		}
	})

	t.Run("list", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/users", "")
		require.Equal(t, http.StatusOK, w.Code)
		var col Collection
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &col))
		require.Len(t, col.Embedded.Users, 2)
		assert.Equal(t, "bob@example.com", col.Embedded.Users[1].Email)
		assert.Nil(t, col.Embedded.Users[1].Age)
		assert.Equal(t, "/api/users/count", col.Links["count"].Href)
	})

	t.Run("count", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/users/count", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", strings.TrimSpace(w.Body.String()))
	})

	t.Run("by email", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/api/users/by-email?email=bob@example.com", "")
		require.Equal(t, http.StatusOK, w.Code)
		var res Resource
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, int64(2), res.ID)
		assert.Equal(t, "/api/users/2", res.Links["user"].Href)

		assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/api/users/by-email?email=x@example.com", "").Code)
		assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodGet, "/api/users/by-email", "").Code)
	})
}

func TestUpdateAndDeleteEndpoints(t *testing.T) {
	r, _, pub := newTestRouter(t)
	require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/api/users", `{"name":"Alice","email":"alice@example.com","age":30}`).Code)
	require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/api/users", `{"name":"Bob","email":"bob@example.com"}`).Code)

	w := doRequest(r, http.MethodPatch, "/api/users/1", `{"name":"Alicia"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res Resource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Alicia", res.Name)
	assert.Equal(t, 30, *res.Age)

	w = doRequest(r, http.MethodPut, "/api/users/1", `{"name":"Alicia","email":"alicia@example.com","age":31}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusConflict, doRequest(r, http.MethodPut, "/api/users/1", `{"email":"bob@example.com"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPut, "/api/users/1", `{"email":"nope"}`).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodPut, "/api/users/9", `{"name":"Nobody"}`).Code)

	w = doRequest(r, http.MethodDelete, "/api/users/1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodDelete, "/api/users/1", "").Code)

	evs := pub.published()
	require.Len(t, evs, 3)
	assert.Equal(t, "alicia@example.com", evs[2].Email, "delete event carries the last stored state")
}

type failingRepository struct {
	*MemoryRepository
}

func (failingRepository) List(_ context.Context) ([]Account, error) {
	return nil, errors.New("database is on fire")
}

func TestInternalErrorIsSanitized(t *testing.T) {
	repo := failingRepository{NewMemoryRepository()}
	svc := NewService(repo, nil, system.NewTestLogger(t))
	ctrl := NewController(svc, system.NewTestLogger(t))
	r := gin.New()
	require.NoError(t, ctrl.Register(r.Group("/api/users")))

	w := doRequest(r, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "fire")
	assert.Contains(t, w.Body.String(), "An unexpected error occurred")
}
