package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/pkg/apperr"
)

type errorBody struct {
	Code    int      `json:"code"`
	Msg     string   `json:"msg"`
	Kind    string   `json:"kind"`
	ErrCode string   `json:"err_code"`
	Fields  []string `json:"fields"`
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func jsonReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAccountHandler_Register(t *testing.T) {
	user := &model.User{ID: 1, DeveloperTag: "alice"}

	tests := []struct {
		name       string
		body       string
		setup      func(*MockCredentialService)
		wantStatus int
		wantFields []string
		wantCookie bool
	}{
		{
			name: "success starts a session",
			body: `{"email":"alice@example.com","password":"Secret1!","developer_tag":"alice"}`,
			setup: func(m *MockCredentialService) {
				m.On("Register", mock.Anything, service.RegisterInput{Email: "alice@example.com", Password: "Secret1!", DeveloperTag: "alice"}).Return(user, nil)
				m.On("GetEmail", user).Return("alice@example.com", nil)
			},
			wantStatus: http.StatusCreated,
			wantCookie: true,
		},
		{
			name:       "every missing field is listed",
			body:       `{"email":"alice@example.com"}`,
			setup:      func(m *MockCredentialService) {},
			wantStatus: http.StatusBadRequest,
			wantFields: []string{"password", "developer_tag"},
		},
		{
			name: "duplicate",
			body: `{"email":"a@b.co","password":"Secret1!","developer_tag":"alice"}`,
			setup: func(m *MockCredentialService) {
				m.On("Register", mock.Anything, mock.Anything).Return(nil, apperr.Conflict("developer tag already taken"))
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "malformed json",
			body:       `{"email":`,
			setup:      func(m *MockCredentialService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := &MockCredentialService{}
			tt.setup(creds)
			h := NewAccountHandler(creds, &MockAccountService{})
			r := setupRouter(nil)
			r.POST("/auth/register", h.Register)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, jsonReq(http.MethodPost, "/auth/register", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantFields != nil {
				b := decodeErr(t, w)
				assert.Equal(t, "missing_field", b.ErrCode)
				assert.Equal(t, tt.wantFields, b.Fields)
			}
			assert.Equal(t, tt.wantCookie, len(w.Result().Cookies()) > 0)
			creds.AssertExpectations(t)
		})
	}
}

func TestAccountHandler_Login(t *testing.T) {
	creds := &MockCredentialService{}
	creds.On("Authenticate", mock.Anything, "alice@example.com", "wrong").Return(nil, apperr.Authentication("invalid email or password"))
	h := NewAccountHandler(creds, &MockAccountService{})
	r := setupRouter(nil)
	r.POST("/auth/login", h.Login)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonReq(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong"}`))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", decodeErr(t, w).Msg)
	assert.Empty(t, w.Result().Cookies())
}

func TestAccountHandler_APIKey(t *testing.T) {
	actor := &model.User{ID: 1, DeveloperTag: "alice"}
	creds := &MockCredentialService{}
	creds.On("GenerateAPIKey", mock.Anything, actor).Return("dvlg_abc", nil)
	creds.On("RevokeAPIKey", mock.Anything, actor).Return(nil)
	h := NewAccountHandler(creds, &MockAccountService{})
	r := setupRouter(actor)
	r.POST("/me/api_key", h.GenerateAPIKey)
	r.DELETE("/me/api_key", h.RevokeAPIKey)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/me/api_key", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"api_key":"dvlg_abc"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/me/api_key", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	creds.AssertExpectations(t)
}

func TestAccountHandler_SetTwoFactorRequiresFlag(t *testing.T) {
	actor := &model.User{ID: 1, DeveloperTag: "alice"}
	creds := &MockCredentialService{}
	h := NewAccountHandler(creds, &MockAccountService{})
	r := setupRouter(actor)
	r.PUT("/me/two_factor", h.SetTwoFactor)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonReq(http.MethodPut, "/me/two_factor", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"enabled"}, decodeErr(t, w).Fields)
	creds.AssertNotCalled(t, "SetTwoFactor", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountHandler_Export(t *testing.T) {
	actor := &model.User{ID: 1, DeveloperTag: "alice"}
	snap := &service.ExportSnapshot{Profile: service.ExportProfile{DeveloperTag: "alice"}, Entries: []service.ExportEntry{{ID: 3, Title: "t"}}}
	accounts := &MockAccountService{}
	accounts.On("ExportUserData", mock.Anything, actor).Return(snap, nil)
	accounts.On("ArchiveExport", mock.Anything, actor).Return(&service.ExportArchive{Key: "exports/alice/1.json", URL: "https://signed"}, nil)
	h := NewAccountHandler(&MockCredentialService{}, accounts)
	r := setupRouter(actor)
	r.GET("/me/export", h.Export)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/export", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"developer_tag":"alice"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/export?format=yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "developer_tag: alice")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/export?archive=true", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://signed")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountHandler_DeleteAccount(t *testing.T) {
	actor := &model.User{ID: 1, DeveloperTag: "alice"}

	t.Run("success", func(t *testing.T) {
		accounts := &MockAccountService{}
		accounts.On("DeleteAccount", mock.Anything, actor).Return(nil)
		h := NewAccountHandler(&MockCredentialService{}, accounts)
		r := setupRouter(actor)
		r.DELETE("/me", h.DeleteAccount)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/me", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rollback is reported without details", func(t *testing.T) {
		accounts := &MockAccountService{}
		accounts.On("DeleteAccount", mock.Anything, actor).Return(apperr.DeletionFailed(errors.New("fk violation on comments")))
		h := NewAccountHandler(&MockCredentialService{}, accounts)
		r := setupRouter(actor)
		r.DELETE("/me", h.DeleteAccount)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/me", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		b := decodeErr(t, w)
		assert.Equal(t, "deletion_failed", b.Kind)
	})
}
