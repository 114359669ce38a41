package serializer

import (
	"errors"
	"net/http"
	"testing"

	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"missing fields", apperr.MissingFields("title", "content"), http.StatusBadRequest, "missing_field", ""},
		{"conflict", apperr.Conflict("user already exists"), http.StatusConflict, "", "user already exists"},
		{"not found", apperr.NotFound("entry not found"), http.StatusNotFound, "", "entry not found"},
		{"auth", apperr.Authentication("invalid credentials"), http.StatusUnauthorized, "", "invalid credentials"},
		{"forbidden", apperr.Forbidden("not yours"), http.StatusForbidden, "", "not yours"},
		{"external", apperr.ExternalService("github", errors.New("x")), http.StatusBadGateway, "", ""},
		{"deletion", apperr.DeletionFailed(errors.New("fk")), http.StatusInternalServerError, "", "deletion failed, nothing was removed"},
		{"plain error", errors.New("pq: connection refused"), http.StatusInternalServerError, "", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := FromError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantStatus, body.Code)
			assert.Equal(t, tt.wantCode, body.ErrCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Msg)
			}
			// release mode never leaks the cause
			assert.Empty(t, body.Error)
		})
	}

	_, body := FromError(apperr.MissingFields("title", "content"))
	assert.Equal(t, []string{"title", "content"}, body.Fields)
}
