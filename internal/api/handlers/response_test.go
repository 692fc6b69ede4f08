package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetImageType(t *testing.T) {
	tests := map[string]string{
		"":                           "empty",
		"https://example.com/a.jpg":  "url",
		"data:image/png;base64,AAAA": "base64_data_uri_png",
		"data:image/png,AAAA":        "invalid_data_uri",
		"/9j/4AAQSkZJRgABAQ":         "base64",
		"something else entirely":    "unknown_format",
	}
	for in, want := range tests {
		assert.Equal(t, want, GetImageType(in), in)
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, debug := range []bool{false, true} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Set(ConfigKey, &config.Config{App: config.AppConfig{Debug: debug}})

		RespondError(c, common.ErrQueueFull.Wrap(errors.New("10 pending")))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body common.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, common.ErrQueueFull.Code, body.Code)
		if debug {
			assert.Equal(t, "10 pending", body.Details)
		} else {
			assert.Empty(t, body.Details)
		}
	}
}

func TestRespondErrorPlainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondError(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), common.ErrCodeInternalError)
}

func TestRequestIDGenerated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	id := RequestID(c)
	assert.Len(t, id, 36)
	assert.Equal(t, id, RequestID(c))
}
