package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestProjectHandler_AnalyzeDocument_NotConfigured(t *testing.T) {
	// The analyzer is only wired when an API key is configured; without
	// it the endpoint must answer 503 instead of dereferencing nil.
	handler := NewProjectHandler(nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"text":"access control policy"}`)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/projects/1/analyze", body)
	c.Request.Header.Set("Content-Type", "application/json")

	handler.AnalyzeDocument(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
