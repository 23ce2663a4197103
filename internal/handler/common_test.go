package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xavierau/event-platform-sub006/internal/clock"
	"github.com/xavierau/event-platform-sub006/internal/middleware"
)

const (
	testSecret  = "test-secret"
	testBaseURL = "https://tickets.example.com"
)

var (
	InvalidJSON = `{"invalid": json}`

	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testClock = clock.NewFixed(testNow)
)

// create JSON request body
func createJSONRequest(data interface{}) *bytes.Buffer {
	if raw, ok := data.(string); ok {
		return bytes.NewBufferString(raw)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return bytes.NewBuffer([]byte(""))
	}
	return bytes.NewBuffer(jsonData)
}

// create HTTP request with JSON body
func createJSONHTTPRequest(method, url string, data interface{}) *http.Request {
	req, err := http.NewRequest(method, url, createJSONRequest(data))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withToken(t *testing.T, req *http.Request, userID int, role string) *http.Request {
	token, err := middleware.IssueToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Authenticate(testSecret))
	return router
}

func decodeBody(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &out))
	return out
}
