package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractwatch/config"
	"github.com/AnTengye/contractwatch/service"
)

func callbackRouter(svc *service.MineruService) *gin.Engine {
	router := gin.New()
	router.POST("/api/mineru/callback", NewCallbackHandler(svc).HandleCallback)
	return router
}

func postCallback(router *gin.Engine, body any) *httptest.ResponseRecorder {
	var data []byte
	switch v := body.(type) {
	case string:
		data = []byte(v)
	default:
		data, _ = json.Marshal(v)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/mineru/callback", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCallbackHandlerHandleCallback(t *testing.T) {
	cfg := &config.MineruConfig{Seed: "seed", UID: "uid"}
	router := callbackRouter(service.NewMineruService(cfg, nil))

	content := `{"task_id":"task-1","data_id":"no-such-job","state":"done"}`
	sum := sha256.Sum256([]byte("uid" + "seed" + content))
	valid := hex.EncodeToString(sum[:])

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{
			name:           "invalid json",
			body:           "invalid json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty content",
			body:           service.MineruCallbackPayload{Checksum: valid},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad checksum",
			body:           service.MineruCallbackPayload{Checksum: "bad", Content: content},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "no waiting job",
			body:           service.MineruCallbackPayload{Checksum: valid, Content: content},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCallback(router, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestCallbackHandlerInvalidContent(t *testing.T) {
	router := callbackRouter(service.NewMineruService(&config.MineruConfig{}, nil))

	w := postCallback(router, service.MineruCallbackPayload{Content: "{not json"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCallbackHandlerDisabled(t *testing.T) {
	router := callbackRouter(nil)

	w := postCallback(router, service.MineruCallbackPayload{Content: "{}"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}
