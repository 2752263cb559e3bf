package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/chat/start", h.Start)
	r.POST("/chat/stop", h.Stop)
	r.GET("/chat/stream", h.Stream)
	r.POST("/sessions/:id/poll", h.StartPoll)
	r.PATCH("/sessions/:id/correct-option", h.SetCorrectOption)
	return r
}

func TestStartWithoutYouTubeClient(t *testing.T) {
	h := NewHandler(NewRegistry(zap.NewNop()), nil, nil, nil, nil, nil, nil, 0, zap.NewNop())
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/start",
		strings.NewReader(`{"video_id":"abc","duration":60}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestStartRequestValidation(t *testing.T) {
	h := NewHandler(NewRegistry(zap.NewNop()), nil, nil, nil, &fakeSource{}, nil, nil, 0, zap.NewNop())
	r := newTestRouter(h)

	tests := []struct {
		name string
		body string
	}{
		{"missing video_id", `{"duration":60}`},
		{"missing duration", `{"video_id":"abc"}`},
		{"zero duration", `{"video_id":"abc","duration":0}`},
		{"bad correct option", `{"video_id":"abc","duration":60,"correct_option":"E"}`},
		{"not json", `duration=60`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/chat/start", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestStreamParamValidation(t *testing.T) {
	h := NewHandler(NewRegistry(zap.NewNop()), nil, nil, nil, &fakeSource{}, nil, nil, 0, zap.NewNop())
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/stream", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing live_chat_id: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/stream?live_chat_id=nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown live_chat_id: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStartPollInvalidSessionID(t *testing.T) {
	h := NewHandler(NewRegistry(zap.NewNop()), nil, nil, nil, &fakeSource{}, nil, nil, 0, zap.NewNop())
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/not-a-uuid/poll",
		strings.NewReader(`{"duration":60}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSetCorrectOptionValidation(t *testing.T) {
	h := NewHandler(NewRegistry(zap.NewNop()), nil, nil, nil, &fakeSource{}, nil, nil, 0, zap.NewNop())
	r := newTestRouter(h)

	for _, body := range []string{`{}`, `{"correct_option":"E"}`, `{"correct_option":"a"}`} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch,
			"/sessions/7b7aa0c6-8a41-4cde-a3af-4a4fa32f6dcf/correct-option",
			strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
	}
}
