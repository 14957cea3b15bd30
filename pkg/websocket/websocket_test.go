package websocketPkg

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"CraneGuard/pkg/vision"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func inferenceServer(t *testing.T, reply func(inferenceRequest) string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req inferenceRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("bad request frame: %v", err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply(req))); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestAnalyzeImageReturnsReplyText(t *testing.T) {
	srv := inferenceServer(t, func(req inferenceRequest) string {
		if !strings.HasPrefix(req.Image, "data:image/jpeg;base64,") {
			return `{"error":"bad image"}`
		}
		return `{"text":"{\"humanDetected\":true,\"humanCount\":3}"}`
	})
	defer srv.Close()

	analyzer, closeFn := NewInferenceClient(wsURL(srv), quietLogger())
	defer closeFn()

	text, err := analyzer.AnalyzeImage(context.Background(), vision.Image{MimeType: "image/jpeg", Data: []byte("x")}, "prompt")
	if err != nil {
		t.Fatalf("AnalyzeImage() error = %v", err)
	}
	if text != `{"humanDetected":true,"humanCount":3}` {
		t.Errorf("AnalyzeImage() = %q", text)
	}
}

func TestAnalyzeImagePlainTextPassesThrough(t *testing.T) {
	srv := inferenceServer(t, func(inferenceRequest) string {
		return "no people here"
	})
	defer srv.Close()

	analyzer, closeFn := NewInferenceClient(wsURL(srv), quietLogger())
	defer closeFn()

	text, err := analyzer.AnalyzeImage(context.Background(), vision.Image{MimeType: "image/jpeg", Data: []byte("x")}, "prompt")
	if err != nil {
		t.Fatalf("AnalyzeImage() error = %v", err)
	}
	if text != "no people here" {
		t.Errorf("AnalyzeImage() = %q", text)
	}
}

func TestAnalyzeImageRateLimited(t *testing.T) {
	srv := inferenceServer(t, func(inferenceRequest) string {
		return `{"error":"quota exceeded","code":429}`
	})
	defer srv.Close()

	analyzer, closeFn := NewInferenceClient(wsURL(srv), quietLogger())
	defer closeFn()

	_, err := analyzer.AnalyzeImage(context.Background(), vision.Image{MimeType: "image/jpeg", Data: []byte("x")}, "prompt")
	if !errors.Is(err, vision.ErrRateLimited) {
		t.Errorf("AnalyzeImage() error = %v, want ErrRateLimited", err)
	}
}

func TestAnalyzeImageUnreachable(t *testing.T) {
	analyzer, closeFn := NewInferenceClient("ws://127.0.0.1:1/ws", quietLogger())
	defer closeFn()

	if _, err := analyzer.AnalyzeImage(context.Background(), vision.Image{MimeType: "image/jpeg", Data: []byte("x")}, "p"); err == nil {
		t.Error("expected an error for an unreachable service")
	}
}
