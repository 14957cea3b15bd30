package detector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"CraneGuard/internal/entity"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestClientDetectSuccess(t *testing.T) {
	var gotBody detectRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"humanDetected":true,"humanCount":3,"confidence":77,"details":"three workers"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, WithLogger(quietLogger()), WithHeader("apikey", "secret"))
	got, err := client.Detect(context.Background(), "data:image/jpeg;base64,AAAA")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if gotBody.ImageData != "data:image/jpeg;base64,AAAA" {
		t.Errorf("request imageData = %q", gotBody.ImageData)
	}
	if gotKey != "secret" {
		t.Errorf("apikey header = %q, want secret", gotKey)
	}
	want := entity.DetectionResult{HumanDetected: true, HumanCount: 3, Confidence: 77, Details: "three workers"}
	if got != want {
		t.Errorf("Detect() = %+v, want %+v", got, want)
	}
}

func TestClientDetectChatEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Result:\n` + "```json" + `\n{\"humanDetected\":true,\"humanCount\":1,\"confidence\":60,\"details\":\"one\"}\n` + "```" + `"}}]}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, WithLogger(quietLogger())).Detect(context.Background(), "x")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !got.HumanDetected || got.HumanCount != 1 || got.Details != "one" {
		t.Errorf("Detect() = %+v", got)
	}
}

func TestClientDetectUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`I could not tell.`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, WithLogger(quietLogger())).Detect(context.Background(), "x")
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != entity.SafeDefault() {
		t.Errorf("Detect() = %+v, want safe default", got)
	}
}

func TestClientDetectStatusErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantCategory Category
	}{
		{"rate limited", http.StatusTooManyRequests, CategoryRateLimited},
		{"server error", http.StatusInternalServerError, CategoryStatus},
		{"bad request", http.StatusBadRequest, CategoryStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"boom","humanDetected":false,"humanCount":0,"confidence":0,"details":"Error occurred during detection"}`))
			}))
			defer srv.Close()

			_, err := New(srv.URL, WithLogger(quietLogger())).Detect(context.Background(), "x")
			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("Detect() error = %v, want *TransportError", err)
			}
			if te.StatusCode != tt.status || te.Category != tt.wantCategory {
				t.Errorf("TransportError = {%d %s}, want {%d %s}", te.StatusCode, te.Category, tt.status, tt.wantCategory)
			}
			if te.Message != "boom" {
				t.Errorf("Message = %q, want boom", te.Message)
			}
			if IsRateLimited(err) != (tt.wantCategory == CategoryRateLimited) {
				t.Errorf("IsRateLimited() = %v", IsRateLimited(err))
			}
		})
	}
}

func TestClientDetectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, WithLogger(quietLogger())).Detect(context.Background(), "x")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Detect() error = %v, want *TransportError", err)
	}
	if te.Category != CategoryTransport || te.RateLimited() {
		t.Errorf("Category = %s, want transport", te.Category)
	}
}
