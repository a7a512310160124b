package publishers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPPublisherPostsEvent(t *testing.T) {
	var (
		gotMethod string
		gotAuth   string
		gotEvent  Event
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotEvent); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := sanitizePublisherConfig(PublisherConfig{
		ID:   "webhook",
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{
			URL:     server.URL,
			Headers: map[string]string{"Authorization": "Bearer token"},
		},
	})

	pub, err := newHTTPPublisher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}

	if err := pub.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("method = %q", gotMethod)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if gotEvent.URL != "https://news.example/a" {
		t.Fatalf("event url = %q", gotEvent.URL)
	}
}

func TestHTTPPublisherSurfacesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := sanitizePublisherConfig(PublisherConfig{
		ID:   "webhook",
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{URL: server.URL},
	})

	pub, err := newHTTPPublisher(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}

	if err := pub.Publish(context.Background(), testEvent()); err == nil {
		t.Fatalf("expected an error for a 503 response")
	}
}
