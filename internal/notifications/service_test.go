package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"darkroom/internal/config"
	"darkroom/internal/notifications"
	"darkroom/internal/store"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	archive := &store.Archive{GalleryID: "g1", Version: 1}
	if err := svc.NotifyArchiveReady(context.Background(), archive); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	archive := &store.Archive{
		GalleryID:       "wedding-2026",
		Version:         3,
		ImageCount:      120,
		SizeBytes:       2048,
		NotifyRecipient: "studio@example.com",
	}

	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectContains []string
		expectTags     string
		expectPriority string
	}{
		{
			name: "archive ready",
			send: func(svc notifications.Service) error {
				return svc.NotifyArchiveReady(context.Background(), archive)
			},
			expectTitle:    "Darkroom - Archive Ready",
			expectContains: []string{"wedding-2026 v3", "120 images", "studio@example.com"},
			expectTags:     "darkroom,archive,completed",
		},
		{
			name: "archive failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyArchiveFailed(context.Background(), archive, "image unreadable")
			},
			expectTitle:    "Darkroom - Archive Failed",
			expectContains: []string{"wedding-2026 v3", "image unreadable"},
			expectTags:     "darkroom,archive,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("disk full"), "reaper")
			},
			expectTitle:    "Darkroom - Error",
			expectContains: []string{"Error with reaper", "disk full"},
			expectTags:     "darkroom,error,alert",
			expectPriority: "high",
		},
		{
			name: "test notification",
			send: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Darkroom - Test",
			expectContains: []string{"test"},
			expectTags:     "darkroom,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			for _, fragment := range tc.expectContains {
				if !strings.Contains(captured.body, fragment) {
					t.Fatalf("expected message to contain %q, got %q", fragment, captured.body)
				}
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error from failing ntfy endpoint")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}
