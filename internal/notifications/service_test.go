package notifications_test

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"mangawatch/internal/chapter"
	"mangawatch/internal/config"
	"mangawatch/internal/notifications"
	"mangawatch/internal/reconcile"
	"mangawatch/internal/services"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTestNotification, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func catalogUpdate() reconcile.Update {
	return reconcile.Update{
		SeriesID:      "m1",
		SeriesTitle:   "Frieren",
		ChapterID:     "c-120",
		ChapterNumber: chapter.MustParse("120"),
		ChapterTitle:  "The Journey",
		ReadURL:       "https://mangadex.org/chapter/c-120",
		CoverURL:      "https://uploads.mangadex.org/covers/m1/cover.jpg",
		Source:        reconcile.SourceCatalog,
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	scraped := catalogUpdate()
	scraped.Source = reconcile.SourceScraper
	scraped.ChapterNumber = chapter.MustParse("120.5")
	scraped.ReadURL = "https://scans.example/read/120.5"

	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
		expectClick    string
		expectAttach   string
	}{
		{
			name:          "catalog chapter",
			event:         notifications.EventChapterReleased,
			payload:       notifications.UpdatePayload(catalogUpdate()),
			expectTitle:   "📢 New Chapter Released! Frieren",
			expectMessage: "Chapter 120: The Journey\n🔗 https://mangadex.org/chapter/c-120",
			expectTags:    "mangawatch,books,new",
			expectClick:   "https://mangadex.org/chapter/c-120",
			expectAttach:  "https://uploads.mangadex.org/covers/m1/cover.jpg",
		},
		{
			name:          "scraper chapter",
			event:         notifications.EventChapterReleased,
			payload:       notifications.UpdatePayload(scraped),
			expectTitle:   "📢 New Chapter Released (Secondary Source)! Frieren",
			expectMessage: "Chapter 120.5\n🔗 https://scans.example/read/120.5",
			expectTags:    "mangawatch,books,new,secondary",
			expectClick:   "https://scans.example/read/120.5",
			expectAttach:  "https://uploads.mangadex.org/covers/m1/cover.jpg",
		},
		{
			name:           "cycle failed",
			event:          notifications.EventCycleFailed,
			payload:        notifications.Payload{"reason": "state file not writable"},
			expectTitle:    "MangaWatch - Check Failed",
			expectMessage:  "❌ Update check failed: state file not writable",
			expectTags:     "mangawatch,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTestNotification,
			expectTitle:    "MangaWatch - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "mangawatch,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				click    string
				attach   string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				var dec mime.WordDecoder
				title, err := dec.DecodeHeader(r.Header.Get("Title"))
				if err != nil {
					t.Errorf("decode title: %v", err)
				}
				captured.title = title
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				captured.click = r.Header.Get("Click")
				captured.attach = r.Header.Get("Attach")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
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
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
			if captured.click != tc.expectClick {
				t.Fatalf("expected click %q, got %q", tc.expectClick, captured.click)
			}
			if captured.attach != tc.expectAttach {
				t.Fatalf("expected attach %q, got %q", tc.expectAttach, captured.attach)
			}
		})
	}
}

func TestNtfyServiceHonoursAttachAndPriorityConfig(t *testing.T) {
	var attach, priority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attach = r.Header.Get("Attach")
		priority = r.Header.Get("Priority")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.AttachCover = false
	cfg.Notifications.Priority = "urgent"

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventChapterReleased, notifications.UpdatePayload(catalogUpdate())); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if attach != "" {
		t.Fatalf("cover attached despite attach_cover=false: %q", attach)
	}
	if priority != "urgent" {
		t.Fatalf("expected configured priority, got %q", priority)
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic full", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTestNotification, nil)
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestNtfyServiceIgnoresUnknownEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.Event("series_added"), notifications.Payload{"value": "ignored"}); err != nil {
		t.Fatalf("expected no error for suppressed event, got %v", err)
	}
}

func TestFormatUpdate(t *testing.T) {
	title, body := notifications.FormatUpdate(catalogUpdate())
	if title != "📢 New Chapter Released! Frieren" {
		t.Fatalf("title = %q", title)
	}
	if body != "Chapter 120: The Journey\n🔗 https://mangadex.org/chapter/c-120" {
		t.Fatalf("body = %q", body)
	}
}
