package notifications

import (
	"fmt"
	"strings"

	"mangawatch/internal/reconcile"
)

// Event names a notification kind.
type Event string

const (
	EventChapterReleased  Event = "chapter_released"
	EventCycleFailed      Event = "cycle_failed"
	EventTestNotification Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// UpdatePayload converts a reconciliation update into an EventChapterReleased
// payload.
func UpdatePayload(u reconcile.Update) Payload {
	return Payload{
		"seriesID":      u.SeriesID,
		"seriesTitle":   u.SeriesTitle,
		"chapterNumber": u.ChapterNumber.Display("?"),
		"chapterTitle":  u.ChapterTitle,
		"readURL":       u.ReadURL,
		"coverURL":      u.CoverURL,
		"source":        string(u.Source),
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
	attach   string
}

// FormatUpdate renders the text of a chapter notification. It is shared by
// the ntfy transport and the CLI so both read the same.
func FormatUpdate(u reconcile.Update) (title, body string) {
	m, _ := render(EventChapterReleased, UpdatePayload(u))
	return m.title, m.body
}

// render returns false for events that are not delivered.
func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventChapterReleased:
		seriesTitle := payload.str("seriesTitle")
		number := payload.str("chapterNumber")
		m := message{
			click:  payload.str("readURL"),
			attach: payload.str("coverURL"),
			tags:   []string{"mangawatch", "books", "new"},
		}
		if payload.str("source") == string(reconcile.SourceScraper) {
			m.title = fmt.Sprintf("📢 New Chapter Released (Secondary Source)! %s", seriesTitle)
			m.body = fmt.Sprintf("Chapter %s", number)
			m.tags = append(m.tags, "secondary")
		} else {
			m.title = fmt.Sprintf("📢 New Chapter Released! %s", seriesTitle)
			m.body = fmt.Sprintf("Chapter %s: %s", number, payload.str("chapterTitle"))
		}
		if m.click != "" {
			m.body += "\n🔗 " + m.click
		}
		return m, true
	case EventCycleFailed:
		var b strings.Builder
		b.WriteString("❌ Update check failed")
		if reason := payload.str("reason"); reason != "" {
			b.WriteString(": ")
			b.WriteString(reason)
		}
		return message{
			title:    "MangaWatch - Check Failed",
			body:     b.String(),
			tags:     []string{"mangawatch", "error", "alert"},
			priority: "high",
		}, true
	case EventTestNotification:
		return message{
			title:    "MangaWatch - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"mangawatch", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
