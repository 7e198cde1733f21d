package tracking

import (
	"fmt"
	"strings"

	"mangawatch/internal/mangadex"
	"mangawatch/internal/textutil"
	"mangawatch/internal/watchlist"
)

const (
	msgNoActiveSearch    = "⚠️ No active search found. Use /track first."
	msgNoPendingRemoval  = "⚠️ No pending removal selection. Use /untrack first."
	msgNothingTracked    = "📭 No series are being tracked."
	msgInfoUnavailable   = "❌ Could not fetch detailed info."
	msgEmptyTitle        = "❌ Please provide a title."
	infoDescriptionLimit = 400
	chapterPlaceholder   = "N/A"
)

func noMatches(query string) string {
	return fmt.Sprintf("❌ No matches found for '%s'.", query)
}

func noEnglishChapter(title string) string {
	return fmt.Sprintf("⚠️ No English chapter found for '%s'. Series not added.", title)
}

func noTrackedMatch(query string) string {
	return fmt.Sprintf("❌ No tracked series match '%s'.", query)
}

func noTrackedFound(query string) string {
	return fmt.Sprintf("❌ No tracked series found matching '%s'.", query)
}

func invalidSelection(n int) string {
	return fmt.Sprintf("❌ Invalid selection. Use a number from 1 to %d.", n)
}

func alreadyTracked(title string) string {
	return fmt.Sprintf("⚠️ '%s' is already being tracked.", title)
}

func removed(title string) string {
	return fmt.Sprintf("✅ '%s' has been removed.", title)
}

func sourceFailure(action, seriesID string, err error) string {
	if seriesID == "" {
		return fmt.Sprintf("❌ Error %s: %v", action, err)
	}
	return fmt.Sprintf("❌ Error %s for %s: %v", action, seriesID, err)
}

func chapterLine(number, title string) string {
	return fmt.Sprintf("Chapter %s: %s", number, title)
}

func renderSearchChoices(query string, choices []Choice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔎 **Search Results for '%s':**\n", query)
	for i, c := range choices {
		fmt.Fprintf(&b, "[%d] %s | ID: `%s`\n", i+1, c.DisplayName, c.SeriesID)
	}
	b.WriteString("\nReply with `/select [number]` to track a series.")
	return b.String()
}

func renderSearchOnly(results []mangadex.SearchResult) string {
	var b strings.Builder
	b.WriteString("🔎 **MangaDex Search Results:**\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.DisplayName)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRemovalCandidates(candidates []Candidate) string {
	var b strings.Builder
	b.WriteString("🔎 **Multiple matches found:**\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s | ID: `%s`\n", i+1, c.Title, c.SeriesID)
	}
	b.WriteString("\nUse `/confirm_remove [number]` to remove one.")
	return b.String()
}

func renderAdded(title string, number, chapterTitle, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ **%s** added and initial chapter recorded:\n", title)
	fmt.Fprintf(&b, "📖 %s", chapterLine(number, chapterTitle))
	if link != "" {
		fmt.Fprintf(&b, "\n🔗 %s", link)
	}
	return b.String()
}

func renderList(entries []watchlist.Entry) string {
	if len(entries) == 0 {
		return msgNothingTracked
	}
	var b strings.Builder
	b.WriteString("**📘 Currently Tracked Series:**\n")
	for _, e := range entries {
		line := fmt.Sprintf("• **%s** – %s", e.Series.Title,
			chapterLine(e.Series.LastChapterNumber.Display(chapterPlaceholder), e.Series.ChapterTitle()))
		if e.Series.Unread() {
			line += " 🆕"
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLatest(series watchlist.Series, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📖 **%s**\n", series.Title)
	fmt.Fprintf(&b, "• %s", chapterLine(series.LastChapterNumber.Display(chapterPlaceholder), series.ChapterTitle()))
	if link != "" {
		fmt.Fprintf(&b, "\n🔗 %s", link)
	}
	return b.String()
}

func renderInfo(title string, info mangadex.Info) string {
	status := textutil.FirstNonEmpty(info.Status, "Unknown")
	description := textutil.FirstNonEmpty(info.Description, "No description.")
	runes := []rune(description)
	if len(runes) > infoDescriptionLimit {
		description = string(runes[:infoDescriptionLimit])
	}
	return fmt.Sprintf("📘 **%s**\n• Status: %s\n• Genres: %s\n• Description: %s...",
		title, status, strings.Join(info.Tags, ", "), description)
}

func renderMarkedRead(title, number string) string {
	return fmt.Sprintf("✅ Marked chapter %s of '%s' as read.", number, title)
}

func renderAlreadyRead(title, number string) string {
	return fmt.Sprintf("ℹ️ Chapter %s of '%s' is already marked as read.", number, title)
}
