package ipc

import (
	"mangawatch/internal/daemon"
	"mangawatch/internal/history"
	"mangawatch/internal/poller"
	"mangawatch/internal/reconcile"
	"mangawatch/internal/tracking"
)

// CommandResponse is the reply to every interactive tracking command.
type CommandResponse = tracking.Result

// TrackRequest starts a search-and-select session for User.
type TrackRequest struct {
	User  string `json:"user"`
	Title string `json:"title"`
}

// SelectRequest consumes User's pending search session. Index is 1-based.
type SelectRequest struct {
	User  string `json:"user"`
	Index int    `json:"index"`
}

// UntrackRequest starts a remove-and-confirm session for User.
type UntrackRequest struct {
	User  string `json:"user"`
	Title string `json:"title"`
}

// ConfirmRemoveRequest consumes User's pending removal session. Index is 1-based.
type ConfirmRemoveRequest struct {
	User  string `json:"user"`
	Index int    `json:"index"`
}

// ListRequest lists tracked series.
type ListRequest struct{}

// TitleRequest addresses the first tracked series, or catalog search, matching Title.
type TitleRequest struct {
	Title string `json:"title"`
}

// SetScraperRequest attaches a secondary source to a tracked series.
type SetScraperRequest struct {
	Title           string `json:"title"`
	CheckURL        string `json:"check_url"`
	CheckSelector   string `json:"check_selector"`
	ReadURLTemplate string `json:"read_url_template"`
}

// RecheckRequest asks for an immediate reconciliation cycle.
type RecheckRequest struct{}

// RecheckResponse reports a manual cycle. Ran is false when the request was
// throttled or collided with a running cycle; Message then says why.
type RecheckResponse struct {
	Ran     bool                `json:"ran"`
	Message string              `json:"message"`
	Cycle   poller.CycleSummary `json:"cycle"`
	Updates []reconcile.Update  `json:"updates"`
}

// HistoryRequest fetches delivered updates, optionally for one series.
type HistoryRequest struct {
	Title string `json:"title"`
	Limit int    `json:"limit"`
	// Cycles additionally returns recorded cycles.
	Cycles bool `json:"cycles"`
}

// HistoryResponse contains history rows, newest first.
type HistoryResponse struct {
	Deliveries []history.Delivery `json:"deliveries"`
	Cycles     []history.Cycle    `json:"cycles,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse = daemon.Status

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the test notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest fetches daemon log lines. A negative Offset returns the last
// Limit lines; WaitMillis bounds how long to wait for new lines.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
	Match      string `json:"match"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
