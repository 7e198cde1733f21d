package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. chapter_update).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorKind carries the services marker label of a failure.
	FieldErrorKind = "error_kind"
	// FieldCycleID identifies one reconciliation pass.
	FieldCycleID = "cycle_id"
	// FieldSeriesID is the catalog identifier of a tracked series.
	FieldSeriesID = "series_id"
	// FieldSeriesTitle is the display title of a tracked series.
	FieldSeriesTitle = "series_title"
	// FieldChapter is a chapter number rendered as text.
	FieldChapter = "chapter"
	// FieldSource names the source that produced a chapter (catalog or scraper).
	FieldSource = "source"
	// FieldUserID identifies the requesting user of an interactive command.
	FieldUserID = "user_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)
