package services

import "context"

type contextKey string

const (
	cycleIDKey   contextKey = "cycle_id"
	seriesIDKey  contextKey = "series_id"
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"
)

// WithCycleID annotates context with the reconciliation cycle identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	return withString(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the reconciliation cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, cycleIDKey)
}

// WithSeriesID annotates context with the catalog series identifier.
func WithSeriesID(ctx context.Context, id string) context.Context {
	return withString(ctx, seriesIDKey, id)
}

// SeriesIDFromContext returns the series identifier if present.
func SeriesIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, seriesIDKey)
}

// WithUserID annotates context with the requesting user.
func WithUserID(ctx context.Context, id string) context.Context {
	return withString(ctx, userIDKey, id)
}

// UserIDFromContext returns the requesting user if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, userIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
