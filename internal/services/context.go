package services

import "context"

type contextKey string

const (
	projectIDKey contextKey = "project_id"
	stageKey     contextKey = "stage"
	intentKey    contextKey = "intent"
	requestIDKey contextKey = "request_id"
)

// WithProjectID annotates context with the project identifier.
func WithProjectID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, projectIDKey, id)
}

// ProjectIDFromContext extracts the project identifier if present.
func ProjectIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithIntent annotates context with the transition intent being applied.
func WithIntent(ctx context.Context, intent string) context.Context {
	if intent == "" {
		return ctx
	}
	return context.WithValue(ctx, intentKey, intent)
}

// IntentFromContext returns the transition intent if present.
func IntentFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(intentKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
