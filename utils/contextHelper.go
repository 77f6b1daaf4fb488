package utils

import (
	"context"

	"github.com/mmdatafocus/clearview_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeySessionId     = appctx.ContextKeySessionId
	ContextKeyRecipeName    = appctx.ContextKeyRecipeName
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetSessionIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySessionId)
}

func SetSessionIdInContext(ctx context.Context, sessionId string) context.Context {
	return appctx.Set(ctx, ContextKeySessionId, sessionId)
}

func GetRecipeNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRecipeName)
}

func SetRecipeNameInContext(ctx context.Context, name string) context.Context {
	return appctx.Set(ctx, ContextKeyRecipeName, name)
}
