package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/enrichment"
	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/session"
	"github.com/mmdatafocus/clearview_backend/utils"
)

const sessionExpiredMessage = "CSV not found in session. Please upload again."

// requestError carries a client-facing message and status.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, msg: msg}
}

// statusFor maps an error onto the HTTP status and message shown to the
// caller. Unknown errors are 500 with their own text.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.msg
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, sessionExpiredMessage
	case errors.Is(err, models.ErrRecipeNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrInvalidRecipe),
		errors.Is(err, ingest.ErrEmptyCsv),
		errors.Is(err, ingest.ErrNoDataRows),
		errors.Is(err, enrichment.ErrTooManyEntries):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, enrichment.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, enrichment.ErrMalformedResponse):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

// requestFields collects the request-scoped ids for error logs.
func requestFields(ctx context.Context, status int) logrus.Fields {
	fields := logrus.Fields{"status": status}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	if sid, ok := utils.GetSessionIdFromContext(ctx); ok {
		fields["session_id"] = sid
	}
	if name, ok := utils.GetRecipeNameFromContext(ctx); ok {
		fields["recipe"] = name
	}
	return fields
}

func (a *App) respondError(c *gin.Context, funcName string, err error) {
	status, msg := statusFor(err)
	config.LogError(a.Logger, "handlers", funcName, c.Request.URL.Path, requestFields(c.Request.Context(), status), err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, utils.ErrorResponse{Error: msg})
}
