package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mmdatafocus/clearview_backend/config"
	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/session"
	"github.com/mmdatafocus/clearview_backend/transform"
	"github.com/mmdatafocus/clearview_backend/utils"
	"github.com/mmdatafocus/clearview_backend/workflow"
)

const (
	exportFormatCsv  = "csv"
	exportFormatXlsx = "xlsx"
)

type vizPreviewRequest struct {
	CsvText  string `json:"csvText"`
	Filename string `json:"filename"`
}

type vizPreviewResponse struct {
	BatchID    string                `json:"batchId"`
	CsvFileID  string                `json:"csvFileId"`
	Filename   string                `json:"filename"`
	Encoding   string                `json:"encoding,omitempty"`
	Headers    []string              `json:"headers"`
	SampleRows []ingest.Record       `json:"sampleRows"`
	RowCount   int                   `json:"rowCount"`
	Warnings   []ingest.ParseWarning `json:"warnings,omitempty"`
}

// vizRenderRequest keeps fieldMap and filters raw so a malformed recipe is a
// 400 with a precise message rather than a generic bind failure.
type vizRenderRequest struct {
	CsvFileID    string          `json:"csvFileId"`
	FieldMap     json.RawMessage `json:"fieldMap"`
	TargetScreen string          `json:"targetScreen"`
	Filters      json.RawMessage `json:"filters"`
}

func isJSONAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// storeUpload validates and parses text, keeps it in the session store and
// records its metadata.
func (a *App) storeUpload(ctx context.Context, kind models.BatchKind, upload csvUpload) (*vizPreviewResponse, error) {
	if err := ingest.ValidateCsvText(upload.Text); err != nil {
		return nil, err
	}
	table, err := ingest.ParseCsv(upload.Text)
	if err != nil {
		return nil, err
	}

	preview := workflow.Preview(table)
	resp := &vizPreviewResponse{
		BatchID:    uuid.NewString(),
		CsvFileID:  session.NewID(),
		Filename:   upload.Filename,
		Encoding:   upload.Encoding,
		Headers:    preview.Headers,
		SampleRows: preview.SampleRows,
		RowCount:   preview.RowCount,
		Warnings:   table.Warnings,
	}
	if err := a.Sessions.Set(ctx, resp.CsvFileID, upload.Text); err != nil {
		return nil, fmt.Errorf("failed to store csv: %w", err)
	}

	meta := models.PreviewMetadata{
		BatchID:   resp.BatchID,
		CsvFileID: resp.CsvFileID,
		Kind:      kind,
		Filename:  resp.Filename,
		Encoding:  resp.Encoding,
		Headers:   resp.Headers,
		RowCount:  resp.RowCount,
		Sample:    resp.SampleRows,
	}
	// Metadata is bookkeeping; the upload is usable without it.
	if err := a.Recorder.RecordPreview(ctx, meta); err != nil {
		config.LogError(a.Logger, "vizHandlers.go", "storeUpload", "Error recording preview metadata", resp.CsvFileID, err)
	}
	return resp, nil
}

func (a *App) vizPreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req vizPreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			a.respondError(c, "vizPreviewHandler", badRequest("invalid request"))
			return
		}
		if req.CsvText == "" {
			a.respondError(c, "vizPreviewHandler", badRequest("csvText is required"))
			return
		}
		filename := strings.TrimSpace(req.Filename)
		if filename == "" {
			filename = defaultUploadName
		}

		resp, err := a.storeUpload(c.Request.Context(), models.BatchKindAuritasViz, csvUpload{
			Filename: filename,
			Encoding: ingest.EncodingUTF8,
			Text:     req.CsvText,
		})
		if err != nil {
			a.respondError(c, "vizPreviewHandler", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (a *App) vizPreviewFileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, err := readCsvUpload(c)
		if err != nil {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logUploadError(a.Logger, err, "", cid)
			a.respondError(c, "vizPreviewFileHandler", err)
			return
		}
		resp, err := a.storeUpload(c.Request.Context(), models.BatchKindAuritasViz, *upload)
		if err != nil {
			a.respondError(c, "vizPreviewFileHandler", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// shape runs the shaping pipeline over the stored upload csvFileId.
func (a *App) shape(ctx context.Context, csvFileID string, fieldMap transform.FieldMap, recipe *models.Recipe, filters models.Filters) (workflow.RenderResult, error) {
	text, err := a.Sessions.Get(ctx, csvFileID)
	if err != nil {
		return workflow.RenderResult{}, err
	}
	table, err := ingest.ParseCsv(text)
	if err != nil {
		return workflow.RenderResult{}, err
	}
	return workflow.Render(ctx, a.Logger, workflow.TableRows(table), fieldMap, recipe.TargetColumns, filters), nil
}

func (a *App) vizRenderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req vizRenderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			a.respondError(c, "vizRenderHandler", badRequest("invalid request"))
			return
		}
		if req.CsvFileID == "" || isJSONAbsent(req.FieldMap) || req.TargetScreen == "" {
			a.respondError(c, "vizRenderHandler", badRequest("csvFileId, fieldMap, and targetScreen are required"))
			return
		}
		ctx = utils.SetSessionIdInContext(ctx, req.CsvFileID)
		ctx = utils.SetRecipeNameInContext(ctx, req.TargetScreen)
		c.Request = c.Request.WithContext(ctx)

		recipe, err := a.Recipes.Load(ctx, req.TargetScreen)
		if err != nil {
			a.respondError(c, "vizRenderHandler", err)
			return
		}
		fieldMap, err := models.ParseFieldMapJSON(string(req.FieldMap))
		if err != nil {
			a.respondError(c, "vizRenderHandler", err)
			return
		}
		// Any filters object in the request, even {}, replaces the defaults.
		filters := recipe.DefaultFilters
		if !isJSONAbsent(req.Filters) {
			if filters, err = models.ParseFiltersJSON(string(req.Filters)); err != nil {
				a.respondError(c, "vizRenderHandler", err)
				return
			}
		}

		result, err := a.shape(ctx, req.CsvFileID, fieldMap, recipe, filters)
		if err != nil {
			a.respondError(c, "vizRenderHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (a *App) vizExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		csvFileID := c.Query("csvFileId")
		targetScreen := c.Query("targetScreen")
		fieldMapJSON := c.Query("fieldMapJson")
		if csvFileID == "" || targetScreen == "" || fieldMapJSON == "" {
			a.respondError(c, "vizExportHandler", badRequest("csvFileId, targetScreen, and fieldMapJson are required"))
			return
		}
		format := strings.ToLower(c.DefaultQuery("format", exportFormatCsv))
		if format != exportFormatCsv && format != exportFormatXlsx {
			a.respondError(c, "vizExportHandler", badRequest("format must be csv or xlsx"))
			return
		}
		ctx = utils.SetSessionIdInContext(ctx, csvFileID)
		ctx = utils.SetRecipeNameInContext(ctx, targetScreen)
		c.Request = c.Request.WithContext(ctx)

		recipe, err := a.Recipes.Load(ctx, targetScreen)
		if err != nil {
			a.respondError(c, "vizExportHandler", err)
			return
		}
		fieldMap, err := models.ParseFieldMapJSON(fieldMapJSON)
		if err != nil {
			a.respondError(c, "vizExportHandler", err)
			return
		}
		filters := recipe.DefaultFilters
		if raw, ok := c.GetQuery("filtersJson"); ok && raw != "" {
			if filters, err = models.ParseFiltersJSON(raw); err != nil {
				a.respondError(c, "vizExportHandler", err)
				return
			}
		}

		result, err := a.shape(ctx, csvFileID, fieldMap, recipe, filters)
		if err != nil {
			a.respondError(c, "vizExportHandler", err)
			return
		}
		a.sendExport(c, csvFileID, "auritas_"+targetScreen, format, result.Columns, workflow.CellValuers(result.Rows))
	}
}

// sendExport writes rows as an attachment named base.<format> and, when an
// archive bucket is configured, keeps a copy there.
func (a *App) sendExport(c *gin.Context, sessionID, base, format string, columns []string, rows []ingest.CellValuer) {
	var buf bytes.Buffer
	contentType := ingest.ContentTypeCsv
	var err error
	if format == exportFormatXlsx {
		contentType = ingest.ContentTypeXlsx
		err = ingest.WriteXlsx(&buf, base, columns, rows)
	} else {
		err = ingest.WriteCsv(&buf, columns, rows)
	}
	if err != nil {
		a.respondError(c, "sendExport", err)
		return
	}

	filename := base + "." + format
	if a.Archiver != nil {
		object := a.Archiver.ExportObjectName(sessionID, filename, a.now())
		if err := a.Archiver.Archive(c.Request.Context(), object, buf.Bytes(), contentType); err != nil {
			config.LogError(a.Logger, "vizHandlers.go", "sendExport", "Error archiving export", object, err)
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

type recipeLister interface {
	List(ctx context.Context) ([]string, error)
}

func (a *App) vizRecipesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lister, ok := a.Recipes.(recipeLister)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"recipes": []string{}})
			return
		}
		names, err := lister.List(c.Request.Context())
		if err != nil {
			a.respondError(c, "vizRecipesHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recipes": names})
	}
}

func (a *App) vizRecipeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		recipe, err := a.Recipes.Load(c.Request.Context(), c.Param("name"))
		if err != nil {
			a.respondError(c, "vizRecipeHandler", err)
			return
		}
		c.JSON(http.StatusOK, recipe)
	}
}
