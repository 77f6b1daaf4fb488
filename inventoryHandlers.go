package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/clearview_backend/ingest"
	"github.com/mmdatafocus/clearview_backend/models"
	"github.com/mmdatafocus/clearview_backend/utils"
	"github.com/mmdatafocus/clearview_backend/workflow"
)

const (
	defaultRecordsPage = 100
	maxRecordsPage     = workflow.MaxRenderRows
	scoredExportBase   = "clearview_inventory"
)

type inventorySourceRequest struct {
	CsvFileID string `json:"csvFileId"`
	CsvText   string `json:"csvText"`
}

type eosRequest struct {
	inventorySourceRequest
	Records        []models.NormalizedRecord `json:"records"`
	PredictMissing bool                      `json:"predictMissing"`
}

type recordsResponse[T any] struct {
	Count   int `json:"count"`
	Records []T `json:"records"`
}

// loadInventoryTable reads the CSV either from the session or inline.
func (a *App) loadInventoryTable(ctx context.Context, csvFileID, csvText string) (*ingest.Table, error) {
	text := csvText
	if csvFileID != "" {
		var err error
		if text, err = a.Sessions.Get(ctx, csvFileID); err != nil {
			return nil, err
		}
	} else if text == "" {
		return nil, badRequest("csvFileId or csvText is required")
	}
	if err := ingest.ValidateCsvText(text); err != nil {
		return nil, err
	}
	return ingest.ParseCsv(text)
}

func (a *App) loadNormalized(ctx context.Context, csvFileID, csvText string) ([]models.NormalizedRecord, error) {
	table, err := a.loadInventoryTable(ctx, csvFileID, csvText)
	if err != nil {
		return nil, err
	}
	return workflow.NormalizeRecords(ctx, a.Logger, workflow.TableRows(table)), nil
}

func (a *App) loadScored(ctx context.Context, csvFileID string) ([]models.ScoredRecord, *ingest.Table, error) {
	table, err := a.loadInventoryTable(ctx, csvFileID, "")
	if err != nil {
		return nil, nil, err
	}
	recs := workflow.NormalizeRecords(ctx, a.Logger, workflow.TableRows(table))
	return workflow.ScoreRecords(ctx, a.Logger, recs, a.now()), table, nil
}

func (a *App) ingestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, err := readCsvUpload(c)
		if err != nil {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logUploadError(a.Logger, err, "", cid)
			a.respondError(c, "ingestHandler", err)
			return
		}
		resp, err := a.storeUpload(c.Request.Context(), models.BatchKindInventory, *upload)
		if err != nil {
			a.respondError(c, "ingestHandler", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (a *App) normalizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req inventorySourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			a.respondError(c, "normalizeHandler", badRequest("invalid request"))
			return
		}
		recs, err := a.loadNormalized(c.Request.Context(), req.CsvFileID, req.CsvText)
		if err != nil {
			a.respondError(c, "normalizeHandler", err)
			return
		}
		c.JSON(http.StatusOK, recordsResponse[models.NormalizedRecord]{Count: len(recs), Records: recs})
	}
}

func (a *App) eosHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req eosRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			a.respondError(c, "eosHandler", badRequest("invalid request"))
			return
		}

		recs := req.Records
		if recs == nil {
			var err error
			if recs, err = a.loadNormalized(ctx, req.CsvFileID, req.CsvText); err != nil {
				a.respondError(c, "eosHandler", err)
				return
			}
		}

		var scored []models.ScoredRecord
		if req.PredictMissing && a.Enricher.Configured() {
			scored = workflow.ScoreWithPredictions(ctx, a.Logger, a.Enricher, recs, a.now())
		} else {
			scored = workflow.ScoreRecords(ctx, a.Logger, recs, a.now())
		}
		c.JSON(http.StatusOK, recordsResponse[models.ScoredRecord]{Count: len(scored), Records: scored})
	}
}

type summaryResponse struct {
	Summary   models.Summary         `json:"summary"`
	ChartData models.ChartData       `json:"chartData"`
	Profile   []models.ColumnProfile `json:"profile"`
}

func (a *App) summaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		csvFileID := c.Query("csvFileId")
		if csvFileID == "" {
			a.respondError(c, "summaryHandler", badRequest("csvFileId is required"))
			return
		}
		scored, table, err := a.loadScored(c.Request.Context(), csvFileID)
		if err != nil {
			a.respondError(c, "summaryHandler", err)
			return
		}
		c.JSON(http.StatusOK, summaryResponse{
			Summary:   workflow.CalculateSummary(scored),
			ChartData: workflow.BuildChartData(scored),
			Profile:   workflow.ProfileTable(table),
		})
	}
}

type recordsPage struct {
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
	Records []models.ScoredRecord `json:"records"`
}

// parseRiskFilter accepts a scored risk name in any letter case. Unknown is
// rejected since scoring never produces it.
func parseRiskFilter(raw string) (models.RiskLevel, bool) {
	level := models.RiskLevel(utils.UpperFirst(strings.ToLower(strings.TrimSpace(raw))))
	return level, level.IsValid() && level != models.RiskLevelUnknown
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(key + " must be a non-negative integer")
	}
	return n, nil
}

func (a *App) recordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		csvFileID := c.Query("csvFileId")
		if csvFileID == "" {
			a.respondError(c, "recordsHandler", badRequest("csvFileId is required"))
			return
		}
		limit, err := queryInt(c, "limit", defaultRecordsPage)
		if err != nil {
			a.respondError(c, "recordsHandler", err)
			return
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			a.respondError(c, "recordsHandler", err)
			return
		}
		limit = min(limit, maxRecordsPage)

		var risk models.RiskLevel
		if raw := c.Query("risk"); raw != "" {
			var ok bool
			if risk, ok = parseRiskFilter(raw); !ok {
				a.respondError(c, "recordsHandler", badRequest("risk must be one of Critical, Warning, Safe"))
				return
			}
		}

		scored, _, err := a.loadScored(c.Request.Context(), csvFileID)
		if err != nil {
			a.respondError(c, "recordsHandler", err)
			return
		}
		if risk != "" {
			matched := scored[:0]
			for _, s := range scored {
				if s.RiskScore == risk {
					matched = append(matched, s)
				}
			}
			scored = matched
		}

		page := recordsPage{Total: len(scored), Limit: limit, Offset: offset, Records: []models.ScoredRecord{}}
		if offset < len(scored) {
			page.Records = scored[offset:min(offset+limit, len(scored))]
		}
		c.JSON(http.StatusOK, page)
	}
}

func (a *App) inventoryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		csvFileID := c.Query("csvFileId")
		if csvFileID == "" {
			a.respondError(c, "inventoryExportHandler", badRequest("csvFileId is required"))
			return
		}
		format := strings.ToLower(c.DefaultQuery("format", exportFormatCsv))
		if format != exportFormatCsv && format != exportFormatXlsx {
			a.respondError(c, "inventoryExportHandler", badRequest("format must be csv or xlsx"))
			return
		}
		scored, _, err := a.loadScored(c.Request.Context(), csvFileID)
		if err != nil {
			a.respondError(c, "inventoryExportHandler", err)
			return
		}
		a.sendExport(c, csvFileID, scoredExportBase, format, models.ScoredExportColumns, workflow.ScoredCellValuers(scored))
	}
}
