package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/clearview_backend/enrichment"
	"github.com/mmdatafocus/clearview_backend/utils"
)

type extractSoftwareRequest struct {
	RawText    string `json:"rawText"`
	ColumnName string `json:"columnName"`
}

type extractSoftwareResponse struct {
	enrichment.SoftwareInfo
	ColumnName   string `json:"columnName"`
	OriginalText string `json:"originalText"`
}

type extractBatchRequest struct {
	Entries []string `json:"entries"`
}

type predictEOSRequest struct {
	Items []enrichment.EOSQuery `json:"items" validate:"required,max=100,dive"`
}

type batchResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func (a *App) extractSoftwareHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req extractSoftwareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			a.respondError(c, "extractSoftwareHandler", badRequest("invalid request"))
			return
		}
		if req.RawText == "" {
			a.respondError(c, "extractSoftwareHandler", badRequest("rawText is required"))
			return
		}
		results, err := a.Enricher.ExtractOrFallback(c.Request.Context(), []string{req.RawText})
		if err != nil {
			a.respondError(c, "extractSoftwareHandler", err)
			return
		}
		columnName := req.ColumnName
		if columnName == "" {
			columnName = "software"
		}
		c.JSON(http.StatusOK, extractSoftwareResponse{
			SoftwareInfo: results[0],
			ColumnName:   columnName,
			OriginalText: req.RawText,
		})
	}
}

func (a *App) extractBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req extractBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Entries == nil {
			a.respondError(c, "extractBatchHandler", badRequest("entries array is required"))
			return
		}
		results, err := a.Enricher.ExtractOrFallback(c.Request.Context(), req.Entries)
		if err != nil {
			a.respondError(c, "extractBatchHandler", err)
			return
		}
		c.JSON(http.StatusOK, batchResponse[enrichment.SoftwareInfo]{Count: len(results), Results: results})
	}
}

func (a *App) predictEOSHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req predictEOSRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Items == nil {
			a.respondError(c, "predictEOSHandler", badRequest("items array is required"))
			return
		}
		if len(req.Items) > enrichment.MaxBatchEntries {
			a.respondError(c, "predictEOSHandler", enrichment.ErrTooManyEntries)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, utils.ErrorResponse{
				Error:   "each item needs a vendor or product",
				Details: utils.ProcessValidationErrors(err),
			})
			return
		}
		results, err := a.Enricher.PredictEOS(c.Request.Context(), req.Items)
		if err != nil {
			a.respondError(c, "predictEOSHandler", err)
			return
		}
		c.JSON(http.StatusOK, batchResponse[*enrichment.EOSPrediction]{Count: len(results), Results: results})
	}
}

func (a *App) geminiHealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "missing API key"
		if a.Enricher.Configured() {
			status = "ready"
		}
		c.JSON(http.StatusOK, gin.H{
			"configured": a.Enricher.Configured(),
			"status":     status,
		})
	}
}
