package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bpopendata/budget_backend/models"
	"github.com/bpopendata/budget_backend/models/analytics"
	"github.com/gin-gonic/gin"
)

// engineOrUnavailable guards the window between "listening" and "database
// connected" at startup.
func engineOrUnavailable(c *gin.Context) *analytics.Engine {
	if engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "starting up"})
		return nil
	}
	return engine
}

func writeEngineError(c *gin.Context, err error) {
	kind := analytics.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case analytics.KindInvalidFilter:
		status = http.StatusBadRequest
	case analytics.KindTimeout:
		status = http.StatusGatewayTimeout
	case analytics.KindDatabase:
		status = http.StatusInternalServerError
	default:
		kind = analytics.KindDatabase
	}
	c.JSON(status, gin.H{"kind": kind, "error": analytics.PublicMessage(err)})
}

func bindAggregateRequest(c *gin.Context) (analytics.AggregateRequest, bool) {
	var req analytics.AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": analytics.KindInvalidFilter, "error": "malformed request body"})
		return req, false
	}
	return req, true
}

func entityAggregatesHandler(c *gin.Context) {
	e := engineOrUnavailable(c)
	if e == nil {
		return
	}
	req, ok := bindAggregateRequest(c)
	if !ok {
		return
	}
	page, err := e.AggregateByEntity(c.Request.Context(), req)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func classificationAggregatesHandler(c *gin.Context) {
	e := engineOrUnavailable(c)
	if e == nil {
		return
	}
	req, ok := bindAggregateRequest(c)
	if !ok {
		return
	}
	page, err := e.AggregateByClassification(c.Request.Context(), req)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func periodSeriesHandler(c *gin.Context) {
	e := engineOrUnavailable(c)
	if e == nil {
		return
	}
	req, ok := bindAggregateRequest(c)
	if !ok {
		return
	}
	series, err := e.SeriesByPeriod(c.Request.Context(), req)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func lineItemsHandler(c *gin.Context) {
	e := engineOrUnavailable(c)
	if e == nil {
		return
	}
	req, ok := bindAggregateRequest(c)
	if !ok {
		return
	}
	page, err := e.LineItems(c.Request.Context(), req)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func entityAggregatesExportHandler(c *gin.Context) {
	e := engineOrUnavailable(c)
	if e == nil {
		return
	}
	req, ok := bindAggregateRequest(c)
	if !ok {
		return
	}
	page, err := e.AggregateByEntity(c.Request.Context(), req)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=entity_aggregates.xlsx")
	if err := analytics.ExportEntityAggregates(c.Writer, page); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
	}
}

func searchEntitiesHandler(c *gin.Context) {
	if engineOrUnavailable(c) == nil {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entities, err := models.SearchEntities(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": entities})
}

func getEntityHandler(c *gin.Context) {
	if engineOrUnavailable(c) == nil {
		return
	}
	entity, err := models.GetEntityByCUI(c.Request.Context(), c.Param("cui"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, entity)
}

func getTerritorialUnitHandler(c *gin.Context) {
	if engineOrUnavailable(c) == nil {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uat id"})
		return
	}
	uat, err := models.GetTerritorialUnit(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "uat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, uat)
}

func clearCacheHandler(c *gin.Context) {
	e := engineOrUnavailable(c)
	if e == nil {
		return
	}
	if err := e.ClearCache(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache clear failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
